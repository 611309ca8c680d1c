package service

import (
	"context"
	"fmt"

	notifDto "anoa.com/tunehub/internal/modules/notification/dto"
	notifRepo "anoa.com/tunehub/internal/modules/notification/repository"
	"anoa.com/tunehub/pkg/dto"
	"github.com/google/uuid"
)

// HistoryService reads and updates a user's persisted notifications.
type HistoryService interface {
	List(ctx context.Context, userID uuid.UUID, filter notifDto.NotificationFilter) (*notifDto.PaginatedNotificationResponse, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteAllRead(ctx context.Context, userID uuid.UUID) error
}

var _ Store = notifRepo.NotificationRepository(nil)

type historyService struct {
	repo notifRepo.NotificationRepository
}

func NewHistoryService(repo notifRepo.NotificationRepository) HistoryService {
	return &historyService{repo: repo}
}

func (s *historyService) List(ctx context.Context, userID uuid.UUID, filter notifDto.NotificationFilter) (*notifDto.PaginatedNotificationResponse, error) {
	offset := (filter.Page - 1) * filter.Limit

	notifications, err := s.repo.GetByUserID(ctx, userID, filter.Limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	total, err := s.repo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	return &notifDto.PaginatedNotificationResponse{
		Data: notifDto.ToNotificationResponses(notifications),
		Meta: dto.NewPaginationMeta(filter.Page, filter.Limit, total),
	}, nil
}

func (s *historyService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *historyService) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, userID, id)
}

func (s *historyService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *historyService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}

func (s *historyService) DeleteAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.DeleteAllRead(ctx, userID)
}
