package repository

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/tunehub/internal/entity"
	"anoa.com/tunehub/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepository interface {
	// BulkInsert writes all rows in one statement, silently skipping rows
	// whose event key already exists, and returns the rows actually
	// inserted with their actor loaded.
	BulkInsert(ctx context.Context, notifications []*entity.Notification) ([]entity.Notification, error)
	// InsertOne reports false when the row was skipped as a duplicate.
	InsertOne(ctx context.Context, notification *entity.Notification) (bool, error)

	GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteAllRead(ctx context.Context, userID uuid.UUID) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func selectActor(db *gorm.DB) *gorm.DB {
	return db.Select("id", "username", "avatar_url")
}

var skipDuplicateEvents = clause.OnConflict{
	Columns:   []clause.Column{{Name: "event_key"}},
	DoNothing: true,
}

func (r *notificationRepository) BulkInsert(ctx context.Context, notifications []*entity.Notification) ([]entity.Notification, error) {
	if len(notifications) == 0 {
		return nil, nil
	}

	var inserted []entity.Notification
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(skipDuplicateEvents).Create(&notifications).Error; err != nil {
			return err
		}

		// Skipped rows kept the IDs generated for them, which never reached
		// the table, so reading back by ID yields exactly the inserted set.
		ids := make([]uuid.UUID, 0, len(notifications))
		for _, n := range notifications {
			ids = append(ids, n.ID)
		}
		return tx.Where("id IN ?", ids).
			Order("created_at asc, id asc").
			Preload("Actor", selectActor).
			Find(&inserted).Error
	})
	if err != nil {
		return nil, fmt.Errorf("bulk insert notifications: %w", err)
	}
	return inserted, nil
}

func (r *notificationRepository) InsertOne(ctx context.Context, notification *entity.Notification) (bool, error) {
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(skipDuplicateEvents).Create(notification)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		return tx.Preload("Actor", selectActor).First(notification, "id = ?", notification.ID).Error
	})
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return created, nil
}

func (r *notificationRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error) {
	var notifications []entity.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Preload("Actor", selectActor).
		Find(&notifications).Error
	return notifications, err
}

func (r *notificationRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Notification{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&entity.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	return notFoundIfUntouched(res)
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&entity.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
}

func (r *notificationRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&entity.Notification{})
	return notFoundIfUntouched(res)
}

func (r *notificationRepository) DeleteAllRead(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND is_read = ?", userID, true).
		Delete(&entity.Notification{}).Error
}

func notFoundIfUntouched(res *gorm.DB) error {
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return apperror.ErrNotFound
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.ErrNotFound
	}
	return nil
}
