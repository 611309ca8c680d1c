package dto

import (
	"time"

	"anoa.com/tunehub/internal/entity"
	"anoa.com/tunehub/pkg/dto"
	"github.com/google/uuid"
)

type ActorResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Avatar *string   `json:"avatar"`
}

type NotificationResponse struct {
	ID            uuid.UUID             `json:"id"`
	Type          entity.Type           `json:"type"`
	Content       string                `json:"content"`
	RecipientID   uuid.UUID             `json:"recipient_id"`
	ActorID       uuid.UUID             `json:"actor_id"`
	Actor         ActorResponse         `json:"actor"`
	TargetID      uuid.UUID             `json:"target_id"`
	TargetType    string                `json:"target_type"`
	ParentContent *entity.ParentContent `json:"parent_content,omitempty"`
	IsRead        bool                  `json:"is_read"`
	CreatedAt     string                `json:"created_at"`
}

func ToNotificationResponse(n entity.Notification) NotificationResponse {
	actor := ActorResponse{
		ID:   n.ActorID,
		Name: "Unknown",
	}
	if n.Actor != nil && n.Actor.Username != "" {
		actor.Name = n.Actor.Username
		actor.Avatar = n.Actor.AvatarURL
	}

	return NotificationResponse{
		ID:            n.ID,
		Type:          n.Type,
		Content:       n.Content,
		RecipientID:   n.UserID,
		ActorID:       n.ActorID,
		Actor:         actor,
		TargetID:      n.TargetID,
		TargetType:    n.TargetType,
		ParentContent: n.Parent(),
		IsRead:        n.IsRead,
		CreatedAt:     n.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func ToNotificationResponses(notifications []entity.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, ToNotificationResponse(n))
	}
	return out
}

type NotificationFilter struct {
	Page  int `form:"page,default=1" binding:"min=1"`
	Limit int `form:"limit,default=20" binding:"min=1,max=50"`
}

type PaginatedNotificationResponse struct {
	Data []NotificationResponse `json:"data"`
	Meta dto.PaginationMeta     `json:"meta"`
}

type NotificationIDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type DeadLetterFilter struct {
	Limit int `form:"limit,default=50" binding:"min=1,max=500"`
}
