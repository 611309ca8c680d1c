package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Type tags what happened. Values are part of the wire format.
type Type string

const (
	TypeNewAlbum       Type = "NEW_ALBUM"
	TypeNewPlaylist    Type = "NEW_PLAYLIST"
	TypeComment        Type = "COMMENT"
	TypeReply          Type = "REPLY"
	TypeLike           Type = "LIKE"
	TypeFollow         Type = "FOLLOW"
	TypeMention        Type = "MENTION"
	TypeAlbumTagged    Type = "ALBUM_TAGGED"
	TypePlaylistTagged Type = "PLAYLIST_TAGGED"
)

// ParentContent points at the containing entity when the notification is
// about a sub-entity, e.g. the comment thread a reply belongs to.
type ParentContent struct {
	ID   uuid.UUID `json:"id" validate:"required"`
	Type string    `json:"type" validate:"required,max=50"`
}

// NotificationRequest is what producers hand to the pipeline. Content is
// already rendered.
type NotificationRequest struct {
	Type          Type           `json:"type" binding:"required" validate:"required,max=50"`
	Content       string         `json:"content" binding:"required" validate:"required,max=2000"`
	RecipientID   uuid.UUID      `json:"recipient_id" binding:"required" validate:"required"`
	ActorID       uuid.UUID      `json:"actor_id" binding:"required" validate:"required"`
	TargetID      uuid.UUID      `json:"target_id" binding:"required" validate:"required"`
	TargetType    string         `json:"target_type" binding:"required" validate:"required,max=50"`
	ParentContent *ParentContent `json:"parent_content,omitempty"`
	// EventKey is the natural key used to skip duplicates on insert.
	// Assigned at ingest when the producer leaves it empty.
	EventKey string `json:"event_key,omitempty" validate:"max=191"`
}

// IsSelf reports whether the actor would notify themselves.
func (r NotificationRequest) IsSelf() bool {
	return r.RecipientID == r.ActorID
}

// ToNotification builds the row to persist. ID and CreatedAt are filled by
// gorm on insert.
func (r NotificationRequest) ToNotification() *Notification {
	n := &Notification{
		UserID:     r.RecipientID,
		ActorID:    r.ActorID,
		TargetID:   r.TargetID,
		TargetType: r.TargetType,
		Type:       r.Type,
		Content:    r.Content,
		EventKey:   r.EventKey,
	}
	if r.ParentContent != nil {
		id := r.ParentContent.ID
		parentType := r.ParentContent.Type
		n.ParentID = &id
		n.ParentType = &parentType
	}
	return n
}

type Notification struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_notifications_user_created,priority:1" json:"recipient_id"` // recipient
	ActorID    uuid.UUID  `gorm:"type:uuid;not null" json:"actor_id"`
	TargetID   uuid.UUID  `gorm:"type:uuid;not null" json:"target_id"`
	TargetType string     `gorm:"size:50;not null" json:"target_type"`
	ParentID   *uuid.UUID `gorm:"type:uuid" json:"parent_id,omitempty"`
	ParentType *string    `gorm:"size:50" json:"parent_type,omitempty"`
	Type       Type       `gorm:"size:50;not null" json:"type"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	EventKey   string     `gorm:"size:191;not null;uniqueIndex" json:"-"`
	IsRead     bool       `gorm:"not null" json:"is_read"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index:idx_notifications_user_created,priority:2" json:"created_at"`

	Actor *User `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID, err = uuid.NewV7()
	}
	return
}

// Parent returns the deep-link parent, if any.
func (n *Notification) Parent() *ParentContent {
	if n.ParentID == nil || n.ParentType == nil {
		return nil
	}
	return &ParentContent{ID: *n.ParentID, Type: *n.ParentType}
}
