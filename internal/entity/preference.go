package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category is a user-facing mute switch. Several types share one category.
type Category string

const (
	CategoryNewContent Category = "new_content"
	CategoryComment    Category = "comment"
	CategoryLike       Category = "like"
	CategoryFollow     Category = "follow"
	CategoryMention    Category = "mention"
	CategoryTag        Category = "tag"
)

var categories = []Category{
	CategoryNewContent,
	CategoryComment,
	CategoryLike,
	CategoryFollow,
	CategoryMention,
	CategoryTag,
}

var knownTypes = []Type{
	TypeNewAlbum,
	TypeNewPlaylist,
	TypeComment,
	TypeReply,
	TypeLike,
	TypeFollow,
	TypeMention,
	TypeAlbumTagged,
	TypePlaylistTagged,
}

var typeCategories = map[Type]Category{
	TypeNewAlbum:       CategoryNewContent,
	TypeNewPlaylist:    CategoryNewContent,
	TypeComment:        CategoryComment,
	TypeReply:          CategoryComment,
	TypeLike:           CategoryLike,
	TypeFollow:         CategoryFollow,
	TypeMention:        CategoryMention,
	TypeAlbumTagged:    CategoryTag,
	TypePlaylistTagged: CategoryTag,
}

func init() {
	if err := validateCategoryTable(knownTypes, categories, typeCategories); err != nil {
		panic(err)
	}
}

// validateCategoryTable checks that every declared type maps to a declared
// category.
func validateCategoryTable(types []Type, cats []Category, table map[Type]Category) error {
	declared := make(map[Category]struct{}, len(cats))
	for _, c := range cats {
		declared[c] = struct{}{}
	}
	for _, t := range types {
		c, ok := table[t]
		if !ok {
			return fmt.Errorf("notification type %q has no preference category", t)
		}
		if _, ok := declared[c]; !ok {
			return fmt.Errorf("notification type %q maps to undeclared category %q", t, c)
		}
	}
	return nil
}

// CategoryOf returns the preference category of t. ok is false for types
// the table does not know about.
func CategoryOf(t Type) (Category, bool) {
	c, ok := typeCategories[t]
	return c, ok
}

// PreferenceSnapshot is the read-only view of a recipient's mute settings.
type PreferenceSnapshot struct {
	All        bool              `json:"all"`
	Categories map[Category]bool `json:"categories,omitempty"`
}

// DefaultSnapshot is used when a user never stored preferences.
func DefaultSnapshot() PreferenceSnapshot {
	return PreferenceSnapshot{All: true}
}

// Allows decides inclusion for a notification type. Only an explicit false
// on a known category drops the item.
func (p PreferenceSnapshot) Allows(t Type) bool {
	if !p.All {
		return false
	}
	c, ok := CategoryOf(t)
	if !ok {
		return true
	}
	enabled, set := p.Categories[c]
	return !set || enabled
}

type NotificationPreference struct {
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	All        bool      `gorm:"not null;default:true" json:"all"`
	NewContent bool      `gorm:"not null;default:true" json:"new_content"`
	Comment    bool      `gorm:"not null;default:true" json:"comment"`
	Like       bool      `gorm:"not null;default:true" json:"like"`
	Follow     bool      `gorm:"not null;default:true" json:"follow"`
	Mention    bool      `gorm:"not null;default:true" json:"mention"`
	Tag        bool      `gorm:"not null;default:true" json:"tag"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NotificationPreference) TableName() string { return "notification_preferences" }

func (p NotificationPreference) Snapshot() PreferenceSnapshot {
	return PreferenceSnapshot{
		All: p.All,
		Categories: map[Category]bool{
			CategoryNewContent: p.NewContent,
			CategoryComment:    p.Comment,
			CategoryLike:       p.Like,
			CategoryFollow:     p.Follow,
			CategoryMention:    p.Mention,
			CategoryTag:        p.Tag,
		},
	}
}
