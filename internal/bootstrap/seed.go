package bootstrap

import (
	"log/slog"

	"anoa.com/tunehub/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.Notification{},
		&entity.NotificationPreference{},
	)
}

// DemoUsers are created in development so the internal publish endpoint
// has actors with names and avatars to resolve.
var DemoUsers = []entity.User{
	{Username: "demo_artist"},
	{Username: "demo_listener"},
}

// SeedDemoUsers inserts DemoUsers that do not exist yet. The second demo
// user gets a preference row muting likes.
func SeedDemoUsers(db *gorm.DB, log *slog.Logger) error {
	for i := range DemoUsers {
		u := DemoUsers[i]

		var existing entity.User
		err := db.Where("username = ?", u.Username).Limit(1).Find(&existing).Error
		if err != nil {
			return err
		}
		if existing.ID != uuid.Nil {
			DemoUsers[i] = existing
			continue
		}

		if err := db.Create(&u).Error; err != nil {
			return err
		}
		DemoUsers[i] = u
		log.Info("demo user seeded", slog.String("username", u.Username), slog.String("id", u.ID.String()))
	}

	muted := entity.NotificationPreference{
		UserID:     DemoUsers[1].ID,
		All:        true,
		NewContent: true,
		Comment:    true,
		Like:       false,
		Follow:     true,
		Mention:    true,
		Tag:        true,
	}
	// Select("*") keeps the false column; gorm would otherwise fall back to
	// the column default.
	return db.Clauses(clause.OnConflict{DoNothing: true}).Select("*").Create(&muted).Error
}
