package repository

import (
	"context"
	"errors"

	"anoa.com/tunehub/internal/entity"
	"anoa.com/tunehub/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PreferenceRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.NotificationPreference, error)
}

type preferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

// FindByUserID returns apperror.ErrNotFound when the user never saved
// preferences.
func (r *preferenceRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.NotificationPreference, error) {
	var pref entity.NotificationPreference
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &pref, nil
}
