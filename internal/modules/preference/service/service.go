package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"anoa.com/tunehub/internal/entity"
	prefRepo "anoa.com/tunehub/internal/modules/preference/repository"
	"anoa.com/tunehub/pkg/apperror"
	"anoa.com/tunehub/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Client reads a recipient's mute settings. It never writes them.
type Client interface {
	GetSnapshot(ctx context.Context, userID uuid.UUID) (entity.PreferenceSnapshot, error)
}

type client struct {
	repo        prefRepo.PreferenceRepository
	redisClient *redis.Client
	ttl         time.Duration
	log         *slog.Logger
}

// NewClient builds the preference client. redisClient may be nil, in
// which case every lookup goes to the database.
func NewClient(repo prefRepo.PreferenceRepository, redisClient *redis.Client, ttl time.Duration, log *slog.Logger) Client {
	return &client{
		repo:        repo,
		redisClient: redisClient,
		ttl:         ttl,
		log:         log,
	}
}

func cacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("notification_prefs:%s", userID.String())
}

func (c *client) GetSnapshot(ctx context.Context, userID uuid.UUID) (entity.PreferenceSnapshot, error) {
	if snap, ok := c.fromCache(ctx, userID); ok {
		return snap, nil
	}

	snap := entity.DefaultSnapshot()
	pref, err := c.repo.FindByUserID(ctx, userID)
	switch {
	case err == nil:
		snap = pref.Snapshot()
	case errors.Is(err, apperror.ErrNotFound):
		// no stored row, permissive default
	default:
		return entity.PreferenceSnapshot{}, fmt.Errorf("failed to load preferences for %s: %w", userID, err)
	}

	c.toCache(ctx, userID, snap)
	return snap, nil
}

func (c *client) fromCache(ctx context.Context, userID uuid.UUID) (entity.PreferenceSnapshot, bool) {
	if c.redisClient == nil {
		return entity.PreferenceSnapshot{}, false
	}

	raw, err := c.redisClient.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.LogAttrs(ctx, slog.LevelWarn, "preference cache read failed",
				logger.UserID(userID),
				logger.Error(err),
			)
		}
		return entity.PreferenceSnapshot{}, false
	}

	var snap entity.PreferenceSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.log.LogAttrs(ctx, slog.LevelWarn, "discarding corrupt preference cache entry",
			logger.UserID(userID),
			logger.Error(err),
		)
		return entity.PreferenceSnapshot{}, false
	}
	return snap, true
}

func (c *client) toCache(ctx context.Context, userID uuid.UUID, snap entity.PreferenceSnapshot) {
	if c.redisClient == nil || c.ttl <= 0 {
		return
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.redisClient.Set(ctx, cacheKey(userID), payload, c.ttl).Err(); err != nil {
		c.log.LogAttrs(ctx, slog.LevelWarn, "preference cache write failed",
			logger.UserID(userID),
			logger.Error(err),
		)
	}
}
