// Package deadletter holds notification requests that exhausted their
// persistence attempts.
package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"anoa.com/tunehub/internal/entity"
	"anoa.com/tunehub/internal/modules/notification/queue"
	"anoa.com/tunehub/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Record is one dead-lettered request as stored in redis.
type Record struct {
	Request  entity.NotificationRequest `json:"request"`
	Attempts int                        `json:"attempts"`
	Error    string                     `json:"error"`
	FailedAt time.Time                  `json:"failed_at"`
}

func newRecords(items []queue.Item, cause error, now time.Time) []Record {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	records := make([]Record, 0, len(items))
	for _, it := range items {
		records = append(records, Record{
			Request:  it.Request,
			Attempts: it.Attempts,
			Error:    msg,
			FailedAt: now.UTC(),
		})
	}
	return records
}

// RedisSink pushes records onto a redis list, newest first.
type RedisSink struct {
	client *redis.Client
	key    string
	log    *slog.Logger
}

func NewRedisSink(client *redis.Client, key string, log *slog.Logger) *RedisSink {
	return &RedisSink{client: client, key: key, log: log}
}

func (s *RedisSink) Put(ctx context.Context, items []queue.Item, cause error) error {
	if len(items) == 0 {
		return nil
	}

	records := newRecords(items, cause, time.Now())
	values := make([]any, 0, len(records))
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode dead letter: %w", err)
		}
		values = append(values, b)
	}

	if err := s.client.LPush(ctx, s.key, values...).Err(); err != nil {
		return fmt.Errorf("push dead letters to %s: %w", s.key, err)
	}

	s.log.LogAttrs(ctx, slog.LevelWarn, "notifications dead-lettered",
		logger.Count(len(items)),
		slog.String("key", s.key),
		logger.Error(cause),
	)
	return nil
}

// List returns up to limit records, newest first.
func (s *RedisSink) List(ctx context.Context, limit int64) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}
	raw, err := s.client.LRange(ctx, s.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read dead letters: %w", err)
	}

	records := make([]Record, 0, len(raw))
	for _, v := range raw {
		var r Record
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			s.log.Warn("skipping malformed dead letter", logger.Error(err))
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// LogSink is used when redis is not configured. Records only reach the log.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Put(ctx context.Context, items []queue.Item, cause error) error {
	for _, r := range newRecords(items, cause, time.Now()) {
		s.log.LogAttrs(ctx, slog.LevelError, "notification dead-lettered",
			logger.UserID(r.Request.RecipientID),
			logger.NotificationType(string(r.Request.Type)),
			slog.String("event_key", r.Request.EventKey),
			slog.Int("attempts", r.Attempts),
			slog.String("error", r.Error),
		)
	}
	return nil
}
