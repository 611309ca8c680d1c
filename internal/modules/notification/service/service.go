// Package service turns notification requests into persisted records and
// live pushes. The Ingestor queues requests and the Processor flushes them
// in batches.
package service

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/tunehub/internal/entity"
	"anoa.com/tunehub/internal/modules/notification/queue"
	"anoa.com/tunehub/pkg/apperror"
	"github.com/google/uuid"
)

var (
	ErrFlushInProgress = errors.New("notification flush already in progress")
	ErrInvalidRequest  = fmt.Errorf("invalid notification request: %w", apperror.ErrInvalidInput)
)

// Publisher is what producing domain services depend on.
type Publisher interface {
	// Enqueue queues req for the next batch. It never blocks on I/O and
	// never reports failures to the caller.
	Enqueue(ctx context.Context, req entity.NotificationRequest)
	// CreateNow persists req immediately. It returns nil without error when
	// the request is a self-notification, filtered by preferences, or a
	// duplicate of an existing event.
	CreateNow(ctx context.Context, req entity.NotificationRequest) (*entity.Notification, error)
}

type Store interface {
	BulkInsert(ctx context.Context, notifications []*entity.Notification) ([]entity.Notification, error)
	InsertOne(ctx context.Context, notification *entity.Notification) (bool, error)
}

type PreferenceReader interface {
	GetSnapshot(ctx context.Context, userID uuid.UUID) (entity.PreferenceSnapshot, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, userID uuid.UUID, n entity.Notification) int
}

// DeadLetterSink receives items that failed MaxAttempts flushes.
type DeadLetterSink interface {
	Put(ctx context.Context, items []queue.Item, cause error) error
}
