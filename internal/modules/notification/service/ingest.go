package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"anoa.com/tunehub/internal/entity"
	"anoa.com/tunehub/internal/modules/notification/queue"
	"anoa.com/tunehub/pkg/logger"
	appValidator "anoa.com/tunehub/pkg/validator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

var errSelfNotification = errors.New("self notification")

type flushTrigger interface {
	TriggerFlush()
}

// Ingestor is the Publisher handed to producers.
type Ingestor struct {
	queue     *queue.Queue
	store     Store
	prefs     PreferenceReader
	flusher   flushTrigger
	batchSize int
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
	log       *slog.Logger
}

var _ Publisher = (*Ingestor)(nil)

func NewIngestor(q *queue.Queue, store Store, prefs PreferenceReader, flusher flushTrigger, batchSize int, log *slog.Logger) *Ingestor {
	return &Ingestor{
		queue:     q,
		store:     store,
		prefs:     prefs,
		flusher:   flusher,
		batchSize: batchSize,
		validate:  validator.New(),
		sanitizer: bluemonday.StrictPolicy(),
		log:       log,
	}
}

func (in *Ingestor) Enqueue(ctx context.Context, req entity.NotificationRequest) {
	req, err := in.prepare(req)
	if err != nil {
		in.drop(ctx, req, err)
		return
	}

	length := in.queue.Push(queue.Item{Request: req})
	enqueuedTotal.Inc()
	queueLength.Set(float64(length))

	if length >= in.batchSize {
		in.flusher.TriggerFlush()
	}
}

func (in *Ingestor) CreateNow(ctx context.Context, req entity.NotificationRequest) (*entity.Notification, error) {
	req, err := in.prepare(req)
	if err != nil {
		in.drop(ctx, req, err)
		if errors.Is(err, errSelfNotification) {
			return nil, nil
		}
		return nil, err
	}

	snap, err := in.prefs.GetSnapshot(ctx, req.RecipientID)
	if err != nil {
		in.log.LogAttrs(ctx, slog.LevelWarn, "preference lookup failed, including notification",
			logger.UserID(req.RecipientID),
			logger.Error(err),
		)
		snap = entity.DefaultSnapshot()
	}
	if !snap.Allows(req.Type) {
		filteredTotal.Inc()
		in.log.LogAttrs(ctx, slog.LevelDebug, "notification filtered by preferences",
			logger.UserID(req.RecipientID),
			logger.NotificationType(string(req.Type)),
		)
		return nil, nil
	}

	n := req.ToNotification()
	created, err := in.store.InsertOne(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	if !created {
		return nil, nil
	}
	persistedTotal.Inc()
	return n, nil
}

// prepare rejects self-notifications and invalid requests, strips markup
// from the content and assigns an event key when the producer left it empty.
// Content is plain text, so the entities the sanitizer escapes are decoded
// again after the tags are gone.
func (in *Ingestor) prepare(req entity.NotificationRequest) (entity.NotificationRequest, error) {
	if req.IsSelf() {
		return req, errSelfNotification
	}

	req.Content = strings.TrimSpace(html.UnescapeString(in.sanitizer.Sanitize(req.Content)))
	if err := in.validate.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %s", ErrInvalidRequest, appValidator.FormatValidationError(err))
	}

	if req.EventKey == "" {
		key, err := uuid.NewV7()
		if err != nil {
			return req, fmt.Errorf("assign event key: %w", err)
		}
		req.EventKey = key.String()
	}
	return req, nil
}

func (in *Ingestor) drop(ctx context.Context, req entity.NotificationRequest, err error) {
	if errors.Is(err, errSelfNotification) {
		droppedTotal.WithLabelValues(reasonSelf).Inc()
		in.log.LogAttrs(ctx, slog.LevelDebug, "self notification dropped",
			logger.UserID(req.RecipientID),
			logger.NotificationType(string(req.Type)),
		)
		return
	}

	droppedTotal.WithLabelValues(reasonInvalid).Inc()
	in.log.LogAttrs(ctx, slog.LevelWarn, "notification request dropped",
		logger.UserID(req.RecipientID),
		logger.NotificationType(string(req.Type)),
		logger.Reason(reasonInvalid),
		logger.Error(err),
	)
}
