package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"anoa.com/tunehub/internal/config"
	"anoa.com/tunehub/internal/entity"
	"anoa.com/tunehub/internal/modules/notification/deadletter"
	"anoa.com/tunehub/internal/modules/notification/queue"
	"anoa.com/tunehub/pkg/logger"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Processor drains the queue in batches on a timer and whenever the
// Ingestor reports the size watermark was reached.
type Processor struct {
	queue       *queue.Queue
	store       Store
	prefs       PreferenceReader
	dispatcher  Dispatcher
	deadLetters DeadLetterSink
	fallback    DeadLetterSink
	cfg         config.NotificationConfig
	log         *slog.Logger

	flushMu sync.Mutex
	cron    *cron.Cron

	mu        sync.Mutex
	stopped   bool
	triggered sync.WaitGroup
}

func NewProcessor(
	q *queue.Queue,
	store Store,
	prefs PreferenceReader,
	dispatcher Dispatcher,
	deadLetters DeadLetterSink,
	cfg config.NotificationConfig,
	log *slog.Logger,
) *Processor {
	cl := cronLogger{log: log}
	return &Processor{
		queue:       q,
		store:       store,
		prefs:       prefs,
		dispatcher:  dispatcher,
		deadLetters: deadLetters,
		fallback:    deadletter.NewLogSink(log),
		cfg:         cfg,
		log:         log,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Start schedules the periodic flush.
func (p *Processor) Start() error {
	schedule := "@every " + p.cfg.FlushInterval.String()
	if _, err := p.cron.AddFunc(schedule, func() { p.flushBacklog(context.Background()) }); err != nil {
		return fmt.Errorf("schedule notification flush: %w", err)
	}
	p.cron.Start()

	p.log.Info("notification processor started",
		slog.Duration("interval", p.cfg.FlushInterval),
		slog.Int("batch_size", p.cfg.BatchSize),
	)
	return nil
}

// Stop halts the timer, waits for running flushes and then flushes what is
// left in the queue. Items that still fail are lost with the process and
// reported in the returned error.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	idle := make(chan struct{})
	go func() {
		<-p.cron.Stop().Done()
		p.triggered.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		return fmt.Errorf("wait for running flushes: %w", ctx.Err())
	}

	for p.queue.Len() > 0 {
		if err := p.Flush(ctx); err != nil {
			return fmt.Errorf("final flush left %d notifications: %w", p.queue.Len(), err)
		}
	}
	p.log.Info("notification processor stopped")
	return nil
}

// TriggerFlush runs an out-of-band flush without blocking the caller.
func (p *Processor) TriggerFlush() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.triggered.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.triggered.Done()
		p.flushBacklog(context.Background())
	}()
}

// flushBacklog keeps flushing while the queue stays at or above the
// watermark. A skipped or failed flush ends the loop.
func (p *Processor) flushBacklog(ctx context.Context) {
	for {
		err := p.Flush(ctx)
		if errors.Is(err, ErrFlushInProgress) {
			p.log.Debug("flush skipped, another flush is running")
			return
		}
		if err != nil {
			return
		}
		if p.queue.Len() < p.cfg.BatchSize {
			return
		}
	}
}

// Flush processes one batch of at most BatchSize items. A concurrent call
// returns ErrFlushInProgress without touching the queue.
func (p *Processor) Flush(ctx context.Context) error {
	if !p.flushMu.TryLock() {
		return ErrFlushInProgress
	}
	defer p.flushMu.Unlock()

	batch := p.queue.DrainUpTo(p.cfg.BatchSize)
	queueLength.Set(float64(p.queue.Len()))
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { flushDuration.Observe(time.Since(start).Seconds()) }()

	kept := p.filter(ctx, batch)
	if len(kept) == 0 {
		return nil
	}

	rows := make([]*entity.Notification, 0, len(kept))
	for _, it := range kept {
		rows = append(rows, it.Request.ToNotification())
	}

	inserted, err := p.store.BulkInsert(ctx, rows)
	if err != nil {
		p.retryLater(ctx, batch, err)
		return fmt.Errorf("persist notification batch: %w", err)
	}

	persistedTotal.Add(float64(len(inserted)))
	if skipped := len(rows) - len(inserted); skipped > 0 {
		p.log.LogAttrs(ctx, slog.LevelDebug, "duplicate notifications skipped", logger.Count(skipped))
	}

	for _, n := range inserted {
		p.dispatcher.Dispatch(ctx, n.UserID, n)
	}

	p.log.LogAttrs(ctx, slog.LevelDebug, "notification batch flushed",
		slog.Int("drained", len(batch)),
		slog.Int("persisted", len(inserted)),
	)
	return nil
}

// retryLater puts a failed batch back at the head of the queue. Items that
// reached MaxAttempts go to the dead-letter sink instead.
func (p *Processor) retryLater(ctx context.Context, batch []queue.Item, cause error) {
	retry := make([]queue.Item, 0, len(batch))
	var dead []queue.Item
	for _, it := range batch {
		it.Attempts++
		if it.Attempts >= p.cfg.MaxAttempts {
			dead = append(dead, it)
			continue
		}
		retry = append(retry, it)
	}

	if len(retry) > 0 {
		length := p.queue.PushFront(retry...)
		queueLength.Set(float64(length))
		requeuedTotal.Add(float64(len(retry)))
		p.log.LogAttrs(ctx, slog.LevelWarn, "notification batch failed, requeued",
			logger.Count(len(retry)),
			slog.Int("queue_length", length),
			logger.Error(cause),
		)
	}

	if len(dead) > 0 {
		deadLetteredTotal.Add(float64(len(dead)))
		if err := p.deadLetters.Put(ctx, dead, cause); err != nil {
			p.log.LogAttrs(ctx, slog.LevelError, "dead-letter sink failed", logger.Count(len(dead)), logger.Error(err))
			_ = p.fallback.Put(ctx, dead, cause)
		}
	}
}

// filter drops items the recipient opted out of. Preferences are looked up
// once per distinct recipient.
func (p *Processor) filter(ctx context.Context, batch []queue.Item) []queue.Item {
	var recipients []uuid.UUID
	seen := make(map[uuid.UUID]struct{}, len(batch))
	for _, it := range batch {
		if _, ok := seen[it.Request.RecipientID]; ok {
			continue
		}
		seen[it.Request.RecipientID] = struct{}{}
		recipients = append(recipients, it.Request.RecipientID)
	}

	snapshots := p.snapshots(ctx, recipients)

	kept := make([]queue.Item, 0, len(batch))
	for _, it := range batch {
		if snapshots[it.Request.RecipientID].Allows(it.Request.Type) {
			kept = append(kept, it)
			continue
		}
		filteredTotal.Inc()
		p.log.LogAttrs(ctx, slog.LevelDebug, "notification filtered by preferences",
			logger.UserID(it.Request.RecipientID),
			logger.NotificationType(string(it.Request.Type)),
		)
	}
	return kept
}

func (p *Processor) snapshots(ctx context.Context, recipients []uuid.UUID) map[uuid.UUID]entity.PreferenceSnapshot {
	out := make(map[uuid.UUID]entity.PreferenceSnapshot, len(recipients))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(p.cfg.PreferenceConcurrency)
	for _, id := range recipients {
		g.Go(func() error {
			snap, err := p.prefs.GetSnapshot(ctx, id)
			if err != nil {
				p.log.LogAttrs(ctx, slog.LevelWarn, "preference lookup failed, including notifications",
					logger.UserID(id),
					logger.Error(err),
				)
				snap = entity.DefaultSnapshot()
			}
			mu.Lock()
			out[id] = snap
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
