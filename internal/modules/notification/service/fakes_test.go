package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"anoa.com/tunehub/internal/config"
	"anoa.com/tunehub/internal/entity"
	"anoa.com/tunehub/internal/modules/notification/queue"
	"anoa.com/tunehub/pkg/logger"
	"github.com/google/uuid"
)

var errDatabaseDown = errors.New("database down")

// memoryStore mimics the gorm repository: event keys are unique and the
// actor is attached to returned rows.
type memoryStore struct {
	mu         sync.Mutex
	rows       map[string]entity.Notification
	order      []string
	users      map[uuid.UUID]entity.User
	failures   int
	alwaysFail bool
	calls      int

	entered chan struct{}
	release chan struct{}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		rows:  make(map[string]entity.Notification),
		users: make(map[uuid.UUID]entity.User),
	}
}

func (s *memoryStore) BulkInsert(ctx context.Context, notifications []*entity.Notification) ([]entity.Notification, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.alwaysFail {
		return nil, errDatabaseDown
	}
	if s.failures > 0 {
		s.failures--
		return nil, errDatabaseDown
	}

	inserted := make([]entity.Notification, 0, len(notifications))
	for _, n := range notifications {
		if row, ok := s.insertLocked(n); ok {
			inserted = append(inserted, row)
		}
	}
	return inserted, nil
}

func (s *memoryStore) InsertOne(ctx context.Context, n *entity.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.alwaysFail {
		return false, errDatabaseDown
	}
	row, ok := s.insertLocked(n)
	if ok {
		*n = row
	}
	return ok, nil
}

func (s *memoryStore) insertLocked(n *entity.Notification) (entity.Notification, bool) {
	if _, exists := s.rows[n.EventKey]; exists {
		return entity.Notification{}, false
	}
	row := *n
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = time.Now()
	if u, ok := s.users[row.ActorID]; ok {
		row.Actor = &u
	}
	s.rows[row.EventKey] = row
	s.order = append(s.order, row.EventKey)
	return row, true
}

func (s *memoryStore) stored() []entity.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Notification, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.rows[k])
	}
	return out
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type staticPrefs struct {
	snapshots map[uuid.UUID]entity.PreferenceSnapshot
	err       error
}

func (p staticPrefs) GetSnapshot(ctx context.Context, userID uuid.UUID) (entity.PreferenceSnapshot, error) {
	if p.err != nil {
		return entity.PreferenceSnapshot{}, p.err
	}
	if snap, ok := p.snapshots[userID]; ok {
		return snap, nil
	}
	return entity.DefaultSnapshot(), nil
}

type dispatched struct {
	userID uuid.UUID
	n      entity.Notification
}

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatched
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, userID uuid.UUID, n entity.Notification) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatched{userID: userID, n: n})
	return 1
}

func (d *recordingDispatcher) received() []dispatched {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatched(nil), d.calls...)
}

type recordingSink struct {
	mu    sync.Mutex
	items []queue.Item
	cause error
}

func (s *recordingSink) Put(ctx context.Context, items []queue.Item, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, items...)
	s.cause = cause
	return nil
}

func testConfig() config.NotificationConfig {
	return config.NotificationConfig{
		BatchSize:             100,
		FlushInterval:         time.Hour,
		MaxAttempts:           5,
		PreferenceConcurrency: 4,
	}
}

type pipeline struct {
	queue      *queue.Queue
	store      *memoryStore
	dispatcher *recordingDispatcher
	sink       *recordingSink
	processor  *Processor
	ingestor   *Ingestor
}

func newPipeline(cfg config.NotificationConfig, prefs PreferenceReader) *pipeline {
	p := &pipeline{
		queue:      queue.New(),
		store:      newMemoryStore(),
		dispatcher: &recordingDispatcher{},
		sink:       &recordingSink{},
	}
	p.processor = NewProcessor(p.queue, p.store, prefs, p.dispatcher, p.sink, cfg, logger.Discard())
	p.ingestor = NewIngestor(p.queue, p.store, prefs, p.processor, cfg.BatchSize, logger.Discard())
	return p
}

func request(t entity.Type, recipient, actor uuid.UUID) entity.NotificationRequest {
	return entity.NotificationRequest{
		Type:        t,
		Content:     "something happened",
		RecipientID: recipient,
		ActorID:     actor,
		TargetID:    uuid.New(),
		TargetType:  "Album",
	}
}
