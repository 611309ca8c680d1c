package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"anoa.com/tunehub/internal/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestor_SelfNotificationNeverQueued(t *testing.T) {
	p := newPipeline(testConfig(), staticPrefs{})
	user := uuid.New()
	ctx := context.Background()

	p.ingestor.Enqueue(ctx, request(entity.TypeLike, user, user))
	assert.Equal(t, 0, p.queue.Len())

	n, err := p.ingestor.CreateNow(ctx, request(entity.TypeLike, user, user))
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.Equal(t, 0, p.store.count())
}

func TestIngestor_InvalidRequestDropped(t *testing.T) {
	p := newPipeline(testConfig(), staticPrefs{})
	ctx := context.Background()

	req := request(entity.TypeComment, uuid.New(), uuid.New())
	req.TargetType = ""
	p.ingestor.Enqueue(ctx, req)
	assert.Equal(t, 0, p.queue.Len())

	_, err := p.ingestor.CreateNow(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, 0, p.store.calls)
}

func TestIngestor_MarkupOnlyContentIsInvalid(t *testing.T) {
	p := newPipeline(testConfig(), staticPrefs{})

	req := request(entity.TypeComment, uuid.New(), uuid.New())
	req.Content = "<script></script>"
	_, err := p.ingestor.CreateNow(context.Background(), req)

	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestIngestor_IncompleteParentRejected(t *testing.T) {
	p := newPipeline(testConfig(), staticPrefs{})

	req := request(entity.TypeReply, uuid.New(), uuid.New())
	req.ParentContent = &entity.ParentContent{ID: uuid.New()}
	_, err := p.ingestor.CreateNow(context.Background(), req)

	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestIngestor_EnqueuePreparesRequest(t *testing.T) {
	p := newPipeline(testConfig(), staticPrefs{})
	ctx := context.Background()

	req := request(entity.TypeComment, uuid.New(), uuid.New())
	req.Content = "  <b>commented</b> on your album "
	p.ingestor.Enqueue(ctx, req)

	keyed := request(entity.TypeLike, uuid.New(), uuid.New())
	keyed.EventKey = "like:actor:target"
	p.ingestor.Enqueue(ctx, keyed)

	items := p.queue.DrainUpTo(10)
	require.Len(t, items, 2)
	assert.Equal(t, "commented on your album", items[0].Request.Content)
	assert.NotEmpty(t, items[0].Request.EventKey)
	assert.Zero(t, items[0].Attempts)
	assert.Equal(t, "like:actor:target", items[1].Request.EventKey)
}

func TestIngestor_ContentKeepsPlainTextCharacters(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"quotes and ampersand", `liked your album "Rock & Roll" - it's great`, `liked your album "Rock & Roll" - it's great`},
		{"tags stripped", `<i>it's</i> <a href="x">Rock & Roll</a>`, `it's Rock & Roll`},
		{"comparison signs", "rated it 5 > 4", "rated it 5 > 4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(testConfig(), staticPrefs{})
			req := request(entity.TypeLike, uuid.New(), uuid.New())
			req.Content = tt.content

			p.ingestor.Enqueue(ctx, req)
			require.NoError(t, p.processor.Flush(ctx))

			stored := p.store.stored()
			require.Len(t, stored, 1)
			assert.Equal(t, tt.want, stored[0].Content)

			sent := p.dispatcher.received()
			require.Len(t, sent, 1)
			assert.Equal(t, tt.want, sent[0].n.Content)
		})
	}
}

func TestIngestor_ContentLengthCheckedOnPlainText(t *testing.T) {
	p := newPipeline(testConfig(), staticPrefs{})

	req := request(entity.TypeComment, uuid.New(), uuid.New())
	req.Content = strings.Repeat("&", 2000)
	n, err := p.ingestor.CreateNow(context.Background(), req)

	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Len(t, n.Content, 2000)
}

func TestIngestor_BatchSizeTriggersFlush(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 3
	p := newPipeline(cfg, staticPrefs{})
	ctx := context.Background()
	recipient := uuid.New()

	p.ingestor.Enqueue(ctx, request(entity.TypeLike, recipient, uuid.New()))
	p.ingestor.Enqueue(ctx, request(entity.TypeLike, recipient, uuid.New()))
	assert.Never(t, func() bool { return p.store.count() > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	p.ingestor.Enqueue(ctx, request(entity.TypeLike, recipient, uuid.New()))
	require.Eventually(t, func() bool { return p.store.count() == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, p.queue.Len())
}

func TestIngestor_CreateNow(t *testing.T) {
	recipient, muted := uuid.New(), uuid.New()
	prefs := staticPrefs{snapshots: map[uuid.UUID]entity.PreferenceSnapshot{
		muted: {All: true, Categories: map[entity.Category]bool{entity.CategoryFollow: false}},
	}}
	p := newPipeline(testConfig(), prefs)
	ctx := context.Background()

	req := request(entity.TypeFollow, recipient, uuid.New())
	req.EventKey = "follow:1"
	n, err := p.ingestor.CreateNow(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, recipient, n.UserID)
	assert.False(t, n.IsRead)

	again, err := p.ingestor.CreateNow(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, again, "duplicate event key")

	filtered, err := p.ingestor.CreateNow(ctx, request(entity.TypeFollow, muted, uuid.New()))
	require.NoError(t, err)
	assert.Nil(t, filtered)

	assert.Equal(t, 1, p.store.count())
	assert.Empty(t, p.dispatcher.received(), "CreateNow does not push")
	assert.Equal(t, 0, p.queue.Len())
}

func TestIngestor_CreateNowStoreFailure(t *testing.T) {
	p := newPipeline(testConfig(), staticPrefs{})
	p.store.alwaysFail = true

	n, err := p.ingestor.CreateNow(context.Background(), request(entity.TypeMention, uuid.New(), uuid.New()))

	assert.Nil(t, n)
	assert.ErrorIs(t, err, errDatabaseDown)
}

func TestIngestor_CreateNowPreferenceFailureFailsOpen(t *testing.T) {
	p := newPipeline(testConfig(), staticPrefs{err: errDatabaseDown})

	n, err := p.ingestor.CreateNow(context.Background(), request(entity.TypeLike, uuid.New(), uuid.New()))

	require.NoError(t, err)
	assert.NotNil(t, n)
}
