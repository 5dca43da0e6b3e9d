package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topicrag/internal/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC)

	in := domain.Session{
		SessionID:       "session-20240501100000-abcd1234",
		InputMethod:     domain.InputTopicSearch,
		Topic:           "go concurrency",
		Namespace:       "topic-0123456789abcdef",
		ChunkCount:      12,
		VectorsUpserted: 11,
		Status:          domain.StatusProcessed,
		Summary:         "About goroutines.",
		Strategy:        "chapter",
		VideoSummaries:  []domain.VideoSummary{{VideoID: "v1", Title: "Intro", NumChapters: 3}},
		MissingSources:  []domain.MissingSource{{ID: "v2", Title: "No captions"}},
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	require.NoError(t, store.Save(ctx, in))

	got, err := store.Get(ctx, in.SessionID)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestStore_SaveUpdatesExisting(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	sess := domain.Session{SessionID: "s1", Topic: "t", Status: domain.StatusProcessed, CreatedAt: created, UpdatedAt: created}
	require.NoError(t, store.Save(ctx, sess))

	sess.Summary = "new summary"
	sess.UpdatedAt = created.Add(time.Hour)
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "new summary", got.Summary)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, created.Add(time.Hour), got.UpdatedAt)

	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		at := base.Add(time.Duration(i) * 24 * time.Hour)
		require.NoError(t, store.Save(ctx, domain.Session{SessionID: id, CreatedAt: at, UpdatedAt: at}))
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 0, []string{"new", "mid", "old"}},
		{"limited", 2, []string{"new", "mid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := store.List(ctx, tt.limit)
			require.NoError(t, err)
			var ids []string
			for _, s := range list {
				ids = append(ids, s.SessionID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "missing"), domain.ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	now := time.Now()
	require.NoError(t, store.Save(ctx, domain.Session{SessionID: "s1", CreatedAt: now, UpdatedAt: now}))

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	now := time.Date(2024, 2, 2, 2, 2, 2, 0, time.UTC)

	first, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, domain.Session{SessionID: "s1", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, first.Close())

	second, err := NewStore(dir)
	require.NoError(t, err)
	defer second.Close()
	_, err = second.Get(ctx, "s1")
	assert.NoError(t, err)
}
