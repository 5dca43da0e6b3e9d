package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topicrag/internal/domain"
)

func TestFileIndex_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "vectors.json")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Upsert(ctx, "topic-a", []domain.VectorRecord{
		{ID: "a-0", Values: []float32{1, 0}, Metadata: map[string]any{domain.MetaChunkIndex: 0, domain.MetaTopic: "a"}},
		{ID: "a-1", Values: []float32{0, 1}, Metadata: map[string]any{domain.MetaChunkIndex: 1, domain.MetaTopic: "a"}},
	}))
	require.NoError(t, first.Upsert(ctx, "topic-b", []domain.VectorRecord{{ID: "b-0", Values: []float32{1, 1}}}))
	require.NoError(t, first.DeleteNamespace(ctx, "topic-b"))
	assert.FileExists(t, path)

	second, err := Open(path)
	require.NoError(t, err)
	stats, err := second.DescribeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Dimension)
	assert.Equal(t, 2, stats.TotalVectors)
	assert.NotContains(t, stats.Namespaces, "topic-b")

	matches, err := second.Query(ctx, "topic-a", []float32{0, 1}, 1, map[string]any{domain.MetaChunkIndex: 1})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a-1", matches[0].ID)
	idx, ok := domain.MetaInt(matches[0].Metadata, domain.MetaChunkIndex)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestFileIndex_OpenMissingFile(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	stats, err := f.DescribeStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalVectors)
}
