package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topicrag/internal/domain"
)

func rec(id string, v []float32, md map[string]any) domain.VectorRecord {
	return domain.VectorRecord{ID: id, Values: v, Metadata: md}
}

func TestIndex_QueryRanksByCosine(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(2)
	require.NoError(t, idx.Upsert(ctx, "ns", []domain.VectorRecord{
		rec("a", []float32{1, 0}, nil),
		rec("b", []float32{0.7, 0.7}, nil),
		rec("c", []float32{0, 1}, nil),
	}))

	got, err := idx.Query(ctx, "ns", []float32{1, 0.1}, 2, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestIndex_NamespacesAreSeparate(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(0)
	require.NoError(t, idx.Upsert(ctx, "one", []domain.VectorRecord{rec("x", []float32{1, 0}, nil)}))
	require.NoError(t, idx.Upsert(ctx, "two", []domain.VectorRecord{rec("y", []float32{1, 0}, nil)}))

	got, err := idx.Query(ctx, "one", []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].ID)

	got, err = idx.Query(ctx, "missing", []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIndex_UpsertReplacesAndChecksDimension(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(2)
	require.NoError(t, idx.Upsert(ctx, "ns", []domain.VectorRecord{rec("a", []float32{1, 0}, map[string]any{"v": 1})}))
	require.NoError(t, idx.Upsert(ctx, "ns", []domain.VectorRecord{rec("a", []float32{0, 1}, map[string]any{"v": 2})}))

	stats, err := idx.DescribeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVectors)
	assert.Equal(t, 2, stats.Dimension)

	sample, err := idx.Sample(ctx, "ns", 5)
	require.NoError(t, err)
	require.Len(t, sample, 1)
	assert.Equal(t, 2, sample[0].Metadata["v"])

	err = idx.Upsert(ctx, "ns", []domain.VectorRecord{rec("b", []float32{1, 2, 3}, nil)})
	assert.Error(t, err)
	assert.Error(t, idx.Upsert(ctx, "", nil))
}

func TestIndex_Filter(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(2)
	require.NoError(t, idx.Upsert(ctx, "ns", []domain.VectorRecord{
		rec("a", []float32{1, 0}, map[string]any{"video_id": "v1", "chunk_index": 0}),
		rec("b", []float32{1, 0}, map[string]any{"video_id": "v2", "chunk_index": 0}),
	}))
	got, err := idx.Query(ctx, "ns", []float32{1, 0}, 5, map[string]any{"video_id": "v2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	got, err = idx.Query(ctx, "ns", []float32{1, 0}, 5, map[string]any{"chunk_index": float64(0)})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestIndex_DeleteNamespace(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(1)
	require.NoError(t, idx.Upsert(ctx, "a", []domain.VectorRecord{rec("1", []float32{1}, nil)}))
	require.NoError(t, idx.Upsert(ctx, "b", []domain.VectorRecord{rec("1", []float32{1}, nil)}))
	require.NoError(t, idx.DeleteNamespace(ctx, "a"))

	stats, err := idx.DescribeStats(ctx)
	require.NoError(t, err)
	assert.Len(t, stats.Namespaces, 1)
	assert.Contains(t, stats.Namespaces, "b")
}

func TestArgsortDesc(t *testing.T) {
	assert.Equal(t, []int{2, 0, 1}, argsortDesc([]float64{0.5, 0.1, 0.9}))
	assert.Empty(t, argsortDesc(nil))
}
