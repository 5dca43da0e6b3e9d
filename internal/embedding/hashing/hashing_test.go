package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestEmbed_FixedDimensionAndNormalized(t *testing.T) {
	e := NewEmbedder(64)
	assert.Equal(t, 64, e.Dimension())
	assert.Equal(t, "hashing", e.Name())

	v, err := e.Embed(context.Background(), "Goroutines communicate over channels")
	require.NoError(t, err)
	require.Len(t, v, 64)

	norm := 0.0
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestEmbed_Deterministic(t *testing.T) {
	e := NewEmbedder(0)
	assert.Equal(t, DefaultDimension, e.Dimension())
	a, _ := e.Embed(context.Background(), "borrow checker rules")
	b, _ := e.Embed(context.Background(), "Borrow   checker RULES")
	assert.Equal(t, a, b)
}

func TestEmbed_SimilarTextsScoreHigher(t *testing.T) {
	e := NewEmbedder(256)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "how do channels work in go")
	near, _ := e.Embed(ctx, "channels in go let goroutines send values")
	far, _ := e.Embed(ctx, "the recipe needs flour sugar and butter")
	assert.Greater(t, cosine(q, near), cosine(q, far))
}

func TestEmbed_OnlyStopwords(t *testing.T) {
	v, err := NewEmbedder(16).Embed(context.Background(), "the and of")
	require.NoError(t, err)
	for _, x := range v {
		assert.Zero(t, x)
	}
}
