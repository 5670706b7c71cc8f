package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed_EmptyIsZeroVector(t *testing.T) {
	e := NewHashProjectionEmbedder(Dimension)
	vec, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Equal(t, float32(0), v)
	}
}

func TestEmbed_NormIsUnit(t *testing.T) {
	e := NewHashProjectionEmbedder(Dimension)
	vec, err := e.Embed(context.Background(), "hello world this is a test message")
	require.NoError(t, err)

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	assert.InDelta(t, 1.0, norm, 1e-4)
}

func TestEmbed_Deterministic(t *testing.T) {
	e := NewHashProjectionEmbedder(Dimension)
	a, _ := e.Embed(context.Background(), "recurring phrase")
	b, _ := e.Embed(context.Background(), "recurring phrase")
	assert.Equal(t, a, b)
}

func TestCosine_Bounds(t *testing.T) {
	e := NewHashProjectionEmbedder(Dimension)
	a, _ := e.Embed(context.Background(), "alpha bravo charlie")
	b, _ := e.Embed(context.Background(), "delta echo foxtrot")

	sim := Cosine(a, b)
	assert.GreaterOrEqual(t, sim, -1.0)
	assert.LessOrEqual(t, sim, 1.0)
	assert.InDelta(t, 1.0, Cosine(a, a), 1e-6)
}

func TestCentroid_SingleVectorIdentity(t *testing.T) {
	e := NewHashProjectionEmbedder(Dimension)
	v, _ := e.Embed(context.Background(), "only one")
	c := Centroid([][]float32{v})
	assert.InDelta(t, 1.0, Cosine(v, c), 1e-6)
}

func TestCentroid_OrderInvariant(t *testing.T) {
	e := NewHashProjectionEmbedder(Dimension)
	a, _ := e.Embed(context.Background(), "first")
	b, _ := e.Embed(context.Background(), "second")
	c, _ := e.Embed(context.Background(), "third")

	c1 := Centroid([][]float32{a, b, c})
	c2 := Centroid([][]float32{c, a, b})
	assert.Equal(t, c1, c2)
}

func TestCentroid_Empty(t *testing.T) {
	assert.Nil(t, Centroid(nil))
}

func TestFieldSimilarity_PureVariable(t *testing.T) {
	e := NewHashProjectionEmbedder(Dimension)
	sim, err := FieldSimilarity(context.Background(), e, "{AMOUNT}", "USD100000,00")
	require.NoError(t, err)
	assert.Equal(t, 0.95, sim)
}

func TestFieldSimilarity_FixedContentInRange(t *testing.T) {
	e := NewHashProjectionEmbedder(Dimension)
	sim, err := FieldSimilarity(context.Background(), e, "BENEFICIARY", "BENEFICIARY")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sim, 0.0)
	assert.LessOrEqual(t, sim, 1.0)
	assert.Greater(t, sim, 0.9)
}

func TestCachedEmbedder_EvictsOverCapacity(t *testing.T) {
	c := NewCachedEmbedder(NewHashProjectionEmbedder(Dimension), 2)

	ctx := context.Background()
	_, _ = c.Embed(ctx, "one")
	_, _ = c.Embed(ctx, "two")
	assert.Equal(t, 2, c.Len())

	_, _ = c.Embed(ctx, "three")
	assert.Equal(t, 2, c.Len())
}

func TestCachedEmbedder_ReturnsSameVectorOnHit(t *testing.T) {
	c := NewCachedEmbedder(NewHashProjectionEmbedder(Dimension), 10)
	ctx := context.Background()

	a, _ := c.Embed(ctx, "cached phrase")
	b, _ := c.Embed(ctx, "cached phrase")
	assert.Equal(t, a, b)
}
