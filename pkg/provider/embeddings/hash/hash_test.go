package hash

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsDimensions(t *testing.T) {
	p := New(0)
	assert.Equal(t, DefaultDimensions, p.Dimensions())
}

func TestNewHonorsExplicitDimensions(t *testing.T) {
	p := New(32)
	assert.Equal(t, 32, p.Dimensions())
}

func TestEmbedIsDeterministic(t *testing.T) {
	p := New(64)
	v1, err := p.Embed(context.Background(), "discover tool for searching the web")
	require.NoError(t, err)
	v2, err := p.Embed(context.Background(), "discover tool for searching the web")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestEmbedDistinctTextsDiffer(t *testing.T) {
	p := New(64)
	v1, err := p.Embed(context.Background(), "search the web")
	require.NoError(t, err)
	v2, err := p.Embed(context.Background(), "delete a file from disk")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}

func TestEmbedReturnsUnitVector(t *testing.T) {
	p := New(64)
	v, err := p.Embed(context.Background(), "one two three four")
	require.NoError(t, err)
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, norm, 0.0001)
}

func TestEmbedEmptyTextReturnsZeroVector(t *testing.T) {
	p := New(16)
	v, err := p.Embed(context.Background(), "")
	require.NoError(t, err)
	for _, x := range v {
		assert.Equal(t, float32(0), x)
	}
}

func TestEmbedRespectsCancelledContext(t *testing.T) {
	p := New(16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Embed(ctx, "anything")
	assert.Error(t, err)
}

func TestEmbedBatchMatchesIndividualEmbed(t *testing.T) {
	p := New(32)
	texts := []string{"foo bar", "baz qux", "foo bar"}
	batch, err := p.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, batch[0], batch[2])

	single, err := p.Embed(context.Background(), "foo bar")
	require.NoError(t, err)
	assert.Equal(t, single, batch[0])
}

func TestEmbedBatchEmptyReturnsNil(t *testing.T) {
	p := New(16)
	out, err := p.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestModelID(t *testing.T) {
	p := New(16)
	assert.Equal(t, "hash-fnv1a", p.ModelID())
}
