package hnsw

import (
	"context"
	"testing"

	"github.com/hupe1980/vecdir/index"
	"github.com/hupe1980/vecdir/index/indextest"
	"github.com/hupe1980/vecdir/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHNSWContract(t *testing.T) {
	indextest.Run(t, func() index.Builder { return NewBuilder() })
}

func TestHNSWRecall(t *testing.T) {
	indextest.RunRecall(t, NewBuilder(), 0.9)
}

func TestHNSWClusteredRecall(t *testing.T) {
	indextest.RunClusteredRecall(t, NewBuilder(), 0.8)
}

func TestHNSWSmallBeam(t *testing.T) {
	// A beam smaller than the index forces the graph path.
	indextest.RunRecall(t, NewBuilder(func(o *Options) { o.EFSearch = 16 }), 0.6)
}

func TestBuilderOptions(t *testing.T) {
	b := NewBuilder(func(o *Options) {
		o.M = 8
		o.Seed = 7
	})
	assert.Equal(t, Name, b.Name())
	assert.Equal(t, 8, b.Options().M)
	assert.Equal(t, int64(7), b.Options().Seed)
	assert.Equal(t, DefaultOptions.EFConstruction, b.Options().EFConstruction)
}

func TestReproducibleBuild(t *testing.T) {
	rng := testutil.NewRNG(11)
	vecs := rng.UnitVectors(300, 16)
	ids := testutil.IDs("doc", len(vecs))
	items := make([]index.Item, len(vecs))
	for i := range vecs {
		items[i] = index.Item{ID: ids[i], Vector: vecs[i]}
	}

	ctx := context.Background()
	a, err := NewBuilder().Build(ctx, 16, items)
	require.NoError(t, err)
	b, err := NewBuilder().Build(ctx, 16, items)
	require.NoError(t, err)

	da, err := a.MarshalBinary()
	require.NoError(t, err)
	db, err := b.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestLoadMismatchedIDs(t *testing.T) {
	ctx := context.Background()
	idx, err := NewBuilder().Build(ctx, 2, []index.Item{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0, 1}},
	})
	require.NoError(t, err)
	data, err := idx.MarshalBinary()
	require.NoError(t, err)

	// Claim a single id while the graph holds two nodes.
	data[0] = 1
	_, err = NewBuilder().Load(data)
	require.ErrorIs(t, err, index.ErrInvalidData)
}
