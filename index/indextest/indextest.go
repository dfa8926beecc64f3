// Package indextest provides a contract test suite for index.Builder
// implementations.
package indextest

import (
	"context"
	"testing"

	"github.com/hupe1980/vecdir/index"
	"github.com/hupe1980/vecdir/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises the behavior every index.Builder must provide.
func Run(t *testing.T, newBuilder func() index.Builder) {
	t.Helper()
	ctx := context.Background()

	t.Run("Name", func(t *testing.T) {
		assert.NotEmpty(t, newBuilder().Name())
	})

	t.Run("EmptyBuild", func(t *testing.T) {
		idx, err := newBuilder().Build(ctx, 3, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, idx.Len())
		assert.Equal(t, 3, idx.Dimension())

		res, err := idx.Search(ctx, []float32{1, 0, 0}, 5)
		require.NoError(t, err)
		assert.NotNil(t, res)
		assert.Empty(t, res)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		_, err := newBuilder().Build(ctx, 3, []index.Item{{ID: "a", Vector: []float32{1, 0}}})
		var dimErr *index.ErrDimensionMismatch
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 3, dimErr.Expected)
		assert.Equal(t, 2, dimErr.Actual)

		idx, err := newBuilder().Build(ctx, 3, basisItems(3))
		require.NoError(t, err)
		_, err = idx.Search(ctx, []float32{1, 0}, 1)
		require.ErrorAs(t, err, &dimErr)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := newBuilder().Build(cctx, 3, basisItems(3))
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Ordering", func(t *testing.T) {
		idx, err := newBuilder().Build(ctx, 4, basisItems(4))
		require.NoError(t, err)

		for i := range 4 {
			res, err := idx.Search(ctx, testutil.BasisVector(4, i), 1)
			require.NoError(t, err)
			require.Len(t, res, 1)
			assert.Equal(t, basisID(i), res[0].ID)
			assert.InDelta(t, 1.0, res[0].Score, 1e-6)
		}

		q := []float32{0.8, 0.6, 0, 0}
		res, err := idx.Search(ctx, q, 4)
		require.NoError(t, err)
		require.Len(t, res, 4)
		assert.Equal(t, []string{"e0", "e1", "e2", "e3"}, resultIDs(res))
		assert.InDelta(t, 0.8, res[0].Score, 1e-6)
		assert.InDelta(t, 0.6, res[1].Score, 1e-6)
	})

	t.Run("TiesByInsertionOrder", func(t *testing.T) {
		items := []index.Item{
			{ID: "first", Vector: []float32{0, 1}},
			{ID: "second", Vector: []float32{1, 0}},
			{ID: "third", Vector: []float32{1, 0}},
			{ID: "fourth", Vector: []float32{1, 0}},
		}
		idx, err := newBuilder().Build(ctx, 2, items)
		require.NoError(t, err)

		res, err := idx.Search(ctx, []float32{1, 0}, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"second", "third", "fourth"}, resultIDs(res))
	})

	t.Run("KSaturation", func(t *testing.T) {
		rng := testutil.NewRNG(4711)
		vecs := rng.UnitVectors(150, 8)
		idx, err := newBuilder().Build(ctx, 8, items(testutil.IDs("v", len(vecs)), vecs))
		require.NoError(t, err)

		for _, k := range []int{1, 10, 150, 500} {
			res, err := idx.Search(ctx, vecs[3], k)
			require.NoError(t, err)
			assert.Len(t, res, min(k, len(vecs)))
			assertDescending(t, res)
		}

		res, err := idx.Search(ctx, vecs[3], 0)
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("ExhaustiveWhenKCoversIndex", func(t *testing.T) {
		rng := testutil.NewRNG(99)
		vecs := rng.UnitVectors(200, 8)
		ids := testutil.IDs("v", len(vecs))
		idx, err := newBuilder().Build(ctx, 8, items(ids, vecs))
		require.NoError(t, err)

		q := rng.UnitVector(8)
		res, err := idx.Search(ctx, q, len(vecs))
		require.NoError(t, err)

		want := testutil.BruteForceSearch(ids, vecs, q, len(vecs))
		assert.Equal(t, truthIDs(want), resultIDs(res))
	})

	t.Run("MarshalLoad", func(t *testing.T) {
		rng := testutil.NewRNG(1234)
		vecs := rng.UnitVectors(120, 6)
		ids := testutil.IDs("m", len(vecs))
		b := newBuilder()
		idx, err := b.Build(ctx, 6, items(ids, vecs))
		require.NoError(t, err)

		data, err := idx.MarshalBinary()
		require.NoError(t, err)
		loaded, err := b.Load(data)
		require.NoError(t, err)

		// The loaded index must not alias data.
		for i := range data {
			data[i] = 0xFF
		}

		assert.Equal(t, idx.Len(), loaded.Len())
		assert.Equal(t, idx.Dimension(), loaded.Dimension())
		for _, q := range rng.UnitVectors(5, 6) {
			want, err := idx.Search(ctx, q, 7)
			require.NoError(t, err)
			got, err := loaded.Search(ctx, q, 7)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("LoadGarbage", func(t *testing.T) {
		b := newBuilder()
		for _, data := range [][]byte{nil, {1, 2, 3}, []byte("definitely not an index")} {
			_, err := b.Load(data)
			require.ErrorIs(t, err, index.ErrInvalidData)
		}
	})

	t.Run("InputNotRetained", func(t *testing.T) {
		vec := []float32{1, 0}
		idx, err := newBuilder().Build(ctx, 2, []index.Item{{ID: "a", Vector: vec}, {ID: "b", Vector: []float32{0, 1}}})
		require.NoError(t, err)
		vec[0], vec[1] = 0, -1

		res, err := idx.Search(ctx, []float32{1, 0}, 1)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "a", res[0].ID)
	})
}

// RunRecall checks recall@10 against exact search on random unit vectors.
func RunRecall(t *testing.T, b index.Builder, minRecall float64) {
	t.Helper()
	rng := testutil.NewRNG(42)
	checkRecall(t, b, rng.UnitVectors(1000, 16), rng.UnitVectors(50, 16), minRecall)
}

// RunClusteredRecall checks recall@10 on unit vectors drawn around a few
// centroids, where many neighbours score close together.
func RunClusteredRecall(t *testing.T, b index.Builder, minRecall float64) {
	t.Helper()
	rng := testutil.NewRNG(7)
	checkRecall(t, b, rng.ClusteredVectors(1000, 16, 10, 0.1), rng.ClusteredVectors(50, 16, 10, 0.1), minRecall)
}

func checkRecall(t *testing.T, b index.Builder, vecs, queries [][]float32, minRecall float64) {
	t.Helper()
	ctx := context.Background()
	const k = 10

	ids := testutil.IDs("r", len(vecs))
	idx, err := b.Build(ctx, len(vecs[0]), items(ids, vecs))
	require.NoError(t, err)

	var total float64
	for _, q := range queries {
		res, err := idx.Search(ctx, q, k)
		require.NoError(t, err)
		require.Len(t, res, k)
		assertDescending(t, res)

		approx := make([]testutil.SearchResult, len(res))
		for i, r := range res {
			approx[i] = testutil.SearchResult{ID: r.ID, Score: r.Score}
		}
		total += testutil.ComputeRecall(testutil.BruteForceSearch(ids, vecs, q, k), approx)
	}

	recall := total / float64(len(queries))
	assert.GreaterOrEqual(t, recall, minRecall, "recall@%d", k)
}

func basisID(i int) string { return "e" + string(rune('0'+i)) }

func basisItems(dim int) []index.Item {
	out := make([]index.Item, dim)
	for i := range out {
		out[i] = index.Item{ID: basisID(i), Vector: testutil.BasisVector(dim, i)}
	}
	return out
}

func items(ids []string, vecs [][]float32) []index.Item {
	out := make([]index.Item, len(vecs))
	for i := range vecs {
		out[i] = index.Item{ID: ids[i], Vector: vecs[i]}
	}
	return out
}

func resultIDs(res []index.Result) []string {
	out := make([]string, len(res))
	for i, r := range res {
		out[i] = r.ID
	}
	return out
}

func truthIDs(res []testutil.SearchResult) []string {
	out := make([]string, len(res))
	for i, r := range res {
		out[i] = r.ID
	}
	return out
}

func assertDescending(t *testing.T, res []index.Result) {
	t.Helper()
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
	}
}
