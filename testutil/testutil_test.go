package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnitVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UnitVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))

	// Check normalization
	for _, vec := range v {
		assert.InDelta(t, 1.0, Norm(vec), 1e-5)
	}
}

func TestClusteredVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.ClusteredVectors(100, 32, 5, 0.1)

	assert.Equal(t, 100, len(v))
	assert.Equal(t, 32, len(v[0]))
	assert.InDelta(t, 1.0, Norm(v[42]), 1e-5)
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.UnitVector(10)
	rng.Reset()
	v2 := rng.UnitVector(10)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestBruteForceSearch(t *testing.T) {
	ids := IDs("v", 4)
	vecs := [][]float32{BasisVector(3, 0), BasisVector(3, 1), BasisVector(3, 0), BasisVector(3, 2)}

	res := BruteForceSearch(ids, vecs, BasisVector(3, 0), 3)

	assert.Equal(t, []SearchResult{
		{ID: "v-0000", Score: 1},
		{ID: "v-0002", Score: 1},
		{ID: "v-0001", Score: 0},
	}, res)
}

func TestComputeRecall(t *testing.T) {
	truth := []SearchResult{{ID: "a"}, {ID: "b"}}

	assert.Equal(t, 1.0, ComputeRecall(nil, nil))
	assert.Equal(t, 0.0, ComputeRecall(truth, nil))
	assert.Equal(t, 0.5, ComputeRecall(truth, []SearchResult{{ID: "b"}, {ID: "c"}}))
}
