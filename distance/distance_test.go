package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	large := make([]float32, 1027)
	for i := range large {
		large[i] = 1
	}

	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Mixed", []float32{1, -1, 2}, []float32{1, 1, -2}, -4},
		{"Empty", []float32{}, []float32{}, 0},
		{"Single", []float32{2}, []float32{3}, 6},
		{"LargeWithTail", large, large, 1027},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Dot(tt.a, tt.b), 1e-5)
		})
	}
}

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	require.True(t, NormalizeL2InPlace(v))
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	src := []float32{0, 2, 0}
	dst, ok := NormalizeL2Copy(src)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 1, 0}, dst)
	assert.Equal(t, []float32{0, 2, 0}, src, "source must not be modified")

	_, ok = NormalizeL2Copy([]float32{0, 0})
	assert.False(t, ok)
	assert.False(t, NormalizeL2InPlace(nil))
	assert.False(t, NormalizeL2InPlace([]float32{float32(math.Inf(1)), 1}))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1, CosineSimilarity([]float32{2, 0}, []float32{5, 0}), 1e-6)
	assert.InDelta(t, 0, CosineSimilarity([]float32{1, 0}, []float32{0, 3}), 1e-6)
	assert.InDelta(t, -1, CosineSimilarity([]float32{1, 1}, []float32{-2, -2}), 1e-6)
	assert.Equal(t, float32(0), CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestMetric(t *testing.T) {
	m, err := ParseMetric("cosine")
	require.NoError(t, err)
	assert.Equal(t, MetricCosine, m)
	assert.Equal(t, "cosine", m.String())

	for _, name := range []string{"l2", "COSINE", ""} {
		_, err = ParseMetric(name)
		assert.Error(t, err, name)
	}

	fn, err := Provider(MetricCosine)
	require.NoError(t, err)
	assert.InDelta(t, 11, fn([]float32{1, 2}, []float32{3, 4}), 1e-6)

	_, err = Provider(Metric(7))
	assert.Error(t, err)
}
