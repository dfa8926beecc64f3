package vecdir

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg := NewRegistry(WithLogger(logger))
	defer reg.Close()

	path := filepath.Join(t.TempDir(), "c")
	require.NoError(t, reg.CreateCollection(ctx, cosineConfig(path, 2)))
	require.NoError(t, reg.InsertVector(ctx, path, "a", []float32{1, 0}))
	require.NoError(t, reg.BuildIndex(ctx, path))
	_, err := reg.Search(ctx, path, []float32{1, 0}, 0)
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"collection created"`)
	assert.Contains(t, out, `"msg":"collection loaded"`)
	assert.Contains(t, out, `"msg":"insert completed"`)
	assert.Contains(t, out, `"msg":"build completed"`)
	assert.Contains(t, out, `"msg":"search failed"`)
	assert.Contains(t, out, `"level":"ERROR"`)
}

func TestLoggerLevels(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	logger.LogInsert(ctx, "/c", "a", nil)
	assert.Empty(t, buf.String(), "per-record operations log at debug")

	logger.LogInsert(ctx, "/c", "a", errors.New("boom"))
	assert.Contains(t, buf.String(), "insert failed")

	buf.Reset()
	logger.WithPath("/c").Info("hello")
	assert.Contains(t, buf.String(), "path=/c")

	// Must not panic.
	NoopLogger().LogBuild(ctx, "/c", 1, 1, time.Second, nil)
}

func TestBasicMetricsCollector(t *testing.T) {
	var m BasicMetricsCollector
	m.RecordInsert(2*time.Millisecond, nil)
	m.RecordInsert(4*time.Millisecond, errors.New("boom"))
	m.RecordDelete(true, time.Millisecond, nil)
	m.RecordDelete(false, time.Millisecond, nil)
	m.RecordBuild(10, 2048, time.Second, nil)
	m.RecordBuild(10, 4096, time.Second, errors.New("boom"))
	m.RecordLoad(time.Millisecond, errors.New("corrupt"))

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats.InsertCount)
	assert.Equal(t, int64(1), stats.InsertErrors)
	assert.Equal(t, (3 * time.Millisecond).Nanoseconds(), stats.InsertAvgNanos)
	assert.Equal(t, int64(2), stats.DeleteCount)
	assert.Equal(t, int64(1), stats.DeleteHits)
	assert.Equal(t, int64(2), stats.BuildCount)
	assert.Equal(t, int64(1), stats.BuildErrors)
	assert.Equal(t, int64(2048), stats.LastIndexBytes, "failed builds keep the last size")
	assert.Equal(t, int64(1), stats.LoadErrors)
	assert.Zero(t, stats.SearchAvgNanos)
}

func TestTombstones(t *testing.T) {
	ts := newTombstones()
	assert.True(t, ts.add(3))
	assert.False(t, ts.add(3))
	assert.True(t, ts.add(70000))
	assert.True(t, ts.contains(3))
	assert.False(t, ts.contains(4))
	assert.Equal(t, 2, ts.len())

	assert.True(t, ts.remove(3))
	assert.False(t, ts.remove(3))
	assert.Equal(t, 1, ts.len())

	ts.clear()
	assert.Zero(t, ts.len())
}

func TestParseOptions(t *testing.T) {
	d, err := ParseDurability("async")
	require.NoError(t, err)
	assert.Equal(t, DurabilityAsync, d)
	d, err = ParseDurability("")
	require.NoError(t, err)
	assert.Equal(t, DurabilitySync, d)
	_, err = ParseDurability("never")
	require.Error(t, err)

	c, err := ParseCompression("zstd")
	require.NoError(t, err)
	assert.Equal(t, CompressionZSTD, c)
	_, err = ParseCompression("gzip")
	require.Error(t, err)
}

func TestErrorTypes(t *testing.T) {
	cause := errors.New("bad crc")
	corrupt := &ErrCorruptState{Path: "/c", File: "vectors.log", cause: cause}
	assert.ErrorIs(t, corrupt, ErrCorruptPersistedState)
	assert.ErrorIs(t, corrupt, cause)
	assert.Contains(t, corrupt.Error(), "vectors.log")

	build := &ErrIndexBuild{Path: "/c", cause: cause}
	assert.ErrorIs(t, build, ErrIndexBuildFailure)
	assert.ErrorIs(t, build, cause)

	dim := &ErrDimensionMismatch{Expected: 3, Actual: 2}
	assert.Contains(t, dim.Error(), "3")
	assert.Contains(t, dim.Error(), "2")
}
