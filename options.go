package vecdir

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/hupe1980/vecdir/blobstore"
	"github.com/hupe1980/vecdir/codec"
	"github.com/hupe1980/vecdir/index"
	"github.com/hupe1980/vecdir/index/hnsw"
	"github.com/hupe1980/vecdir/internal/fs"
	"github.com/hupe1980/vecdir/internal/persistence"
	"github.com/hupe1980/vecdir/internal/wal"
)

// Durability controls when record log appends reach stable storage.
type Durability = wal.Durability

const (
	// DurabilitySync fsyncs every append before the call returns (default).
	DurabilitySync = wal.DurabilitySync
	// DurabilityAsync leaves flushing to the OS page cache.
	DurabilityAsync = wal.DurabilityAsync
)

// Compression selects the compression of persisted index blobs.
type Compression = persistence.Compression

const (
	CompressionNone = persistence.CompressionNone
	CompressionLZ4  = persistence.CompressionLZ4
	CompressionZSTD = persistence.CompressionZSTD
)

type options struct {
	codec               codec.Codec
	metricsCollector    MetricsCollector
	logger              *Logger
	builder             index.Builder
	durability          Durability
	compression         Compression
	maxConcurrentBuilds int64
	ioLimit             int64
	mirror              blobstore.BlobStore
	fs                  fs.FileSystem
}

// Option configures a Registry.
type Option func(*options)

// WithCodec configures the codec used for metadata.json.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecdir.BasicMetricsCollector{}
//	reg := vecdir.NewRegistry(vecdir.WithMetricsCollector(metrics))
//	// ... use reg ...
//	stats := metrics.GetStats()
//	fmt.Printf("Inserts: %d, Avg latency: %dns\n", stats.InsertCount, stats.InsertAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecdir.NewJSONLogger(slog.LevelInfo)
//	reg := vecdir.NewRegistry(vecdir.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithIndexBuilder sets the index implementation used by BuildIndex and to
// load persisted indexes. The default is the HNSW builder with default
// options. A persisted index written by a different builder fails to load.
func WithIndexBuilder(b index.Builder) Option {
	return func(o *options) {
		if b != nil {
			o.builder = b
		}
	}
}

// WithDurability sets the record log durability. The default is
// DurabilitySync.
func WithDurability(d Durability) Option {
	return func(o *options) {
		o.durability = d
	}
}

// WithCompression sets the compression of index.bin. Blobs that do not
// shrink are stored uncompressed regardless. The default is
// CompressionNone.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMaxConcurrentBuilds caps the number of BuildIndex calls running at
// once across all collections of the registry. Defaults to GOMAXPROCS.
func WithMaxConcurrentBuilds(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentBuilds = int64(n)
		}
	}
}

// WithIOLimit caps the write throughput of index blobs and log compaction
// in bytes per second. Zero disables the limit.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = max(bytesPerSec, 0)
	}
}

// WithIndexMirror uploads every successfully built index.bin to store under
// the key "<collection path>/index.bin". Upload failures are reported as
// *ErrMirrorUpload after the local build has been committed.
func WithIndexMirror(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.mirror = store
	}
}

// withFileSystem replaces the file system, used for fault injection.
func withFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:               codec.Default,
		metricsCollector:    NoopMetricsCollector{},
		logger:              NoopLogger(),
		builder:             hnsw.NewBuilder(),
		durability:          DurabilitySync,
		compression:         CompressionNone,
		maxConcurrentBuilds: int64(runtime.GOMAXPROCS(0)),
		fs:                  fs.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// ParseCompression maps "none", "lz4" or "zstd" to a Compression.
func ParseCompression(name string) (Compression, error) {
	return persistence.ParseCompression(name)
}

// ParseDurability maps "sync" or "async" to a Durability. The empty string
// selects DurabilitySync.
func ParseDurability(name string) (Durability, error) {
	switch name {
	case "", "sync":
		return DurabilitySync, nil
	case "async":
		return DurabilityAsync, nil
	default:
		return DurabilitySync, fmt.Errorf("unknown durability %q", name)
	}
}
