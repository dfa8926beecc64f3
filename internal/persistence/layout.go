package persistence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/vecdir/blobstore"
	"github.com/hupe1980/vecdir/codec"
	"github.com/hupe1980/vecdir/internal/fs"
	"github.com/hupe1980/vecdir/internal/resource"
	"github.com/hupe1980/vecdir/internal/wal"
)

// File names inside a collection directory.
const (
	MetadataFile = "metadata.json"
	LogFile      = "vectors.log"
	IndexFile    = "index.bin"
)

var (
	// ErrNotInitialized is returned when a directory has no metadata.json.
	ErrNotInitialized = errors.New("collection not initialized")
	// ErrInvalidMetadata is returned when metadata.json cannot be decoded.
	ErrInvalidMetadata = errors.New("invalid metadata")
)

// Metadata is the immutable description of a collection.
type Metadata struct {
	Dimensions int    `json:"dimensions"`
	IndexType  string `json:"indexType"`
	Metric     string `json:"metric"`
}

// Dir gives typed access to the files of one collection directory.
type Dir struct {
	path  string
	fs    fs.FileSystem
	codec codec.Codec
	rc    *resource.Controller
	blobs *blobstore.LocalStore
}

// NewDir returns a Dir for path. A nil fsys or c selects the defaults; a nil
// rc disables IO throttling.
func NewDir(path string, fsys fs.FileSystem, c codec.Codec, rc *resource.Controller) *Dir {
	if fsys == nil {
		fsys = fs.Default
	}
	if c == nil {
		c = codec.Default
	}
	return &Dir{path: path, fs: fsys, codec: c, rc: rc, blobs: blobstore.NewLocalStore(path, blobstore.WithFileSystem(fsys))}
}

// Path returns the directory path.
func (d *Dir) Path() string { return d.path }

func (d *Dir) file(name string) string { return filepath.Join(d.path, name) }

// Initialize creates the directory, an empty record log and finally
// metadata.json. Writing metadata.json is the commit point: a directory
// without it is not a collection.
func (d *Dir) Initialize(meta Metadata) error {
	if err := d.fs.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("create collection dir: %w", err)
	}
	if err := wal.Rewrite(d.fs, d.file(LogFile), 0, nil); err != nil {
		return fmt.Errorf("create record log: %w", err)
	}
	data, err := d.codec.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return fs.WriteFileAtomic(d.fs, d.file(MetadataFile), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// LoadMetadata reads metadata.json.
func (d *Dir) LoadMetadata() (Metadata, error) {
	var meta Metadata
	data, err := d.fs.ReadFile(d.file(MetadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return meta, ErrNotInitialized
		}
		return meta, err
	}
	if err := d.codec.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	if meta.Dimensions <= 0 || meta.IndexType == "" || meta.Metric == "" {
		return meta, fmt.Errorf("%w: %+v", ErrInvalidMetadata, meta)
	}
	return meta, nil
}

// OpenLog opens the record log, replaying each intact record.
func (d *Dir) OpenLog(opts wal.Options, replay func(*wal.Record) error) (*wal.WAL, error) {
	return wal.Open(d.fs, d.file(LogFile), opts, replay)
}

// RewriteLog atomically replaces the record log.
func (d *Dir) RewriteLog(ctx context.Context, baseLSN uint64, records []*wal.Record) error {
	var size int
	for _, r := range records {
		size += r.Size()
	}
	if err := d.rc.AcquireIO(ctx, size); err != nil {
		return err
	}
	return wal.Rewrite(d.fs, d.file(LogFile), baseLSN, records)
}

// WriteIndex atomically replaces index.bin with data.
func (d *Dir) WriteIndex(ctx context.Context, data []byte) error {
	return fs.WriteFileAtomic(d.fs, d.file(IndexFile), func(w io.Writer) error {
		_, err := resource.NewRateLimitedWriter(ctx, w, d.rc).Write(data)
		return err
	})
}

// ReadIndex loads and verifies index.bin. It returns os.ErrNotExist when
// no index was ever persisted.
func (d *Dir) ReadIndex(ctx context.Context) (IndexBlob, int64, error) {
	b, err := d.blobs.Open(ctx, IndexFile)
	if err != nil {
		return IndexBlob{}, 0, err
	}
	defer b.Close()

	m, ok := b.(blobstore.Mappable)
	if !ok {
		return IndexBlob{}, 0, fmt.Errorf("%s: blob is not memory backed", IndexFile)
	}
	data, err := m.Bytes()
	if err != nil {
		return IndexBlob{}, 0, err
	}
	blob, err := DecodeIndexBlob(data)
	if err != nil {
		return IndexBlob{}, 0, err
	}
	return blob, b.Size(), nil
}
