package vecdir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/vecdir/index"
	"github.com/hupe1980/vecdir/internal/persistence"
	"github.com/hupe1980/vecdir/internal/resource"
	"github.com/hupe1980/vecdir/internal/wal"
)

// Supported collection settings. Matching is case-sensitive.
const (
	MetricCosine  = "cosine"
	IndexTypeHNSW = "hnsw"
)

// errEvicted is returned by a collection handle after it was closed; the
// registry resolves the path again.
var errEvicted = errors.New("collection handle evicted")

// Config describes a collection to create.
type Config struct {
	Path       string
	Dimensions int
	IndexType  string
	Metric     string
}

// SearchResult is a single search hit. Score is the dot product of the
// query and the stored vector, the cosine similarity for normalized input.
type SearchResult struct {
	ID    string
	Score float32
}

// Stats describes a collection.
type Stats struct {
	// Count is the number of live (not deleted) vectors.
	Count int
	// Dimensions is the fixed vector dimension.
	Dimensions int
	// FileSizeBytes is the size of the last persisted index, 0 if never built.
	FileSizeBytes int64
}

type record struct {
	ord    uint32
	vector []float32
}

type builtIndex struct {
	index.Index
}

// collection is the in-memory handle of one collection directory.
//
// writeMu serializes inserts, deletes and builds; a build holds it for its
// whole duration. mu guards the fields below it. The built index is
// swapped atomically so searches never wait for a build.
type collection struct {
	path string
	meta persistence.Metadata
	dir  *persistence.Dir
	opts *options
	rc   *resource.Controller

	writeMu sync.Mutex
	wal     *wal.WAL
	logErr  error // set when the log could not be reopened after compaction
	closed  bool

	mu         sync.RWMutex
	records    map[string]*record
	tombstones *tombstones
	nextOrd    uint32
	logRecords int // records in the log since its last rewrite
	dirty      bool
	indexBytes int64

	index atomic.Pointer[builtIndex]
}

func newCollection(path string, meta persistence.Metadata, dir *persistence.Dir, opts *options, rc *resource.Controller) *collection {
	return &collection{
		path:       path,
		meta:       meta,
		dir:        dir,
		opts:       opts,
		rc:         rc,
		records:    make(map[string]*record),
		tombstones: newTombstones(),
	}
}

func (c *collection) walOptions() wal.Options {
	return wal.Options{Durability: c.opts.durability}
}

func (c *collection) corrupt(file string, err error) error {
	return &ErrCorruptState{Path: c.path, File: file, cause: err}
}

// applyUpsert inserts or replaces id, keeping the ordinal of an existing
// record and clearing its tombstone. Caller holds mu.
func (c *collection) applyUpsert(id string, vec []float32) {
	if rec, ok := c.records[id]; ok {
		rec.vector = vec
		c.tombstones.remove(rec.ord)
		return
	}
	c.records[id] = &record{ord: c.nextOrd, vector: vec}
	c.nextOrd++
}

// applyDelete tombstones id and reports whether it was live. Caller holds mu.
func (c *collection) applyDelete(id string) bool {
	rec, ok := c.records[id]
	if !ok {
		return false
	}
	return c.tombstones.add(rec.ord)
}

// liveItems returns the non-tombstoned records ordered by ordinal.
// Caller holds mu.
func (c *collection) liveItems() []index.Item {
	type ordered struct {
		ord  uint32
		item index.Item
	}
	live := make([]ordered, 0, len(c.records)-c.tombstones.len())
	for id, rec := range c.records {
		if c.tombstones.contains(rec.ord) {
			continue
		}
		live = append(live, ordered{ord: rec.ord, item: index.Item{ID: id, Vector: rec.vector}})
	}
	slices.SortFunc(live, func(a, b ordered) int {
		switch {
		case a.ord < b.ord:
			return -1
		case a.ord > b.ord:
			return 1
		default:
			return 0
		}
	})

	items := make([]index.Item, len(live))
	for i := range live {
		items[i] = live[i].item
	}
	return items
}

// load reads the collection directory: metadata, record log replay and the
// persisted index. It finishes a purge interrupted between writing the
// index and compacting the log.
func (c *collection) load(ctx context.Context) (replayed int, purged bool, err error) {
	dims := c.meta.Dimensions
	var maxLSN uint64

	w, err := c.dir.OpenLog(c.walOptions(), func(rec *wal.Record) error {
		switch rec.Type {
		case wal.RecordTypeUpsert:
			if len(rec.Vector) != dims {
				return fmt.Errorf("record %d for %q: %w", rec.LSN, rec.ID, &ErrDimensionMismatch{Expected: dims, Actual: len(rec.Vector)})
			}
			c.applyUpsert(rec.ID, rec.Vector)
		case wal.RecordTypeDelete:
			c.applyDelete(rec.ID)
		}
		maxLSN = max(maxLSN, rec.LSN)
		replayed++
		return nil
	})
	if err != nil {
		return 0, false, c.corrupt(persistence.LogFile, err)
	}
	c.wal = w
	c.logRecords = replayed

	blob, size, err := c.dir.ReadIndex(ctx)
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.dirty = replayed > 0
		return replayed, false, nil
	case err != nil:
		return replayed, false, c.corrupt(persistence.IndexFile, err)
	}

	if name := c.opts.builder.Name(); blob.Builder != name {
		return replayed, false, c.corrupt(persistence.IndexFile, fmt.Errorf("index written by builder %q, configured builder is %q", blob.Builder, name))
	}
	if blob.LSN > w.LastLSN() {
		return replayed, false, c.corrupt(persistence.IndexFile, fmt.Errorf("index reflects log position %d beyond end of log %d", blob.LSN, w.LastLSN()))
	}
	idx, err := c.opts.builder.Load(blob.Payload)
	if err != nil {
		return replayed, false, c.corrupt(persistence.IndexFile, err)
	}
	if idx.Dimension() != dims || idx.Len() != int(blob.Count) {
		return replayed, false, c.corrupt(persistence.IndexFile, fmt.Errorf("index has %d vectors of dimension %d, header says %d of %d", idx.Len(), idx.Dimension(), blob.Count, dims))
	}

	c.index.Store(&builtIndex{Index: idx})
	c.indexBytes = size
	c.dirty = maxLSN > blob.LSN

	if !c.dirty && c.tombstones.len() > 0 {
		if err := c.compact(ctx, blob.LSN); err != nil {
			return replayed, false, err
		}
		purged = true
	}
	return replayed, purged, nil
}

func (c *collection) checkWritable() error {
	if c.closed {
		return errEvicted
	}
	if c.logErr != nil {
		return fmt.Errorf("record log unavailable: %w", c.logErr)
	}
	return nil
}

func (c *collection) insert(id string, vector []float32) error {
	if len(vector) != c.meta.Dimensions {
		return &ErrDimensionMismatch{Expected: c.meta.Dimensions, Actual: len(vector)}
	}
	vec := slices.Clone(vector)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.checkWritable(); err != nil {
		return err
	}
	if _, err := c.wal.Append(&wal.Record{Type: wal.RecordTypeUpsert, ID: id, Vector: vec}); err != nil {
		return fmt.Errorf("append to record log: %w", err)
	}

	c.mu.Lock()
	c.applyUpsert(id, vec)
	c.logRecords++
	c.dirty = true
	c.mu.Unlock()
	return nil
}

func (c *collection) delete(id string) (bool, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.checkWritable(); err != nil {
		return false, err
	}

	c.mu.RLock()
	rec, ok := c.records[id]
	live := ok && !c.tombstones.contains(rec.ord)
	c.mu.RUnlock()
	if !live {
		return false, nil
	}

	if _, err := c.wal.Append(&wal.Record{Type: wal.RecordTypeDelete, ID: id}); err != nil {
		return false, fmt.Errorf("append to record log: %w", err)
	}

	c.mu.Lock()
	c.tombstones.add(rec.ord)
	c.logRecords++
	c.dirty = true
	c.mu.Unlock()
	return true, nil
}

// build constructs a fresh index from the live set, persists it, installs
// it and compacts the record log. ctx bounds only the wait for a build
// slot. It returns the persisted blob for mirroring.
func (c *collection) build(ctx context.Context) (vectors int, data []byte, err error) {
	if err := c.rc.AcquireBuild(ctx); err != nil {
		return 0, nil, err
	}
	defer c.rc.ReleaseBuild()
	ctx = context.WithoutCancel(ctx)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.checkWritable(); err != nil {
		return 0, nil, err
	}

	c.mu.RLock()
	items := c.liveItems()
	c.mu.RUnlock()
	lsn := c.wal.LastLSN()

	idx, err := c.opts.builder.Build(ctx, c.meta.Dimensions, items)
	if err != nil {
		return len(items), nil, &ErrIndexBuild{Path: c.path, cause: translateError(err)}
	}
	payload, err := idx.MarshalBinary()
	if err != nil {
		return len(items), nil, &ErrIndexBuild{Path: c.path, cause: err}
	}
	data, err = persistence.EncodeIndexBlob(persistence.IndexBlob{
		Builder: c.opts.builder.Name(),
		LSN:     lsn,
		Count:   uint32(len(items)),
		Payload: payload,
	}, c.opts.compression)
	if err != nil {
		return len(items), nil, &ErrIndexBuild{Path: c.path, cause: err}
	}
	if err := c.dir.WriteIndex(ctx, data); err != nil {
		return len(items), nil, fmt.Errorf("persist index: %w", err)
	}

	c.index.Store(&builtIndex{Index: idx})
	c.mu.Lock()
	c.dirty = false
	c.indexBytes = int64(len(data))
	c.mu.Unlock()

	if err := c.compact(ctx, lsn); err != nil {
		return len(items), data, err
	}
	return len(items), data, nil
}

// compact rewrites the record log to hold only live records, all stamped
// with lsn, and drops tombstoned records from memory. Caller holds writeMu.
func (c *collection) compact(ctx context.Context, lsn uint64) error {
	c.mu.RLock()
	items := c.liveItems()
	rewrite := c.logRecords != len(items)
	c.mu.RUnlock()

	if rewrite {
		records := make([]*wal.Record, len(items))
		for i, it := range items {
			records[i] = &wal.Record{LSN: lsn, Type: wal.RecordTypeUpsert, ID: it.ID, Vector: it.Vector}
		}
		if err := c.dir.RewriteLog(ctx, lsn, records); err != nil {
			return fmt.Errorf("compact record log: %w", err)
		}

		// The old handle points at the replaced file.
		_ = c.wal.Close()
		w, err := c.dir.OpenLog(c.walOptions(), nil)
		if err != nil {
			c.wal = nil
			c.logErr = err
			return fmt.Errorf("reopen record log: %w", err)
		}
		c.wal = w
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tombstones.len() > 0 {
		for id, rec := range c.records {
			if c.tombstones.contains(rec.ord) {
				delete(c.records, id)
			}
		}
		c.tombstones.clear()
	}
	c.logRecords = len(items)
	return nil
}

func (c *collection) search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	if len(query) != c.meta.Dimensions {
		return nil, &ErrDimensionMismatch{Expected: c.meta.Dimensions, Actual: len(query)}
	}

	built := c.index.Load()
	if built == nil {
		return []SearchResult{}, nil
	}

	res, err := built.Search(ctx, query, k)
	if err != nil {
		return nil, translateError(err)
	}
	out := make([]SearchResult, len(res))
	for i, r := range res {
		out[i] = SearchResult{ID: r.ID, Score: r.Score}
	}
	return out, nil
}

func (c *collection) stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Count:         len(c.records) - c.tombstones.len(),
		Dimensions:    c.meta.Dimensions,
		FileSizeBytes: c.indexBytes,
	}
}

func (c *collection) isDirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

// mirrorKey is the blob name of the collection's index in a mirror store.
func (c *collection) mirrorKey() string {
	return strings.TrimPrefix(filepath.ToSlash(c.path), "/") + "/" + persistence.IndexFile
}

// close releases the record log. Subsequent writes return errEvicted.
func (c *collection) close() error {
	return c.closeAndDetach(func() {})
}

// closeAndDetach closes the handle and runs detach before writes are
// unblocked. It waits for a running build, so detach never lets a second
// handle open the record log while this one still uses it.
func (c *collection) closeAndDetach(detach func()) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	defer detach()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.wal == nil {
		return nil
	}
	return c.wal.Close()
}
