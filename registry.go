package vecdir

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/vecdir/distance"
	"github.com/hupe1980/vecdir/internal/persistence"
	"github.com/hupe1980/vecdir/internal/resource"
)

// Registry is the in-process cache of open collections. It holds at most one
// handle per collection directory and routes every operation through it.
// A Registry is safe for concurrent use. Collections stay cached until
// Evict or Close.
type Registry struct {
	opts options
	rc   *resource.Controller

	mu          sync.Mutex
	collections map[string]*collection
	closed      bool

	loads   singleflight.Group
	creates singleflight.Group
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...Option) *Registry {
	opts := applyOptions(optFns)
	return &Registry{
		opts: opts,
		rc: resource.NewController(resource.Config{
			MaxConcurrentBuilds: opts.maxConcurrentBuilds,
			IOLimitBytesPerSec:  opts.ioLimit,
		}),
		collections: make(map[string]*collection),
	}
}

// canonicalPath makes path absolute and resolves symlinks in its longest
// existing prefix, so every spelling of a directory maps to one key whether
// or not the directory exists yet.
func canonicalPath(path string) (string, error) {
	if path == "" {
		return "", errors.New("collection path must not be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve collection path: %w", err)
	}

	dir, rest := abs, ""
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

func (r *Registry) newDir(path string) *persistence.Dir {
	return persistence.NewDir(path, r.opts.fs, r.opts.codec, r.rc)
}

func (r *Registry) cached(path string) (*collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	return r.collections[path], nil
}

// getOrLoad returns the cached handle for a canonical path or loads it.
// Concurrent loads of one path share a single load.
func (r *Registry) getOrLoad(ctx context.Context, path string) (*collection, error) {
	if c, err := r.cached(path); c != nil || err != nil {
		return c, err
	}

	v, err, _ := r.loads.Do(path, func() (any, error) {
		if c, err := r.cached(path); c != nil || err != nil {
			return c, err
		}

		start := time.Now()
		c, err := r.load(context.WithoutCancel(ctx), path)
		if !errors.Is(err, ErrCollectionNotFound) {
			r.opts.metricsCollector.RecordLoad(time.Since(start), err)
		}
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			_ = c.close()
			return nil, ErrClosed
		}
		if existing, ok := r.collections[path]; ok {
			_ = c.close()
			return existing, nil
		}
		r.collections[path] = c
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*collection), nil
}

func (r *Registry) load(ctx context.Context, path string) (*collection, error) {
	dir := r.newDir(path)
	meta, err := dir.LoadMetadata()
	if err != nil {
		if errors.Is(err, persistence.ErrNotInitialized) {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, path)
		}
		err = &ErrCorruptState{Path: path, File: persistence.MetadataFile, cause: err}
		r.opts.logger.LogLoad(ctx, path, 0, 0, false, err)
		return nil, err
	}
	if _, perr := distance.ParseMetric(meta.Metric); perr != nil || meta.IndexType != IndexTypeHNSW {
		err := &ErrCorruptState{Path: path, File: persistence.MetadataFile, cause: fmt.Errorf("unsupported metric %q or index type %q", meta.Metric, meta.IndexType)}
		r.opts.logger.LogLoad(ctx, path, 0, 0, false, err)
		return nil, err
	}

	c := newCollection(path, meta, dir, &r.opts, r.rc)
	replayed, purged, err := c.load(ctx)
	if err != nil {
		_ = c.close()
		r.opts.logger.LogLoad(ctx, path, 0, 0, false, err)
		return nil, err
	}

	r.opts.logger.LogRecovery(ctx, path, replayed, purged)
	st := c.stats()
	r.opts.logger.LogLoad(ctx, path, st.Count, c.tombstones.len(), c.isDirty(), nil)
	return c, nil
}

// resolve runs fn against the handle for path, resolving again when the
// handle was evicted concurrently.
func (r *Registry) resolve(ctx context.Context, path string, fn func(c *collection) error) error {
	canonical, err := canonicalPath(path)
	if err != nil {
		return err
	}
	for {
		c, err := r.getOrLoad(ctx, canonical)
		if err != nil {
			return err
		}
		if err := fn(c); !errors.Is(err, errEvicted) {
			return err
		}
	}
}

func validateConfig(cfg Config) error {
	if _, err := distance.ParseMetric(cfg.Metric); err != nil {
		return &ErrUnsupportedMetric{Metric: cfg.Metric}
	}
	if cfg.IndexType != IndexTypeHNSW {
		return &ErrUnsupportedIndexType{IndexType: cfg.IndexType}
	}
	if cfg.Dimensions <= 0 {
		return &ErrInvalidDimension{Dimension: cfg.Dimensions}
	}
	return nil
}

// CreateCollection creates the collection described by cfg. Creating an
// existing collection with identical settings is a no-op; differing
// settings fail with *ErrIncompatibleCollection.
func (r *Registry) CreateCollection(ctx context.Context, cfg Config) (err error) {
	defer func() {
		if err != nil {
			r.opts.logger.LogCreate(ctx, cfg.Path, cfg.Dimensions, false, err)
		}
	}()

	if err := validateConfig(cfg); err != nil {
		return err
	}
	path, err := canonicalPath(cfg.Path)
	if err != nil {
		return err
	}

	type created struct {
		c       *collection
		existed bool
	}
	v, err, _ := r.creates.Do(path, func() (any, error) {
		c, err := r.getOrLoad(ctx, path)
		if err == nil {
			return created{c: c, existed: true}, nil
		}
		if !errors.Is(err, ErrCollectionNotFound) {
			return nil, err
		}

		meta := persistence.Metadata{Dimensions: cfg.Dimensions, IndexType: cfg.IndexType, Metric: cfg.Metric}
		if err := r.newDir(path).Initialize(meta); err != nil {
			return nil, fmt.Errorf("create collection %s: %w", path, err)
		}
		c, err = r.getOrLoad(ctx, path)
		if err != nil {
			return nil, err
		}
		return created{c: c}, nil
	})
	if err != nil {
		return err
	}

	res := v.(created)
	existing := res.c.meta
	switch {
	case existing.Dimensions != cfg.Dimensions:
		return &ErrIncompatibleCollection{Path: path, Field: "dimensions", Existing: strconv.Itoa(existing.Dimensions), Requested: strconv.Itoa(cfg.Dimensions)}
	case existing.Metric != cfg.Metric:
		return &ErrIncompatibleCollection{Path: path, Field: "metric", Existing: existing.Metric, Requested: cfg.Metric}
	case existing.IndexType != cfg.IndexType:
		return &ErrIncompatibleCollection{Path: path, Field: "indexType", Existing: existing.IndexType, Requested: cfg.IndexType}
	}

	r.opts.logger.LogCreate(ctx, path, cfg.Dimensions, res.existed, nil)
	return nil
}

// InsertVector upserts id with vector. The record is durable in the
// collection's log when InsertVector returns; it becomes searchable after
// the next BuildIndex.
func (r *Registry) InsertVector(ctx context.Context, path, id string, vector []float32) (err error) {
	start := time.Now()
	defer func() {
		r.opts.metricsCollector.RecordInsert(time.Since(start), err)
		r.opts.logger.LogInsert(ctx, path, id, err)
	}()

	if id == "" {
		return ErrEmptyID
	}
	return r.resolve(ctx, path, func(c *collection) error {
		return c.insert(id, vector)
	})
}

// DeleteVector tombstones id. It returns false, without error, when id is
// absent or already deleted. The vector stays searchable until the next
// BuildIndex.
func (r *Registry) DeleteVector(ctx context.Context, path, id string) (deleted bool, err error) {
	start := time.Now()
	defer func() {
		r.opts.metricsCollector.RecordDelete(deleted, time.Since(start), err)
		r.opts.logger.LogDelete(ctx, path, id, deleted, err)
	}()

	err = r.resolve(ctx, path, func(c *collection) error {
		var err error
		deleted, err = c.delete(id)
		return err
	})
	return deleted, err
}

// BuildIndex rebuilds the collection's index from its live vectors, persists
// it and purges deleted vectors from the log. Once a build slot is acquired
// the build runs to completion even if ctx is canceled.
func (r *Registry) BuildIndex(ctx context.Context, path string) (err error) {
	var (
		vectors int
		data    []byte
		c       *collection
	)
	start := time.Now()
	defer func() {
		r.opts.metricsCollector.RecordBuild(vectors, int64(len(data)), time.Since(start), err)
		r.opts.logger.LogBuild(ctx, path, vectors, int64(len(data)), time.Since(start), err)
	}()

	err = r.resolve(ctx, path, func(h *collection) error {
		var err error
		c = h
		vectors, data, err = h.build(ctx)
		return err
	})
	if err != nil || r.opts.mirror == nil {
		return err
	}

	key := c.mirrorKey()
	if perr := r.opts.mirror.Put(context.WithoutCancel(ctx), key, data); perr != nil {
		r.opts.logger.LogMirror(ctx, c.path, key, perr)
		return &ErrMirrorUpload{Path: c.path, Key: key, cause: perr}
	}
	r.opts.logger.LogMirror(ctx, c.path, key, nil)
	return nil
}

// Search returns up to k results from the last built index, ordered by
// descending score with ties in insertion order. A collection that was
// never built returns an empty slice.
func (r *Registry) Search(ctx context.Context, path string, query []float32, k int) (results []SearchResult, err error) {
	start := time.Now()
	defer func() {
		r.opts.metricsCollector.RecordSearch(k, len(results), time.Since(start), err)
		r.opts.logger.LogSearch(ctx, path, k, len(results), err)
	}()

	if k <= 0 {
		return nil, ErrInvalidK
	}
	err = r.resolve(ctx, path, func(c *collection) error {
		var err error
		results, err = c.search(ctx, query, k)
		return err
	})
	return results, err
}

// Stats reports the live vector count, dimension and persisted index size.
func (r *Registry) Stats(ctx context.Context, path string) (Stats, error) {
	var st Stats
	err := r.resolve(ctx, path, func(c *collection) error {
		st = c.stats()
		return nil
	})
	return st, err
}

// Evict closes the handle for path and drops it from the cache. The next
// operation on path loads it from disk again. Evict waits for a running
// build of path to finish. Evicting an uncached path is a no-op.
func (r *Registry) Evict(path string) error {
	canonical, err := canonicalPath(path)
	if err != nil {
		return err
	}
	c, err := r.cached(canonical)
	if c == nil || err != nil {
		return nil
	}
	// The entry stays cached until the log is closed; callers that race the
	// eviction block on the old handle and then reload.
	return c.closeAndDetach(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.collections[canonical] == c {
			delete(r.collections, canonical)
		}
	})
}

// Close evicts every collection. Operations after Close return ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	collections := r.collections
	r.collections = make(map[string]*collection)
	r.mu.Unlock()

	var errs []error
	for _, c := range collections {
		if err := c.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
