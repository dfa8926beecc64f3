package vecdir

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecdir/index"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrEmptyID is returned when a vector id is empty.
	ErrEmptyID = errors.New("vector id must not be empty")

	// ErrCollectionNotFound is returned for a path with no collection on disk.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCorruptPersistedState matches every *ErrCorruptState.
	ErrCorruptPersistedState = errors.New("corrupt persisted state")

	// ErrIndexBuildFailure matches every *ErrIndexBuild.
	ErrIndexBuildFailure = errors.New("index build failed")

	// ErrClosed is returned by operations on a closed Registry.
	ErrClosed = errors.New("registry closed")
)

// ErrUnsupportedMetric indicates a metric other than "cosine".
type ErrUnsupportedMetric struct {
	Metric string
}

func (e *ErrUnsupportedMetric) Error() string {
	return fmt.Sprintf("unsupported metric %q: only %q is supported", e.Metric, MetricCosine)
}

// ErrUnsupportedIndexType indicates an index type other than "hnsw".
type ErrUnsupportedIndexType struct {
	IndexType string
}

func (e *ErrUnsupportedIndexType) Error() string {
	return fmt.Sprintf("unsupported index type %q: only %q is supported", e.IndexType, IndexTypeHNSW)
}

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// ErrIncompatibleCollection is returned when a collection is re-created
// with settings that differ from the existing one.
type ErrIncompatibleCollection struct {
	Path      string
	Field     string
	Existing  string
	Requested string
}

func (e *ErrIncompatibleCollection) Error() string {
	return fmt.Sprintf("collection %s exists with %s %s, requested %s", e.Path, e.Field, e.Existing, e.Requested)
}

// ErrCorruptState indicates that a persisted file could not be read back.
// The collection at Path is unusable until repaired.
type ErrCorruptState struct {
	Path  string
	File  string
	cause error
}

func (e *ErrCorruptState) Error() string {
	return fmt.Sprintf("corrupt persisted state in %s (%s): %v", e.Path, e.File, e.cause)
}

func (e *ErrCorruptState) Unwrap() error { return e.cause }

// Is reports whether target is ErrCorruptPersistedState.
func (e *ErrCorruptState) Is(target error) bool { return target == ErrCorruptPersistedState }

// ErrIndexBuild indicates that the index builder failed. The collection is
// left in its prior state.
type ErrIndexBuild struct {
	Path  string
	cause error
}

func (e *ErrIndexBuild) Error() string {
	return fmt.Sprintf("build index for %s: %v", e.Path, e.cause)
}

func (e *ErrIndexBuild) Unwrap() error { return e.cause }

// Is reports whether target is ErrIndexBuildFailure.
func (e *ErrIndexBuild) Is(target error) bool { return target == ErrIndexBuildFailure }

// ErrMirrorUpload indicates that a built index was committed locally but
// could not be uploaded to the configured mirror.
type ErrMirrorUpload struct {
	Path  string
	Key   string
	cause error
}

func (e *ErrMirrorUpload) Error() string {
	return fmt.Sprintf("mirror index for %s to %s: %v", e.Path, e.Key, e.cause)
}

func (e *ErrMirrorUpload) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	return err
}
