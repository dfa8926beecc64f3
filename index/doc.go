// Package index defines the approximate nearest neighbor boundary used by
// vecdir collections.
//
// A [Builder] turns the live items of a collection into an immutable
// [Index]. Two builders ship with the module:
//
//   - flat: exact brute-force scan, the reference implementation
//   - hnsw: Hierarchical Navigable Small World graph (default)
//
// # Index Interface
//
//	type Index interface {
//	    Len() int
//	    Dimension() int
//	    Search(ctx context.Context, query []float32, k int) ([]Result, error)
//	    MarshalBinary() ([]byte, error)
//	}
//
// Scores are dot products: callers are expected to supply L2-normalized
// vectors so that scores are cosine similarities.
//
// # Conformance
//
// Package indextest provides a contract suite every Builder must pass.
package index
