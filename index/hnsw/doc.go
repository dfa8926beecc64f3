// Package hnsw provides the default index builder, backed by a Hierarchical
// Navigable Small World graph.
//
// Builds are reproducible: level generation is seeded, so identical input
// yields an identical graph. Searches that request at least as many results
// as there are vectors, or that run against an index no larger than
// EFSearch, fall back to an exact scan.
//
//	b := hnsw.NewBuilder(func(o *hnsw.Options) {
//	    o.M = 32
//	    o.EFSearch = 128
//	})
package hnsw
