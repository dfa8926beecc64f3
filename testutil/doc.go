// Package testutil provides testing utilities for vecdir.
//
// This package is intended for use in tests only. It provides helpers for
// generating random unit vectors, computing exact nearest neighbors, and
// verifying search recall.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UnitVectors(1000, 128)
//
// # Exact Search (Ground Truth)
//
//	results := testutil.BruteForceSearch(ids, vecs, query, k)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(exactResults, approxResults)
package testutil
