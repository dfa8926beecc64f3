// Package hnsw implements Hierarchical Navigable Small World graphs.
//
// HNSW provides approximate nearest neighbor search with high recall and
// sub-linear query time. Distances are cosine distances (1 - dot product)
// over L2-normalized vectors.
//
// # Parameters
//
//   - M: Max connections per node on upper layers, 2*M on layer 0 (default: 16)
//   - EFConstruction: Construction queue size (default: 200)
//   - EFSearch: Search queue size (default: 64)
//   - Seed: Level generator seed; equal seeds give reproducible graphs
//
// Graphs are built once and then queried; Insert and KNNSearch are safe for
// concurrent use.
//
// # Reference
//
// Malkov & Yashunin, "Efficient and robust approximate nearest neighbor search
// using Hierarchical Navigable Small World graphs", IEEE TPAMI 2018.
package hnsw
