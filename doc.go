// Package vecdir provides persistent, file-backed collections of
// fixed-dimension embedding vectors with approximate nearest neighbor search.
//
// Each collection lives in its own directory. A Registry caches one handle
// per directory and routes every operation through it.
//
// # Quick Start
//
//	ctx := context.Background()
//	reg := vecdir.NewRegistry()
//	defer reg.Close()
//
//	_ = reg.CreateCollection(ctx, vecdir.Config{
//	    Path:       "./data/docs",
//	    Dimensions: 384,
//	    IndexType:  vecdir.IndexTypeHNSW,
//	    Metric:     vecdir.MetricCosine,
//	})
//	_ = reg.InsertVector(ctx, "./data/docs", "doc-1", embedding)
//	_ = reg.BuildIndex(ctx, "./data/docs")
//	results, _ := reg.Search(ctx, "./data/docs", query, 10)
//
// # Consistency Model
//
// Inserts and deletes are appended to the collection's record log and are
// durable when the call returns. They do not touch the built index: new
// vectors become searchable, and deleted vectors disappear from results,
// only after the next BuildIndex. A build constructs a fresh index from the
// live vectors, writes index.bin atomically, swaps it in for concurrent
// searchers and compacts the log so deleted vectors are gone for good.
//
// Searches never wait for a build; they see either the old or the new
// index.
//
// # Scores
//
// Only the cosine metric is supported. Scores are dot products, so callers
// must supply L2-normalized vectors (see distance.NormalizeL2Copy).
//
// # On-disk Layout
//
//	metadata.json   dimensions, index type and metric (written once)
//	vectors.log     append-only record log of upserts and deletes
//	index.bin       last built index, checksummed and optionally compressed
package vecdir
