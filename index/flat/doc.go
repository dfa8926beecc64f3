// Package flat provides an exact brute-force index.
//
// Every search scores all vectors, so results are exact and ordering is
// fully deterministic. It is the reference implementation of the
// index.Builder contract and suits small collections.
package flat
