// Package distance provides the vector math behind similarity search.
//
// Collections store vectors L2-normalized, so cosine similarity reduces to a
// dot product:
//
//	v, ok := distance.NormalizeL2Copy(raw)
//	score := distance.Dot(v, q)
package distance
