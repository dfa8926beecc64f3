// Package hash provides the checksum used for every persisted byte in a
// collection directory.
//
// Log records and index blobs are protected with CRC32-Castagnoli, which Go
// computes with hardware instructions on amd64 and arm64.
//
//	sum := hash.CRC32C(payload)
//	sum = hash.CRC32CParts(header, payload)
package hash
