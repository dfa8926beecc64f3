// Package mmap maps persisted index blobs into memory for read-only access.
//
// On unix platforms the file is mapped with mmap(2). Elsewhere the file is
// read into a heap buffer so callers see the same API.
//
//	m, err := mmap.Open(path)
//	if err != nil { ... }
//	defer m.Close()
//	data := m.Bytes()
package mmap
