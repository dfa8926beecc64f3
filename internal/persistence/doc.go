// Package persistence owns the on-disk layout of a collection directory:
//
//	<dir>/metadata.json   dimensions, index type, metric
//	<dir>/vectors.log     record log of upserts and deletes
//	<dir>/index.bin       the last built index
//
// Every file is replaced through a temp file and rename, so a crash leaves
// either the previous or the new version in place.
package persistence
