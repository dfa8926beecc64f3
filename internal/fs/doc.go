// Package fs provides filesystem abstractions for testability and fault injection.
//
// # Implementations
//
//   - [LocalFS]: Production implementation using the standard os package
//   - [FaultyFS]: Test utility that injects write, sync and rename failures
//
// Production code uses fs.Default. Tests inject [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("index.bin", fs.Fault{FailAfterBytes: -1, FailOnRename: true})
//
// # Design Notes
//
// This package does NOT take context.Context parameters. Local filesystem
// operations are not interruptible at the syscall level.
package fs
