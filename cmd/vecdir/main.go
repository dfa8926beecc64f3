// Command vecdir manages file-backed vector collections from the shell.
//
// Usage:
//
//	vecdir [--config file] <command> [args]
//
// Commands:
//
//	create   - create a collection directory
//	insert   - upsert a single vector
//	import   - upsert vectors from a JSONL file
//	delete   - tombstone a vector
//	build    - rebuild and persist collection indexes
//	search   - query the last built index
//	stats    - show collection statistics
package main

import (
	"fmt"
	"os"

	"github.com/hupe1980/vecdir/cmd/vecdir/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
