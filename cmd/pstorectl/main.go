// Command pstorectl is an operator-facing inspection tool for a penumbra
// storage directory: open it read-only-in-spirit (commits are out of scope
// here) and poke at latest, get, root-hash, watch from an interactive shell.
//
// Usage:
//
//	pstorectl [storage-dir]
//
// With no directory given, opens an ephemeral in-memory store, useful for
// exercising the shell itself without touching disk.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/nodesbond/penumbra/pkg/storage"
)

func main() {
	verbose := flag.Bool("v", false, "enable verbose (debug-level) logging")
	flag.Parse()

	logger := nopLogger
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "pstorectl: failed to build logger: %v\n", err)
			os.Exit(1)
		}
		logger = l
	}
	defer logger.Sync()

	cfg := storage.Config{Logger: logger}
	if flag.NArg() > 0 {
		cfg.Dir = flag.Arg(0)
	} else {
		cfg.InMemory = true
	}

	store, err := storage.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pstorectl: failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	newREPL(store, os.Stdin, os.Stdout).run()
}
