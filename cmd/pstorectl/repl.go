package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nodesbond/penumbra/pkg/jmt"
	"github.com/nodesbond/penumbra/pkg/storage"
)

// repl is an interactive inspection/demo loop over an open Storage: it
// never mutates state (commits are out of scope for an operator tool), only
// latest/get/root-hash/watch.
type repl struct {
	store  *storage.Storage
	shell  *shell
	output io.Writer

	exitRequested bool
}

func newREPL(store *storage.Storage, input io.Reader, output io.Writer) *repl {
	return &repl{
		store:  store,
		shell:  newShell(input, output),
		output: output,
	}
}

func (r *repl) run() {
	fmt.Fprintln(r.output, "pstorectl: penumbra storage inspector")
	fmt.Fprintln(r.output, "Type \"help\" for available commands.")

	for !r.exitRequested {
		fmt.Fprint(r.output, r.shell.prompt)
		line, eof := r.shell.readLine()

		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			r.shell.addHistory(trimmed)
			r.dispatch(trimmed)
		}

		if eof {
			fmt.Fprintln(r.output)
			break
		}
	}
}

func (r *repl) dispatch(line string) {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "help":
		r.printHelp()
	case "exit", "quit":
		r.exitRequested = true
	case "latest":
		r.cmdLatest()
	case "get":
		r.cmdGet(args)
	case "root-hash":
		r.cmdRootHash(args)
	case "watch":
		r.cmdWatch(args)
	default:
		fmt.Fprintf(r.output, "unknown command %q (try \"help\")\n", cmd)
	}
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.output, `Commands:
  latest               print the latest committed version and root hash
  get <key>             print the value stored under key, at the latest version
  root-hash [version]   print the root hash at version (defaults to latest)
  watch [seconds]       block until the next commit, or until the timeout elapses (default 30s)
  help                  show this message
  exit, quit            leave the shell`)
}

func (r *repl) cmdLatest() {
	snap := r.store.Latest()
	fmt.Fprintf(r.output, "version=%s root=%s\n", formatVersion(snap.Version()), hex.EncodeToString(rootSlice(snap.RootHash())))
}

func (r *repl) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(r.output, "usage: get <key>")
		return
	}
	snap := r.store.Latest()
	val, err := snap.Get([]byte(args[0]))
	if err != nil {
		fmt.Fprintf(r.output, "error: %v\n", err)
		return
	}
	if val == nil {
		fmt.Fprintln(r.output, "(not found)")
		return
	}
	fmt.Fprintf(r.output, "%s\n", val)
}

func (r *repl) cmdRootHash(args []string) {
	if len(args) == 0 {
		r.cmdLatest()
		return
	}
	v, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(r.output, "invalid version %q: %v\n", args[0], err)
		return
	}
	snap, ok := r.store.SnapshotAt(jmt.Version(v))
	if !ok {
		fmt.Fprintf(r.output, "version %d is not resident in the snapshot cache\n", v)
		return
	}
	fmt.Fprintf(r.output, "%s\n", hex.EncodeToString(rootSlice(snap.RootHash())))
}

func (r *repl) cmdWatch(args []string) {
	timeout := 30 * time.Second
	if len(args) == 1 {
		secs, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(r.output, "invalid timeout %q: %v\n", args[0], err)
			return
		}
		timeout = time.Duration(secs) * time.Second
	}

	recv := r.store.Subscribe()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	snap, err := recv.Recv(ctx)
	if err != nil {
		fmt.Fprintf(r.output, "timed out waiting for a commit: %v\n", err)
		return
	}
	fmt.Fprintf(r.output, "version=%s root=%s\n", formatVersion(snap.Version()), hex.EncodeToString(rootSlice(snap.RootHash())))
}

func formatVersion(v jmt.Version) string {
	if v == jmt.PreGenesisVersion {
		return "pre-genesis"
	}
	return strconv.FormatUint(uint64(v), 10)
}

func rootSlice(h [32]byte) []byte {
	return h[:]
}

// nopLogger is used when no verbose flag is set, matching pkg/storage's own
// nil-logger default.
var nopLogger = zap.NewNop()
