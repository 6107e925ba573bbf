package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}
	switch os.Args[1] {
	case "version", "--version", "-v":
		fmt.Printf("quill %s (commit %s, built %s)\n",
			version, commit, buildDate)
		return
	case "help", "--help", "-h":
		printUsage(os.Stdout)
		return
	}

	c := &cli{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	err := c.run(context.Background(), os.Args[1], os.Args[2:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `quill %s - keep an LLM conversation tree in an editable canvas

Each project directory holds a CANVAS.md mirroring one branch of its
prompt history. Type below the "# ASK MODEL BELOW" line, commit, and
record the model's answer.

Usage:
  quill init [dir]                Register a project and write its canvas
  quill render [-leaf id]         Rewrite the canvas (default: head)
  quill pending                   Print the text typed into the canvas
  quill commit                    Store the typed text as a new prompt
  quill answer [-prompt id] [-file f]
                                  Record a response (default: head, stdin)
  quill log [-tips]               Show the head chain or every branch tip
  quill checkout <id>             Move the head and rewrite the canvas
  quill rm [-yes] <id>            Delete a prompt and its descendants
  quill scroll add <file>...      Attach context documents
  quill scroll rm <id>            Detach a context document
  quill scroll ls                 List context documents
  quill context                   Print the context preamble
  quill import <file|->           Import JSONL prompt records
  quill export [-o file]          Export JSONL prompt records
  quill watch [-debounce d]       Report typed text whenever the canvas changes
  quill edit                      Open the canvas in $EDITOR
  quill projects                  List registered projects
  quill forget [-yes]             Unregister the project and its history
  quill strict on|off             Persist strict chain resolution
  quill version                   Show version information
  quill help                      Show this help

Common flags:
  -project string     Project directory (default: current directory)
  -strict             Fail on broken parent links instead of truncating
  -log-level string   Log level (debug, info, warn, error)

Environment variables:
  QUILL_DATA_DIR        Data directory (database, config, log)
  QUILL_EDITOR, EDITOR  Editor command for quill edit
  QUILL_LOG_LEVEL       Log level
  QUILL_STRICT_CHAINS   Strict chain resolution (1/true)

Data is stored in ~/.quill/ by default.
`, version)
}
