// Package main is the entry point for the eventflow CLI.
//
// Usage:
//
//	eventflow [flags] <command> [args]
//
// Commands:
//
//	record   - Record an event stream from a websocket endpoint
//	inspect  - List capture sessions or decode the frames of one
//	replay   - Replay a captured session through the stream transformer
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/eventflow-io/eventflow/cmd/eventflow/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
