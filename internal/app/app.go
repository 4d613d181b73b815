// Package app implements the intelhub CLI commands.
package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "collect", "run-once":
		return runCollect(args[1:])
	case "loop":
		return runLoop(args[1:])
	case "serve":
		return runServe(args[1:])
	case "stats":
		return runStats(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "intelhub CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  intelhub <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health    Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  validate  Validate a sources file against the schema")
	fmt.Fprintln(os.Stderr, "  collect   Run one collection cycle and evaluate notifications")
	fmt.Fprintln(os.Stderr, "  run-once  Alias for collect")
	fmt.Fprintln(os.Stderr, "  loop      Run collection cycles on an interval")
	fmt.Fprintln(os.Stderr, "  serve     Start the JSON API server")
	fmt.Fprintln(os.Stderr, "  stats     Show store-wide counters")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"intelhub <command> -h\" for command-specific flags.")
}
