package app

import (
	"errors"
	"flag"
	"fmt"
	"os"

	sourceschema "github.com/raphaelschols/ai-intel-hub/schema"
)

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	file := fs.String("file", "sources.json", "Path to the sources file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "validate does not accept positional arguments")
		return 2
	}

	sources, err := sourceschema.LoadSources(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		return 1
	}

	enabled := 0
	for _, src := range sources {
		if src.IsEnabled() {
			enabled++
		}
	}
	fmt.Printf("%s is valid: %d sources (%d enabled)\n", *file, len(sources), enabled)
	return 0
}
