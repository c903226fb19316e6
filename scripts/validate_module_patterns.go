// validate_module_patterns.go checks extracted module packages for direct
// legacy coupling, raw signal literals and bus bypasses.
package main

import (
	"fmt"
	"io"
	"os"

	"plantsim/internal/validation"
)

var defaultModuleDirs = []string{"internal/modules/pressurizer", "internal/modules/facade"}

func main() {
	os.Exit(run(os.Args, os.Stderr, validation.ValidateModuleDirectory))
}

// run validates each directory named in args[1:], or the default module
// directories when none are given.
func run(args []string, stderr io.Writer, validate func(string) []validation.Error) int {
	if validate == nil {
		progName := "validate_module_patterns"
		if len(args) > 0 {
			progName = args[0]
		}
		_, _ = fmt.Fprintf(stderr, "Usage: %s [module-directory...]\n", progName)
		return 1
	}
	dirs := defaultModuleDirs
	if len(args) > 1 {
		dirs = args[1:]
	}

	var found []validation.Error
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			if _, writeErr := fmt.Fprintf(stderr, "Module directory %s: %v\n", dir, err); writeErr != nil {
				return 1
			}
			return 1
		}
		found = append(found, validate(dir)...)
	}
	if len(found) == 0 {
		return 0
	}

	if _, err := fmt.Fprintf(stderr, "❌ Found %d module boundary violations:\n\n", len(found)); err != nil {
		return 1
	}
	for _, e := range found {
		if _, err := fmt.Fprintf(stderr, "🚨 %s:%d\n", e.File, e.Line); err != nil {
			return 1
		}
		if _, err := fmt.Fprintf(stderr, "   %s\n", e.Message); err != nil {
			return 1
		}
		if e.Code != "" {
			if _, err := fmt.Fprintf(stderr, "   Code: %s\n\n", e.Code); err != nil {
				return 1
			}
		}
	}
	return 1
}
