package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Exitf reports a fatal command error on stderr, prefixed with the program
// name, and exits with status 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", filepath.Base(os.Args[0]), fmt.Sprintf(format, args...))
	os.Exit(1)
}
