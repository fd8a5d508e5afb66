// Package wraplog is the logging layer shared by every package: plain,
// line-oriented output to stderr, gated by a package-level Verbose flag.
package wraplog

import (
	"fmt"
	"os"
)

// Verbose controls whether Vlogf emits anything. The CLI driver flips this
// on in response to a -v flag; the core never sets it itself.
var Verbose bool

// Logln writes args to stderr, space-separated, unconditionally.
func Logln(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
}

// Logf writes a formatted, "wrap: "-prefixed line to stderr unconditionally.
func Logf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "wrap: "+format+"\n", args...)
}

// Vlogf writes a formatted line only when Verbose is set. The solver and
// registry/cache/local-dev packages use this exclusively for trace output,
// so a non-verbose run produces no log noise.
func Vlogf(format string, args ...interface{}) {
	if !Verbose {
		return
	}
	Logf(format, args...)
}

// Warnf reports a non-fatal condition, always printed regardless of
// Verbose.
func Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "wrap: warning: "+format+"\n", args...)
}
