// Package debug provides build-time-gated diagnostic logging. With the gate
// off (the default) every call is a cheap branch and no output is produced.
package debug

import (
	"fmt"
	"io"
	"sync"
)

// EnableDebug gates all debug output - override at build time with
// go build -ldflags "-X github.com/standardbeagle/spp/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// debugOutput is the writer for debug output (defaults to nil, meaning no output)
var debugOutput io.Writer

// debugMutex protects access to debug output
var debugMutex sync.Mutex

// Enabled reports whether the build-time gate is on.
func Enabled() bool {
	return EnableDebug == "true"
}

// SetDebugOutput sets a custom writer for debug output.
// Pass nil to disable debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// Logf writes one formatted debug line when the gate is on and a writer is
// set.
func Logf(format string, args ...any) {
	if !Enabled() {
		return
	}
	debugMutex.Lock()
	defer debugMutex.Unlock()
	if debugOutput == nil {
		return
	}
	fmt.Fprintf(debugOutput, format+"\n", args...)
}
