//go:build windows

package flatten

// lineEnding is the platform output line terminator, fixed at build time.
var lineEnding = []byte("\r\n")
