// Package sink implements the process-wide exception sink: the target
// for any error that a value-less task or a supervisor tick callback
// raised and that has no consumer-facing result channel to carry it.
//
// Swapping the sink is not synchronized against concurrent Report
// calls, by design — callers are expected to install their sink once,
// at process initialization.
package sink

import (
	"fmt"
	"os"

	xlog "github.com/xiajingge/logger"
)

// Sink receives (source, message) pairs for exceptions that cannot be
// surfaced to any caller.
type Sink func(source, message string)

var current Sink = defaultSink

// Set installs a new process-wide sink. Not safe for concurrent use
// against Report; swap at initialization.
func Set(s Sink) {
	if s == nil {
		s = defaultSink
	}
	current = s
}

// Report hands (source, message) to the currently installed sink.
func Report(source, message string) {
	current(source, message)
}

var fallback = xlog.New("branchpool")

// defaultSink writes one line per report via the structured logger,
// falling back to stderr if the logger itself cannot be constructed.
func defaultSink(source, message string) {
	if fallback != nil {
		fallback.Errorf("%s: %s", source, message)
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %s\n", source, message)
}
