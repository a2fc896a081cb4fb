// Package kernel is the execution session adapter: it starts a kernel,
// sends it code fragments one at a time, and stops it.
//
// The production implementation talks to a Jupyter server (REST for the
// kernel lifecycle, a websocket for the message channels). FakeStarter and
// FakeSession record fragments in memory for tests.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// ErrTimeout is returned when the kernel does not reply, or does not go idle,
// before the per-fragment deadline.
var ErrTimeout = errors.New("kernel timed out waiting for message")

// ErrSessionClosed is returned by Run after Stop, or after a timeout left the
// channel in an unknown state.
var ErrSessionClosed = errors.New("kernel session closed")

// Session is a running kernel with persistent state.
// Fragments are executed strictly one at a time.
type Session interface {
	// Run executes code and waits for it to finish. A raised exception is
	// returned as an *ExecutionError.
	Run(ctx context.Context, code string) error

	// Stop shuts the kernel down. It is safe to call more than once.
	Stop(ctx context.Context) error
}

// Starter starts kernel sessions.
type Starter interface {
	Start(ctx context.Context, kernelName string) (Session, error)
}

// ExecutionError is an exception raised by code running in the kernel.
type ExecutionError struct {
	EName     string
	EValue    string
	Traceback []string
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.EValue == "" {
		return e.EName
	}
	return fmt.Sprintf("%s: %s", e.EName, e.EValue)
}

// TracebackText returns the traceback as plain text, one frame per line,
// with terminal color sequences removed.
func (e *ExecutionError) TracebackText() string {
	lines := make([]string, len(e.Traceback))
	for i, l := range e.Traceback {
		lines[i] = ansi.Strip(l)
	}
	return strings.Join(lines, "\n")
}
