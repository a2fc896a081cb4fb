package kernel

import (
	"context"
	"sync"
)

// FakeSession implements Session in memory, recording every fragment it is
// asked to run. Configured errors are returned for matching fragments.
type FakeSession struct {
	mu      sync.Mutex
	codes   []string
	errors  map[string]error
	stopped int
}

// NewFakeSession creates a new FakeSession
func NewFakeSession() *FakeSession {
	return &FakeSession{errors: make(map[string]error)}
}

// SetError makes Run return err whenever it is given code.
func (f *FakeSession) SetError(code string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[code] = err
}

// Run records code and returns the configured error, if any.
func (f *FakeSession) Run(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if f.stopped > 0 {
		return ErrSessionClosed
	}
	f.codes = append(f.codes, code)
	return f.errors[code]
}

// Stop records the shutdown.
func (f *FakeSession) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

// Codes returns every fragment run so far, in order.
func (f *FakeSession) Codes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.codes...)
}

// Stopped reports how many times Stop was called.
func (f *FakeSession) Stopped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// FakeStarter hands out FakeSessions and remembers which kernels were requested.
type FakeStarter struct {
	mu       sync.Mutex
	Sessions []*FakeSession
	Kernels  []string
	Err      error // returned by Start when set

	// Prepare, when set, configures each new session before it is returned.
	Prepare func(*FakeSession)
}

// Start returns a new FakeSession.
func (f *FakeStarter) Start(ctx context.Context, kernelName string) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Kernels = append(f.Kernels, kernelName)
	if f.Err != nil {
		return nil, f.Err
	}
	s := NewFakeSession()
	if f.Prepare != nil {
		f.Prepare(s)
	}
	f.Sessions = append(f.Sessions, s)
	return s, nil
}
