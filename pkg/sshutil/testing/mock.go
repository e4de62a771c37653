package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/rileyhilliard/rexec/pkg/sshutil"
)

// CommandResponse defines a canned response for a specific command pattern.
// Each element of Stdout and Stderr is delivered by exactly one Read call,
// so tests control where chunk boundaries fall.
type CommandResponse struct {
	Stdout   []string
	Stderr   []string
	ExitCode int
	Signal   string
	StartErr error // returned by Start; the command never runs
	WaitErr  error // returned by Wait after output is drained
}

// Lines is a convenience for a response with stdout chunks and exit 0.
func Lines(chunks ...string) CommandResponse {
	return CommandResponse{Stdout: chunks}
}

// EventLog records dial and close events across every mock session, in the
// order they happened.
type EventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *EventLog) add(event string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

// Events returns a copy of the recorded events.
func (l *EventLog) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// Barrier blocks each caller until n callers have arrived, or fails after
// timeout. Used to prove hosts are dialed concurrently.
type Barrier struct {
	n       int
	timeout time.Duration

	mu      sync.Mutex
	arrived int
	done    chan struct{}
}

// NewBarrier creates a barrier for n participants.
func NewBarrier(n int, timeout time.Duration) *Barrier {
	return &Barrier{n: n, timeout: timeout, done: make(chan struct{})}
}

// Wait registers arrival and blocks until all participants are in.
func (b *Barrier) Wait(ctx context.Context) error {
	b.mu.Lock()
	b.arrived++
	if b.arrived == b.n {
		close(b.done)
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.timeout):
		b.mu.Lock()
		defer b.mu.Unlock()
		return fmt.Errorf("barrier: only %d of %d dials in flight", b.arrived, b.n)
	}
}

// MockDialer hands out MockSessions keyed by host address.
type MockDialer struct {
	mu       sync.Mutex
	sessions map[string]*MockSession
	failures map[string]error
	targets  []sshutil.Target

	// Events, when set, receives "dial:<addr>" and "close:<addr>" entries.
	Events *EventLog
	// Barrier, when set, is awaited inside every Dial.
	Barrier *Barrier
}

// NewMockDialer creates a dialer with no hosts. Unknown addresses get an
// empty session where every command exits 0 silently.
func NewMockDialer() *MockDialer {
	return &MockDialer{
		sessions: make(map[string]*MockSession),
		failures: make(map[string]error),
		Events:   &EventLog{},
	}
}

// AddHost registers a session for address and returns it for configuration.
func (d *MockDialer) AddHost(address string) *MockSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := NewMockSession(address)
	s.events = d.Events
	d.sessions[address] = s
	return s
}

// FailHost makes every Dial to address return err.
func (d *MockDialer) FailHost(address string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[address] = err
}

// Session returns the session registered for address, or nil.
func (d *MockDialer) Session(address string) *MockSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[address]
}

// Targets returns every Target passed to Dial, in call order.
func (d *MockDialer) Targets() []sshutil.Target {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sshutil.Target(nil), d.targets...)
}

// Dial implements sshutil.Dialer.
func (d *MockDialer) Dial(ctx context.Context, t sshutil.Target) (sshutil.Session, error) {
	d.mu.Lock()
	d.targets = append(d.targets, t)
	d.mu.Unlock()
	d.Events.add("dial:" + t.Address)

	if d.Barrier != nil {
		if err := d.Barrier.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.failures[t.Address]; ok {
		return nil, err
	}
	s, ok := d.sessions[t.Address]
	if !ok {
		s = NewMockSession(t.Address)
		s.events = d.Events
		d.sessions[t.Address] = s
	}
	return s, nil
}

// MockSession simulates one SSH connection.
type MockSession struct {
	mu       sync.Mutex
	address  string
	closed   bool
	started  []string
	commands map[string]CommandResponse // pattern -> response
	order    []string
	events   *EventLog
}

// NewMockSession creates a session whose commands all succeed silently.
func NewMockSession(address string) *MockSession {
	return &MockSession{
		address:  address,
		commands: make(map[string]CommandResponse),
	}
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern can be an exact string or a regex pattern. Exact matches win,
// then patterns are tried in registration order.
func (s *MockSession) SetCommandResponse(pattern string, resp CommandResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.commands[pattern]; !ok {
		s.order = append(s.order, pattern)
	}
	s.commands[pattern] = resp
}

// Start implements sshutil.Session.
func (s *MockSession) Start(cmd string) (sshutil.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("connection closed")
	}

	resp := s.lookup(cmd)
	if resp.StartErr != nil {
		return nil, resp.StartErr
	}
	s.started = append(s.started, cmd)
	return &MockChannel{
		stdout: &chunkReader{chunks: resp.Stdout},
		stderr: &chunkReader{chunks: resp.Stderr},
		resp:   resp,
	}, nil
}

func (s *MockSession) lookup(cmd string) CommandResponse {
	if resp, ok := s.commands[cmd]; ok {
		return resp
	}
	for _, pattern := range s.order {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return s.commands[pattern]
		}
	}
	return CommandResponse{}
}

// Started returns the commands that were dispatched, in order.
func (s *MockSession) Started() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.started...)
}

// Address implements sshutil.Session.
func (s *MockSession) Address() string {
	return s.address + ":22"
}

// Close marks the connection as closed.
func (s *MockSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.events.add("close:" + s.address)
	return nil
}

// Closed reports whether Close was called.
func (s *MockSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MockChannel replays a CommandResponse.
type MockChannel struct {
	stdout *chunkReader
	stderr *chunkReader
	resp   CommandResponse
}

func (c *MockChannel) Stdout() io.Reader { return c.stdout }
func (c *MockChannel) Stderr() io.Reader { return c.stderr }

// Wait implements sshutil.Channel.
func (c *MockChannel) Wait() (sshutil.ExitStatus, error) {
	status := sshutil.ExitStatus{Code: c.resp.ExitCode, Signal: c.resp.Signal}
	if c.resp.WaitErr != nil {
		status.Code = -1
	}
	return status, c.resp.WaitErr
}

// chunkReader returns one chunk per Read.
type chunkReader struct {
	mu     sync.Mutex
	chunks []string
	buf    []byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buf) == 0 {
		if len(r.chunks) == 0 {
			return 0, io.EOF
		}
		r.buf = []byte(r.chunks[0])
		r.chunks = r.chunks[1:]
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
