package sshutil

import (
	"context"
	"io"
)

// Dialer opens sessions to remote hosts.
//
// The real implementation is SSHDialer; tests use the fakes in
// pkg/sshutil/testing.
type Dialer interface {
	// Dial connects and authenticates. The returned Session is ready for
	// Start calls and must be closed by the caller.
	Dial(ctx context.Context, t Target) (Session, error)
}

// Session is one authenticated connection to a single host. It can run any
// number of commands, each on its own channel.
type Session interface {
	// Start opens an exec channel for cmd. An error means the command was
	// never dispatched.
	Start(cmd string) (Channel, error)

	// Address returns the resolved host:port that was dialed.
	Address() string

	// Close terminates the connection.
	Close() error
}

// Channel is one running remote command.
type Channel interface {
	// Stdout and Stderr stream the command's output. Both must be drained
	// before Wait returns.
	Stdout() io.Reader
	Stderr() io.Reader

	// Wait blocks until the channel closes. A nonzero exit status is reported
	// in ExitStatus with a nil error; an error means the status is unknown.
	Wait() (ExitStatus, error)
}

// ExitStatus is how a remote command ended.
type ExitStatus struct {
	Code   int    // -1 when the remote side sent no status
	Signal string // set when the command was killed by a signal
}
