package sshutil

import (
	stderrors "errors"
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"
)

// sshSession adapts *ssh.Client to Session.
type sshSession struct {
	client  *ssh.Client
	address string
}

func (s *sshSession) Address() string {
	return s.address
}

func (s *sshSession) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Start opens a new exec channel with both output pipes attached.
func (s *sshSession) Start(cmd string) (Channel, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := sess.Start(cmd); err != nil {
		sess.Close()
		return nil, fmt.Errorf("exec: %w", err)
	}

	return &sshChannel{sess: sess, stdout: stdout, stderr: stderr}, nil
}

// sshChannel adapts *ssh.Session (one exec channel) to Channel.
type sshChannel struct {
	sess   *ssh.Session
	stdout io.Reader
	stderr io.Reader
}

func (c *sshChannel) Stdout() io.Reader { return c.stdout }
func (c *sshChannel) Stderr() io.Reader { return c.stderr }

// Wait maps the session's exit into an ExitStatus. Exit errors and a missing
// exit status are outcomes, not failures.
func (c *sshChannel) Wait() (ExitStatus, error) {
	defer c.sess.Close()

	err := c.sess.Wait()
	if err == nil {
		return ExitStatus{Code: 0}, nil
	}

	var exitErr *ssh.ExitError
	if stderrors.As(err, &exitErr) {
		return ExitStatus{Code: exitErr.ExitStatus(), Signal: exitErr.Signal()}, nil
	}

	var missingErr *ssh.ExitMissingError
	if stderrors.As(err, &missingErr) {
		return ExitStatus{Code: -1}, nil
	}

	return ExitStatus{Code: -1}, err
}
