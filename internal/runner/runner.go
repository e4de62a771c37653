// Package runner executes a command plan on one open session, strictly one
// command at a time, streaming each command's output to the host's logger.
package runner

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rileyhilliard/rexec/internal/decode"
	"github.com/rileyhilliard/rexec/internal/errors"
	"github.com/rileyhilliard/rexec/internal/logger"
	"github.com/rileyhilliard/rexec/internal/plan"
	"github.com/rileyhilliard/rexec/pkg/sshutil"
	"golang.org/x/text/encoding"
)

// Options controls how a plan is run on a session.
type Options struct {
	// Log receives progress messages and, in line mode, command output.
	Log logger.Logger

	// Stdout and Stderr, when set, receive command output verbatim
	// (passthrough mode). When nil, output is split into lines and sent to
	// Log.Info and Log.Error respectively.
	Stdout io.Writer
	Stderr io.Writer

	// Encoding decodes output to UTF-8. Nil passes bytes through.
	Encoding encoding.Encoding

	// Host labels errors.
	Host string
}

// Stats counts what happened to the plan's entries.
type Stats struct {
	Executed int
	Skipped  int
}

// Run executes p on sess in order. Risky entries are skipped with a warning
// and never reach the session. A command that fails to start aborts the run
// with a CHANNEL error; a nonzero exit status does not.
func Run(ctx context.Context, sess sshutil.Session, p plan.Plan, opts Options) (Stats, error) {
	log := opts.Log
	if log == nil {
		log = logger.Noop()
	}

	var stats Stats
	for _, entry := range p {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if entry.Risky {
			log.Warn("skipping risky command: %s (force is off)", entry.Command)
			stats.Skipped++
			continue
		}

		log.Info("executing: %s", entry.Command)
		ch, err := sess.Start(entry.Command)
		if err != nil {
			return stats, errors.ChannelError(opts.Host, entry.Command, err)
		}
		stats.Executed++

		status, err := drain(ch, opts, log)
		if err != nil {
			log.Warn("no exit status for %s: %v", entry.Command, err)
			continue
		}
		log.Info("completed: %s (%s)", entry.Command, describe(status))
	}
	return stats, nil
}

// drain consumes both output streams concurrently, then collects the exit
// status. Wait is only called once both streams hit EOF.
func drain(ch sshutil.Channel, opts Options, log logger.Logger) (sshutil.ExitStatus, error) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pump(decode.Reader(ch.Stdout(), opts.Encoding), opts.Stdout, log.Info, log)
	}()
	go func() {
		defer wg.Done()
		pump(decode.Reader(ch.Stderr(), opts.Encoding), opts.Stderr, log.Error, log)
	}()
	wg.Wait()

	return ch.Wait()
}

func pump(r io.Reader, raw io.Writer, emit func(string, ...interface{}), log logger.Logger) {
	if raw != nil {
		if _, err := io.Copy(raw, r); err != nil {
			log.Debug("output stream ended early: %v", err)
		}
		return
	}

	lw := newLineWriter(emit)
	if _, err := io.Copy(lw, r); err != nil {
		log.Debug("output stream ended early: %v", err)
	}
	lw.Flush()
}

func describe(status sshutil.ExitStatus) string {
	if status.Signal != "" {
		return fmt.Sprintf("signal %s", status.Signal)
	}
	return fmt.Sprintf("exit %d", status.Code)
}
