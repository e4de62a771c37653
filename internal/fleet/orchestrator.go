// Package fleet runs one command plan across many hosts, one after another
// or all at once, and collects a result for every host.
package fleet

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/rexec/internal/config"
	"github.com/rileyhilliard/rexec/internal/decode"
	"github.com/rileyhilliard/rexec/internal/errors"
	"github.com/rileyhilliard/rexec/internal/logger"
	"github.com/rileyhilliard/rexec/internal/plan"
	"github.com/rileyhilliard/rexec/internal/runner"
	"github.com/rileyhilliard/rexec/pkg/sshutil"
	"golang.org/x/sync/errgroup"
)

// Deps are the collaborators of a run. Zero values mean the real SSH dialer,
// the process's stdout/stderr, the wall clock and a fresh run ID.
type Deps struct {
	Dialer sshutil.Dialer
	Stdout io.Writer
	Stderr io.Writer
	Color  bool
	Now    func() time.Time
	RunID  string
}

// Orchestrator runs a plan across a fleet.
type Orchestrator struct {
	hosts  []config.Host
	plan   plan.Plan
	opts   config.Options
	dialer sshutil.Dialer
	logCfg logger.Config
	now    func() time.Time
}

// New prepares a run. Hosts are normalized so bare addresses and records
// behave the same.
func New(hosts []config.Host, p plan.Plan, opts config.Options, deps Deps) *Orchestrator {
	normalized := make([]config.Host, len(hosts))
	for i, h := range hosts {
		normalized[i] = h.Normalize()
	}

	dialer := deps.Dialer
	if dialer == nil {
		dialer = sshutil.NewDialer()
	}
	stdout, stderr := deps.Stdout, deps.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	runID := deps.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	return &Orchestrator{
		hosts:  normalized,
		plan:   p,
		opts:   opts,
		dialer: dialer,
		now:    now,
		logCfg: logger.Config{
			Format: opts.Format(),
			Stdout: logger.NewSyncWriter(stdout),
			Stderr: logger.NewSyncWriter(stderr),
			Color:  deps.Color,
			RunID:  runID,
			Now:    now,
		},
	}
}

// RunID identifies this run in JSON logs.
func (o *Orchestrator) RunID() string {
	return o.logCfg.RunID
}

// Run executes the plan on every host and waits for all of them. Sequential
// mode starts host N+1 only after host N settles; parallel mode starts all
// hosts at once. A failing host never stops the others.
func (o *Orchestrator) Run(ctx context.Context) *Result {
	start := o.now()
	results := make([]HostResult, len(o.hosts))

	var g errgroup.Group
	if !o.opts.Parallel {
		g.SetLimit(1)
	}
	for i, h := range o.hosts {
		g.Go(func() error {
			results[i] = o.runHost(ctx, h)
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{
		RunID:    o.logCfg.RunID,
		Hosts:    results,
		Duration: o.now().Sub(start),
	}
	for i := range results {
		if results[i].Success {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	runLog := logger.New(o.logCfg, "")
	if failed := result.FailedHosts(); len(failed) > 0 {
		runLog.Error("failed hosts: %s", strings.Join(failed, ", "))
	} else {
		runLog.Info("all hosts completed")
	}
	return result
}

// runHost owns one host's session from dial to close. Every failure ends up
// in the returned HostResult.
func (o *Orchestrator) runHost(ctx context.Context, h config.Host) HostResult {
	start := o.now()
	log := logger.New(o.logCfg, h.Label())
	fail := func(err error, stats runner.Stats) HostResult {
		log.Error("%s", errors.Brief(err))
		return HostResult{
			Host:     h,
			Err:      err,
			Executed: stats.Executed,
			Skipped:  stats.Skipped,
			Duration: o.now().Sub(start),
		}
	}

	if err := o.opts.CheckFormat(); err != nil {
		return fail(err, runner.Stats{})
	}

	enc, err := decode.Lookup(o.opts.EncodingFor(h))
	if err != nil {
		return fail(errors.WrapWithCode(err, errors.ErrConfig,
			"Unknown output encoding for '"+h.Label()+"'",
			"Use an encoding name like gbk, gb18030, shift_jis or windows-1252"), runner.Stats{})
	}

	log.Info("connecting to %s (%s)", h.Label(), h.Address)
	sess, err := sshutil.DialWithRetry(ctx, o.dialer, o.target(h), o.opts.ConnectRetries, log)
	if err != nil {
		if !errors.IsCode(err, errors.ErrConnect) {
			err = errors.ConnectError(h.Label(), err, "Make sure the host is reachable: ssh "+h.Address)
		}
		return fail(err, runner.Stats{})
	}
	log.Info("connected")

	runOpts := runner.Options{
		Log:      log,
		Encoding: enc,
		Host:     h.Label(),
	}
	if o.logCfg.Format == logger.FormatRaw {
		runOpts.Stdout = o.logCfg.Stdout
		runOpts.Stderr = o.logCfg.Stderr
	}

	stats, runErr := runner.Run(ctx, sess, o.plan, runOpts)
	if err := sess.Close(); err != nil {
		log.Debug("closing session: %v", err)
	}
	if runErr != nil {
		return fail(runErr, stats)
	}

	log.Info("completed all commands")
	return HostResult{
		Host:     h,
		Success:  true,
		Executed: stats.Executed,
		Skipped:  stats.Skipped,
		Duration: o.now().Sub(start),
	}
}

func (o *Orchestrator) target(h config.Host) sshutil.Target {
	return sshutil.Target{
		Address:               h.Address,
		Port:                  o.opts.Port,
		User:                  o.opts.Username,
		IdentityFile:          o.opts.IdentityFile,
		UseAgent:              o.opts.UseAgent,
		UseSSHConfig:          o.opts.UseSSHConfig,
		StrictHostKeyChecking: o.opts.StrictHostKeyChecking,
		KnownHosts:            o.opts.KnownHosts,
		Timeout:               o.opts.ConnectTimeout,
	}
}

// Execute filters cmds once, runs them on every host and calls onDone exactly
// once with the first failure in host order, or nil when every host
// succeeded.
func Execute(ctx context.Context, hosts []config.Host, cmds []string, opts config.Options, deps Deps, onDone func(error)) {
	result := New(hosts, plan.Filter(cmds, opts.Force), opts, deps).Run(ctx)
	if onDone != nil {
		onDone(result.FirstFailure())
	}
}
