// Package rexec runs shell commands across a fleet of hosts over SSH.
//
// Commands run one at a time on each host, in order. Commands matching the
// built-in danger list are skipped unless Options.Force is set. Hosts run one
// after another, or all at once with Options.Parallel. Every host gets a
// result and one failing host never stops the others.
//
//	opts := rexec.DefaultOptions()
//	opts.Username = "deploy"
//	rexec.RemoteExec(ctx, rexec.ParseHosts([]string{"web-1", "web-2"}),
//		[]string{"uptime"}, opts, func(err error) {
//			if err != nil {
//				log.Fatal(err)
//			}
//		})
package rexec

import (
	"context"

	"github.com/rileyhilliard/rexec/internal/config"
	"github.com/rileyhilliard/rexec/internal/fleet"
	"github.com/rileyhilliard/rexec/internal/plan"
)

type (
	// Host is one target: an address plus optional display name and output
	// encoding.
	Host = config.Host
	// Options are the run-wide settings.
	Options = config.Options
	// Deps swaps the transport, output sinks or clock.
	Deps = fleet.Deps
	// Result is the per-host outcome of a run.
	Result = fleet.Result
	// HostResult is one host's outcome.
	HostResult = fleet.HostResult
)

// DefaultOptions returns port 22, user root, key ~/.ssh/id_rsa and
// sequential, raw-output execution.
func DefaultOptions() Options {
	return config.DefaultOptions()
}

// ParseHosts turns bare addresses into Hosts.
func ParseHosts(addresses []string) []Host {
	return config.ParseHosts(addresses)
}

// IsRisky reports whether cmd matches the danger list.
func IsRisky(cmd string) bool {
	return plan.IsRisky(cmd)
}

// Engine runs fleets with a fixed set of collaborators.
type Engine struct {
	deps Deps
}

// New returns an Engine. A zero Deps uses real SSH and the process's
// stdout/stderr.
func New(deps Deps) *Engine {
	return &Engine{deps: deps}
}

// RemoteExec runs cmds on every host and calls cb exactly once when all hosts
// have settled: nil on full success, otherwise the first failure in host
// order. The names of all failed hosts are logged.
func (e *Engine) RemoteExec(ctx context.Context, hosts []Host, cmds []string, opts Options, cb func(error)) {
	fleet.Execute(ctx, hosts, cmds, opts, e.deps, cb)
}

// Run is RemoteExec returning the full per-host result.
func (e *Engine) Run(ctx context.Context, hosts []Host, cmds []string, opts Options) *Result {
	return fleet.New(hosts, plan.Filter(cmds, opts.Force), opts, e.deps).Run(ctx)
}

// RemoteExec runs cmds on hosts over real SSH connections. See
// Engine.RemoteExec.
func RemoteExec(ctx context.Context, hosts []Host, cmds []string, opts Options, cb func(error)) {
	New(Deps{}).RemoteExec(ctx, hosts, cmds, opts, cb)
}
