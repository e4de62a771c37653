package fleet

import (
	"time"

	"github.com/rileyhilliard/rexec/internal/config"
)

// HostResult is the outcome of one host's run. It is built once when the
// host settles and never changed afterwards.
type HostResult struct {
	Host     config.Host
	Success  bool
	Err      error // nil on success
	Executed int   // commands dispatched
	Skipped  int   // risky commands skipped
	Duration time.Duration
}

// Result holds one HostResult per input host, in input order.
type Result struct {
	RunID    string
	Hosts    []HostResult
	Duration time.Duration // Total wall-clock time
	Passed   int
	Failed   int
}

// Success returns true if every host succeeded.
func (r *Result) Success() bool {
	return r.Failed == 0
}

// FirstFailure returns the error of the first failed host in input order.
func (r *Result) FirstFailure() error {
	for i := range r.Hosts {
		if !r.Hosts[i].Success {
			return r.Hosts[i].Err
		}
	}
	return nil
}

// FailedHosts returns the labels of failed hosts in input order.
func (r *Result) FailedHosts() []string {
	var labels []string
	for i := range r.Hosts {
		if !r.Hosts[i].Success {
			labels = append(labels, r.Hosts[i].Host.Label())
		}
	}
	return labels
}
