// Package cli implements the rexec command-line interface.
//
// # Command Structure
//
//	rexec exec [command...]  - Run commands on every host
//	rexec plan [command...]  - Show which commands would run or be skipped
//	rexec init               - Create a fleet.yaml run file
//	rexec version            - Print version information
//
// # Configuration
//
// exec and plan share one set of run flags (AddRunFlags). Settings merge in
// rising precedence: built-in defaults, the run file (--config or
// ./fleet.yaml), REXEC_* environment variables, then flags. Positional
// arguments replace the run file's command list.
//
// # Exit Status
//
// exec exits 1 when any host fails. Host failures are reported by the run's
// own log lines and the summary, so Execute prints nothing more for them.
package cli
