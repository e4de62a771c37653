package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/rexec/internal/config"
	"github.com/rileyhilliard/rexec/internal/errors"
	"github.com/rileyhilliard/rexec/internal/fleet"
	"github.com/rileyhilliard/rexec/internal/logger"
	"github.com/rileyhilliard/rexec/internal/plan"
	"github.com/rileyhilliard/rexec/internal/ui"
	"github.com/rileyhilliard/rexec/pkg/sshutil"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// execCmd runs commands across the fleet
var execCmd = &cobra.Command{
	Use:   "exec [command...]",
	Short: "Run commands on every host",
	Long: `Run one or more commands on every host in the fleet.

Each argument is one command. Without arguments the commands come from the
run file. Hosts come from --hosts or the run file.

Examples:
  rexec exec --hosts web-1,web-2 "uptime" "df -h"
  rexec exec --hosts 10.0.0.5 --user Administrator --encoding gbk "dir c:\"
  rexec exec -f fleet.yaml --parallel --timestamp
  rexec exec --hosts db-1 --force "systemctl reboot"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rf, err := loadRunFile(cmd, args, cfgFile)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return execFleet(ctx, rf, execEnv{
			deps: fleet.Deps{
				Dialer: &sshutil.SSHDialer{Log: logger.Default()},
				Stdout: os.Stdout,
				Stderr: os.Stderr,
				Color:  ui.IsTerminal(os.Stdout) && !noColor,
			},
			summary: os.Stderr,
			confirm: confirmForced,
		})
	},
}

func init() {
	AddRunFlags(execCmd)
	rootCmd.AddCommand(execCmd)
}

// execEnv holds what execFleet needs from the outside world.
type execEnv struct {
	deps    fleet.Deps
	summary io.Writer // nil skips the summary
	confirm func(risky []string) (bool, error)
}

// execFleet runs rf and turns host failures into exit status 1. Failures are
// already reported by the run's own logging.
func execFleet(ctx context.Context, rf *config.RunFile, env execEnv) error {
	if err := config.RequireTargets(rf); err != nil {
		return err
	}

	if rf.Force && !rf.AssumeYes && env.confirm != nil {
		if risky := plan.Filter(rf.Commands, false); risky.Risky() > 0 {
			ok, err := env.confirm(riskyCommands(risky))
			if err != nil {
				return err
			}
			if !ok {
				if env.deps.Stderr != nil {
					fmt.Fprintln(env.deps.Stderr, "Cancelled.")
				}
				return nil
			}
		}
	}

	result := fleet.New(rf.Hosts, plan.Filter(rf.Commands, rf.Force), rf.Options, env.deps).Run(ctx)

	if env.summary != nil && rf.Format() != logger.FormatJSON {
		fleet.RenderSummary(env.summary, result)
	}
	if !result.Success() {
		return errors.NewExitError(1)
	}
	return nil
}

func riskyCommands(p plan.Plan) []string {
	var out []string
	for _, e := range p {
		if e.Risky {
			out = append(out, e.Command)
		}
	}
	return out
}

// confirmForced asks before running risky commands. Without a terminal there
// is nobody to ask, so the run proceeds.
func confirmForced(risky []string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true, nil
	}

	var proceed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("--force will run %d risky command(s) on every host:\n  %s\nContinue?",
					len(risky), strings.Join(risky, "\n  "))).
				Affirmative("Run them").
				Negative("Cancel").
				Value(&proceed),
		),
	)
	if err := form.Run(); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Pass --yes to skip the confirmation")
	}
	return proceed, nil
}
