package cli

import (
	"fmt"
	"os"
	"regexp"

	"github.com/rileyhilliard/rexec/internal/config"
	"github.com/rileyhilliard/rexec/internal/errors"
	"github.com/rileyhilliard/rexec/internal/ui"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfgFile string
	noColor bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "rexec",
	Short: "Run shell commands across a fleet of hosts over SSH",
	Long: `rexec runs a batch of shell commands on every host in a fleet.

Commands run one at a time on each host, in order. Commands that look
destructive (rm, shutdown, format, reg delete, ...) are skipped unless you
pass --force. Hosts run one after another by default, or all at once with
--parallel. A failing host never stops the others.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || os.Getenv("NO_COLOR") != "" || !ui.IsTerminal(os.Stdout) {
			ui.DisableColors()
		}
		if verbose {
			os.Setenv("REXEC_DEBUG", "1")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "f", "", "run file (default ./"+config.ConfigFileName+" if present)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print transport diagnostics")
}

// Execute runs the root command and exits with the right status.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	if code, ok := errors.GetExitCode(err); ok {
		os.Exit(code)
	}

	fmt.Fprint(os.Stderr, err.Error())
	if isUnknownCommandError(err) {
		if name := extractUnknownCommand(err); name != "" {
			fmt.Fprintf(os.Stderr, "\n  '%s' isn't a rexec command. Did you mean: rexec exec %q\n", name, name)
		}
	}
	fmt.Fprintln(os.Stderr)
	os.Exit(1)
}

var (
	unknownCommandRe = regexp.MustCompile(`unknown command "([^"]+)"`)
	unknownFlagRe    = regexp.MustCompile(`^unknown (shorthand )?flag`)
)

func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return unknownCommandRe.MatchString(msg) || unknownFlagRe.MatchString(msg)
}

func extractUnknownCommand(err error) string {
	m := unknownCommandRe.FindStringSubmatch(err.Error())
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
