package cli

import (
	"fmt"
	"io"

	"github.com/rileyhilliard/rexec/internal/config"
	"github.com/rileyhilliard/rexec/internal/errors"
	"github.com/rileyhilliard/rexec/internal/plan"
	"github.com/rileyhilliard/rexec/internal/ui"
	"github.com/rileyhilliard/rexec/pkg/sshutil"
	"github.com/spf13/cobra"
)

var planExplain bool

// planCmd shows what exec would do without connecting anywhere
var planCmd = &cobra.Command{
	Use:   "plan [command...]",
	Short: "Show which commands would run or be skipped",
	Long: `Print the command plan for a run without connecting to any host.

Each command is marked "run" or "skip". Skipped commands match the built-in
danger list and only run with --force. Takes the same flags as exec.

Examples:
  rexec plan "apt-get update" "shutdown -r now"
  rexec plan -f fleet.yaml
  rexec plan --explain`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rf, err := loadRunFile(cmd, args, cfgFile)
		if err != nil {
			return err
		}
		if planExplain {
			printDangerList(cmd.OutOrStdout())
			return nil
		}
		// An unreadable ssh config only loses the annotations.
		aliases, _ := sshutil.ParseSSHConfig()
		return printPlan(cmd.OutOrStdout(), rf, aliases)
	},
}

func init() {
	AddRunFlags(planCmd)
	planCmd.Flags().BoolVar(&planExplain, "explain", false, "list the danger fragments commands are matched against")
	rootCmd.AddCommand(planCmd)
}

// printPlan writes the host table and command verdicts for rf. aliases from
// ~/.ssh/config annotate hosts that resolve through it.
func printPlan(w io.Writer, rf *config.RunFile, aliases []sshutil.SSHHostEntry) error {
	if len(rf.Commands) == 0 {
		return errors.New(errors.ErrConfig,
			"No commands to run",
			"Pass commands as arguments or list them under 'commands' in "+config.ConfigFileName)
	}

	if len(rf.Hosts) > 0 {
		byAlias := make(map[string]sshutil.SSHHostEntry, len(aliases))
		if rf.UseSSHConfig {
			for _, a := range aliases {
				byAlias[a.Alias] = a
			}
		}

		rows := make([][]string, 0, len(rf.Hosts))
		for _, h := range rf.Hosts {
			via := "-"
			if entry, ok := byAlias[h.Address]; ok {
				via = entry.Description()
			}
			enc := rf.EncodingFor(h)
			if enc == "" {
				enc = "-"
			}
			rows = append(rows, []string{h.Label(), h.Address, via, enc})
		}
		fmt.Fprintln(w, ui.RenderSimpleTable([]ui.TableColumn{
			{Title: "Host", Width: 6},
			{Title: "Address", Width: 8},
			{Title: "SSH config", Width: 10},
			{Title: "Encoding", Width: 8},
		}, rows))
		fmt.Fprintln(w)
	}

	p := plan.Filter(rf.Commands, rf.Force)
	rows := make([]ui.PlanRow, len(p))
	for i, e := range p {
		rows[i] = ui.PlanRow{Command: e.Command, Skip: e.Risky}
		if e.Risky {
			rows[i].Reason, _ = plan.Match(e.Command)
		}
	}
	fmt.Fprint(w, ui.RenderPlan(rows))

	mode := "one host at a time"
	if rf.Parallel {
		mode = "all hosts at once"
	}
	fmt.Fprintf(w, "\n%d to run, %d skipped, %s\n", len(p)-p.Risky(), p.Risky(), mode)
	if p.Risky() > 0 {
		fmt.Fprintln(w, "Pass --force to run skipped commands.")
	}
	return nil
}

func printDangerList(w io.Writer) {
	fmt.Fprintln(w, "Commands containing any of these (case-insensitive) are skipped without --force:")
	for _, f := range plan.Fragments() {
		fmt.Fprintf(w, "  %s\n", f)
	}
}
