package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/rexec/internal/config"
	"github.com/rileyhilliard/rexec/internal/decode"
	"github.com/rileyhilliard/rexec/internal/errors"
	"github.com/rileyhilliard/rexec/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	initHostsFlag []string
	initForce     bool
)

// initCmd writes a starter run file
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a " + config.ConfigFileName + " run file",
	Long: `Create a starter run file in the current directory.

Prompts for hosts, username and output encoding when run in a terminal.

Examples:
  rexec init
  rexec init --hosts web-1,web-2
  rexec init --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Init(InitOptions{
			Path:           initPath(),
			Hosts:          initHostsFlag,
			Overwrite:      initForce,
			NonInteractive: !term.IsTerminal(int(os.Stdin.Fd())),
			Out:            cmd.OutOrStdout(),
		})
	},
}

func init() {
	initCmd.Flags().StringSliceVar(&initHostsFlag, "hosts", nil, "hosts to put in the file")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}

func initPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.ConfigFileName
}

// InitOptions holds options for the init command.
type InitOptions struct {
	Path           string
	Hosts          []string // Pre-specified hosts; skips the hosts prompt
	Overwrite      bool     // Overwrite existing file without asking
	NonInteractive bool     // Skip prompts, use defaults
	Out            io.Writer
}

// Init writes a starter run file.
func Init(opts InitOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	if _, err := os.Stat(opts.Path); err == nil && !opts.Overwrite {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Run file already exists: %s", opts.Path),
				"Use --force to overwrite")
		}

		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("'%s' already exists. Overwrite?", opts.Path)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	defaults := config.DefaultOptions()
	hostList := strings.Join(opts.Hosts, ",")
	username := defaults.Username
	encoding := ""

	if !opts.NonInteractive {
		var groups []*huh.Group
		if len(opts.Hosts) == 0 {
			groups = append(groups, huh.NewGroup(
				huh.NewInput().
					Title("Hosts").
					Description("Comma-separated: hostnames, user@host, host:port or SSH config aliases").
					Placeholder("web-1,web-2,10.0.0.5").
					Value(&hostList),
			))
		}
		groups = append(groups,
			huh.NewGroup(
				huh.NewInput().
					Title("SSH username").
					Value(&username).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("username is required")
						}
						return nil
					}),
			),
			huh.NewGroup(
				huh.NewInput().
					Title("Output encoding (optional)").
					Description("Set this for hosts that don't print UTF-8, e.g. gbk for Chinese Windows").
					Value(&encoding).
					Validate(func(s string) error {
						_, err := decode.Lookup(s)
						return err
					}),
			),
		)

		if err := huh.NewForm(groups...).Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Check terminal compatibility or pass --hosts")
		}
	}

	runOpts := defaults
	runOpts.Username = strings.TrimSpace(username)
	runOpts.Encoding = strings.TrimSpace(encoding)

	var hosts []config.Host
	for _, h := range strings.Split(hostList, ",") {
		if strings.TrimSpace(h) != "" {
			hosts = append(hosts, config.ParseHost(h))
		}
	}

	rf := &config.RunFile{
		Version:  config.CurrentConfigVersion,
		Hosts:    hosts,
		Commands: []string{"uptime"},
		Options:  runOpts,
	}
	if err := config.Save(opts.Path, rf); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s Created %s\n\n", ui.SymbolSuccess, opts.Path)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  rexec plan    - See which commands would run")
	fmt.Fprintln(out, "  rexec exec    - Run them on every host")
	return nil
}
