package cli

import (
	"github.com/rileyhilliard/rexec/internal/config"
	"github.com/rileyhilliard/rexec/internal/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// runFlagKeys maps flag names to run file keys.
var runFlagKeys = map[string]string{
	"hosts":                    "hosts",
	"port":                     "port",
	"user":                     "username",
	"identity":                 "identity_file",
	"force":                    "force",
	"encoding":                 "encoding",
	"parallel":                 "parallel",
	"timestamp":                "timestamp",
	"log-format":               "log_format",
	"yes":                      "yes",
	"connect-timeout":          "connect_timeout",
	"retries":                  "connect_retries",
	"no-agent":                 "",
	"no-ssh-config":            "",
	"strict-host-key-checking": "strict_host_key_checking",
}

// AddRunFlags registers the flags that override run file settings.
func AddRunFlags(cmd *cobra.Command) {
	d := config.DefaultOptions()
	f := cmd.Flags()
	f.StringSlice("hosts", nil, "comma-separated hosts (address, user@host, host:port or SSH alias)")
	f.IntP("port", "p", d.Port, "SSH port")
	f.StringP("user", "u", d.Username, "SSH username")
	f.StringP("identity", "i", d.IdentityFile, "private key file")
	f.Bool("force", false, "run commands that match the danger list instead of skipping them")
	f.String("encoding", "", "decode remote output from this encoding (e.g. gbk, shift_jis)")
	f.Bool("parallel", false, "run all hosts at once")
	f.Bool("timestamp", false, "prefix output with [time][host]")
	f.String("log-format", "", "output format: raw, timestamp or json")
	f.BoolP("yes", "y", false, "don't ask before running risky commands with --force")
	f.Duration("connect-timeout", 0, "give up connecting after this long (0 = wait forever)")
	f.Int("retries", 0, "retry failed connections this many times")
	f.Bool("no-agent", false, "don't use ssh-agent keys")
	f.Bool("no-ssh-config", false, "don't resolve hosts through ~/.ssh/config")
	f.Bool("strict-host-key-checking", false, "verify host keys against known_hosts")
}

// loadRunFile merges defaults, the run file, REXEC_ env vars and flags (in
// rising precedence). Positional args replace the file's commands.
func loadRunFile(cmd *cobra.Command, args []string, explicitPath string) (*config.RunFile, error) {
	v := config.NewViper()

	path, err := config.Find(explicitPath)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := config.ReadFile(v, path); err != nil {
			return nil, err
		}
	}

	if err := bindRunFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}

	rf, err := config.Decode(v)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		rf.Commands = args
	}
	return rf, nil
}

func bindRunFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range runFlagKeys {
		fl := flags.Lookup(name)
		if fl == nil || key == "" {
			continue
		}
		if err := v.BindPFlag(key, fl); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, "Failed to bind --"+name, "")
		}
	}

	// Negative flags only ever turn things off.
	if off, _ := flags.GetBool("no-agent"); off {
		v.Set("use_agent", false)
	}
	if off, _ := flags.GetBool("no-ssh-config"); off {
		v.Set("use_ssh_config", false)
	}
	return nil
}
