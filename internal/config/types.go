package config

import (
	"time"

	"github.com/rileyhilliard/rexec/internal/errors"
	"github.com/rileyhilliard/rexec/internal/logger"
)

// CurrentConfigVersion is the schema version for the run file.
const CurrentConfigVersion = 1

// RunFile is the complete fleet.yaml: what to run, where, and how.
type RunFile struct {
	Version  int      `yaml:"version" mapstructure:"version"`
	Hosts    []Host   `yaml:"hosts" mapstructure:"hosts" validate:"dive"`
	Commands []string `yaml:"commands" mapstructure:"commands"`
	Options  `yaml:",inline" mapstructure:",squash"`
}

// Host is one target machine. In YAML, flags and env it may be written as a
// bare address string or as a record with address, name and encoding.
type Host struct {
	// Address is what gets dialed: hostname, IP, host:port, user@host or an
	// SSH config alias.
	Address string `yaml:"address" mapstructure:"address" validate:"required"`

	// Name labels this host in logs. Defaults to Address.
	Name string `yaml:"name,omitempty" mapstructure:"name"`

	// Encoding overrides the run's output encoding for this host.
	Encoding string `yaml:"encoding,omitempty" mapstructure:"encoding" validate:"omitempty,encoding"`
}

// Options are the run-wide settings merged over DefaultOptions.
type Options struct {
	Port         int    `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	Username     string `yaml:"username" mapstructure:"username" validate:"required"`
	IdentityFile string `yaml:"identity_file,omitempty" mapstructure:"identity_file"`

	// Force runs commands that match the danger list instead of skipping them.
	Force bool `yaml:"force" mapstructure:"force"`

	// Encoding of remote output, e.g. "gbk". Empty passes bytes through.
	Encoding string `yaml:"encoding,omitempty" mapstructure:"encoding" validate:"omitempty,encoding"`

	// Parallel runs all hosts at once instead of one after another.
	Parallel bool `yaml:"parallel" mapstructure:"parallel"`

	// Timestamp selects the [time][host] log format. LogFormat wins when set.
	Timestamp bool   `yaml:"timestamp" mapstructure:"timestamp"`
	LogFormat string `yaml:"log_format,omitempty" mapstructure:"log_format" validate:"omitempty,oneof=raw timestamp json"`

	UseAgent              bool          `yaml:"use_agent" mapstructure:"use_agent"`
	UseSSHConfig          bool          `yaml:"use_ssh_config" mapstructure:"use_ssh_config"`
	StrictHostKeyChecking bool          `yaml:"strict_host_key_checking" mapstructure:"strict_host_key_checking"`
	KnownHosts            string        `yaml:"known_hosts,omitempty" mapstructure:"known_hosts"`
	ConnectTimeout        time.Duration `yaml:"connect_timeout,omitempty" mapstructure:"connect_timeout" validate:"min=0"`
	ConnectRetries        int           `yaml:"connect_retries,omitempty" mapstructure:"connect_retries" validate:"min=0,max=10"`

	// AssumeYes skips the interactive confirmation before a forced run.
	AssumeYes bool `yaml:"-" mapstructure:"yes"`
}

// CheckFormat rejects a LogFormat that Format would otherwise ignore.
func (o Options) CheckFormat() error {
	if o.LogFormat == "" {
		return nil
	}
	if _, err := logger.ParseFormat(o.LogFormat); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid log format: "+o.LogFormat,
			"Use one of: raw, timestamp, json")
	}
	return nil
}

// Format resolves the log format from LogFormat and Timestamp.
func (o Options) Format() logger.Format {
	if o.LogFormat != "" {
		if f, err := logger.ParseFormat(o.LogFormat); err == nil {
			return f
		}
	}
	if o.Timestamp {
		return logger.FormatTimestamp
	}
	return logger.FormatRaw
}

// EncodingFor returns the output encoding for h: the host override if set,
// otherwise the run default.
func (o Options) EncodingFor(h Host) string {
	if h.Encoding != "" {
		return h.Encoding
	}
	return o.Encoding
}
