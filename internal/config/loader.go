package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rileyhilliard/rexec/internal/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the run file looked up in the working directory.
	ConfigFileName = "fleet.yaml"
	// EnvPrefix is the prefix for environment overrides (REXEC_PORT, ...).
	EnvPrefix = "REXEC"
)

// DefaultOptions returns the run defaults. The identity file is resolved
// against the current user's home directory when this is called.
func DefaultOptions() Options {
	return Options{
		Port:         22,
		Username:     "root",
		IdentityFile: filepath.Join(homeDir(), ".ssh", "id_rsa"),
		UseAgent:     true,
		UseSSHConfig: true,
		KnownHosts:   filepath.Join(homeDir(), ".ssh", "known_hosts"),
	}
}

// NewViper returns a viper instance with defaults and REXEC_ env lookup wired.
// Callers bind flags on top of it, then call Decode.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers DefaultOptions on v. Every key is registered so
// AutomaticEnv and Unmarshal see it.
func SetDefaults(v *viper.Viper) {
	d := DefaultOptions()
	v.SetDefault("version", CurrentConfigVersion)
	v.SetDefault("hosts", []string{})
	v.SetDefault("commands", []string{})
	v.SetDefault("port", d.Port)
	v.SetDefault("username", d.Username)
	v.SetDefault("identity_file", d.IdentityFile)
	v.SetDefault("force", d.Force)
	v.SetDefault("encoding", d.Encoding)
	v.SetDefault("parallel", d.Parallel)
	v.SetDefault("timestamp", d.Timestamp)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("use_agent", d.UseAgent)
	v.SetDefault("use_ssh_config", d.UseSSHConfig)
	v.SetDefault("strict_host_key_checking", d.StrictHostKeyChecking)
	v.SetDefault("known_hosts", d.KnownHosts)
	v.SetDefault("connect_timeout", "0s")
	v.SetDefault("connect_retries", d.ConnectRetries)
	v.SetDefault("yes", false)
}

// ReadFile merges the YAML file at path into v.
func ReadFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Run file not found: "+path,
				"Run 'rexec init' to create one, or pass --hosts and commands on the command line")
		}
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read run file",
			"Check the file exists and is valid YAML")
	}
	return nil
}

// Find returns the explicit path if given, else fleet.yaml in the working
// directory if it exists, else "".
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Specified run file not found: "+explicit,
				"Check the path is correct")
		}
		return explicit, nil
	}
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName, nil
	}
	return "", nil
}

// Load reads a run file from path with defaults applied.
func Load(path string) (*RunFile, error) {
	v := NewViper()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return Decode(v)
}

// Decode unmarshals v into a RunFile, normalizes hosts and validates.
func Decode(v *viper.Viper) (*RunFile, error) {
	rf := &RunFile{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		hostListDecodeHook,
		hostDecodeHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(rf, hook); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid run configuration",
			"Hosts are either a plain address or {address, name, encoding}")
	}

	for i := range rf.Hosts {
		rf.Hosts[i] = rf.Hosts[i].Normalize()
	}
	rf.IdentityFile = ExpandTilde(rf.IdentityFile)
	rf.KnownHosts = ExpandTilde(rf.KnownHosts)

	if err := Validate(rf); err != nil {
		return nil, err
	}
	return rf, nil
}

var (
	hostType     = reflect.TypeOf(Host{})
	hostListType = reflect.TypeOf([]Host{})
)

// hostListDecodeHook splits a comma-separated string, as REXEC_HOSTS arrives
// from the environment, into one address per host.
func hostListDecodeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != hostListType || from.Kind() != reflect.String {
		return data, nil
	}
	var addrs []string
	for _, a := range strings.Split(reflect.ValueOf(data).String(), ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs, nil
}

// hostDecodeHook lets a bare string stand in for a Host record.
func hostDecodeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != hostType || from.Kind() != reflect.String {
		return data, nil
	}
	return map[string]interface{}{"address": data}, nil
}

// Save writes rf to path as YAML.
func Save(path string, rf *RunFile) error {
	data, err := yaml.Marshal(rf)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to encode run file", "")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to write %s", path),
			"Check directory permissions")
	}
	return nil
}

// ExpandTilde replaces ~ or ~/path with the user's home directory.
func ExpandTilde(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}
