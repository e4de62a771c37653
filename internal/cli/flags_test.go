package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/rexec/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunCmd(t *testing.T, flags ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	AddRunFlags(cmd)
	require.NoError(t, cmd.ParseFlags(flags))
	return cmd
}

func TestLoadRunFile_FlagsOnly(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := newRunCmd(t, "--hosts", "web-1,admin@10.0.0.5:2222", "--parallel", "--connect-timeout", "5s", "--retries", "2")
	rf, err := loadRunFile(cmd, []string{"uptime", "df -h"}, "")
	require.NoError(t, err)

	assert.Equal(t, []config.Host{config.ParseHost("web-1"), config.ParseHost("admin@10.0.0.5:2222")}, rf.Hosts)
	assert.Equal(t, []string{"uptime", "df -h"}, rf.Commands)
	assert.True(t, rf.Parallel)
	assert.Equal(t, 5*time.Second, rf.ConnectTimeout)
	assert.Equal(t, 2, rf.ConnectRetries)
	assert.Equal(t, 22, rf.Port)
	assert.Equal(t, "root", rf.Username)
	assert.True(t, rf.UseAgent)
}

func TestLoadRunFile_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(`
hosts: [file-host]
commands: [from-file]
port: 2200
username: fileuser
encoding: gbk
`), 0o644))

	t.Run("file over defaults", func(t *testing.T) {
		rf, err := loadRunFile(newRunCmd(t), nil, "")
		require.NoError(t, err)
		assert.Equal(t, 2200, rf.Port)
		assert.Equal(t, "fileuser", rf.Username)
		assert.Equal(t, []string{"from-file"}, rf.Commands)
		assert.Equal(t, "gbk", rf.Encoding)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("REXEC_USERNAME", "envuser")
		rf, err := loadRunFile(newRunCmd(t), nil, "")
		require.NoError(t, err)
		assert.Equal(t, "envuser", rf.Username)
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv("REXEC_USERNAME", "envuser")
		rf, err := loadRunFile(newRunCmd(t, "--user", "flaguser", "--port", "2022", "--hosts", "flag-host"), []string{"from-args"}, "")
		require.NoError(t, err)
		assert.Equal(t, "flaguser", rf.Username)
		assert.Equal(t, 2022, rf.Port)
		assert.Equal(t, []config.Host{config.ParseHost("flag-host")}, rf.Hosts)
		assert.Equal(t, []string{"from-args"}, rf.Commands)
	})
}

func TestLoadRunFile_NegativeFlags(t *testing.T) {
	t.Chdir(t.TempDir())

	rf, err := loadRunFile(newRunCmd(t, "--no-agent", "--no-ssh-config"), nil, "")
	require.NoError(t, err)
	assert.False(t, rf.UseAgent)
	assert.False(t, rf.UseSSHConfig)
}

func TestLoadRunFile_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := loadRunFile(newRunCmd(t), nil, "missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")

	_, err = loadRunFile(newRunCmd(t, "--log-format", "xml"), nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_format")

	_, err = loadRunFile(newRunCmd(t, "--encoding", "klingon"), nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoding")
}
