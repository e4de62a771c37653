package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/rexec/internal/config"
	"github.com/rileyhilliard/rexec/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_NonInteractive(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	var out bytes.Buffer

	err := Init(InitOptions{Path: path, Hosts: []string{"web-1", " web-2 "}, NonInteractive: true, Out: &out})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Created "+path)

	rf, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.ParseHosts([]string{"web-1", "web-2"}), rf.Hosts)
	assert.Equal(t, []string{"uptime"}, rf.Commands)
	assert.Equal(t, "root", rf.Username)
	assert.Equal(t, 22, rf.Port)
}

func TestInit_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("hosts: [keep]\n"), 0o644))

	err := Init(InitOptions{Path: path, NonInteractive: true, Out: &bytes.Buffer{}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	data, _ := os.ReadFile(path)
	assert.Equal(t, "hosts: [keep]\n", string(data), "untouched without --force")

	require.NoError(t, Init(InitOptions{Path: path, Hosts: []string{"new"}, Overwrite: true, NonInteractive: true, Out: &bytes.Buffer{}}))
	rf, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "new", rf.Hosts[0].Address)
}
