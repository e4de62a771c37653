package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUnknownCommandError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unknown command", errors.New(`unknown command "uptime" for "rexec"`), true},
		{"unknown flag", errors.New(`unknown flag: --foo`), true},
		{"unknown shorthand", errors.New(`unknown shorthand flag: 'z' in -z`), true},
		{"other error", errors.New("connection failed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUnknownCommandError(tt.err))
		})
	}
}

func TestExtractUnknownCommand(t *testing.T) {
	assert.Equal(t, "uptime", extractUnknownCommand(errors.New(`unknown command "uptime" for "rexec"`)))
	assert.Equal(t, "", extractUnknownCommand(errors.New("unknown flag: --foo")))
}

func TestRootCommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"exec", "plan", "init", "version"} {
		assert.Contains(t, names, want)
	}
}
