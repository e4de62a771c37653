package fleet

import (
	"bytes"
	stderrors "errors"
	"testing"
	"time"

	"github.com/rileyhilliard/rexec/internal/config"
	"github.com/rileyhilliard/rexec/internal/errors"
	"github.com/rileyhilliard/rexec/internal/ui"
	"github.com/stretchr/testify/assert"
)

func TestRenderSummary(t *testing.T) {
	ui.DisableColors()

	result := &Result{
		RunID: "run-1",
		Hosts: []HostResult{
			{Host: config.Host{Address: "10.0.0.1", Name: "web"}, Success: true, Executed: 2, Skipped: 1, Duration: 1500 * time.Millisecond},
			{Host: config.ParseHost("db"), Err: errors.ConnectError("db", stderrors.New("no route to host"), ""), Duration: 30 * time.Millisecond},
		},
		Duration: 75 * time.Second,
		Passed:   1,
		Failed:   1,
	}

	var buf bytes.Buffer
	RenderSummary(&buf, result)
	out := buf.String()

	assert.Contains(t, out, "Fleet Summary")
	assert.Contains(t, out, "✓ web (10.0.0.1)  2 run, ⊘ 1 skipped (1.5s)")
	assert.Contains(t, out, "✗ db  0 run (0.03s)")
	assert.Contains(t, out, "Can't connect to 'db': no route to host")
	assert.Contains(t, out, "1 passed")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "2 hosts")
	assert.Contains(t, out, "(1m15.0s)")
	assert.Contains(t, out, "Run: run-1")
}

func TestRenderSummary_Nil(t *testing.T) {
	var buf bytes.Buffer
	RenderSummary(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{50 * time.Millisecond, "0.05s"},
		{2500 * time.Millisecond, "2.5s"},
		{90 * time.Second, "1m30.0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}

func TestResult_Helpers(t *testing.T) {
	boom := stderrors.New("boom")
	r := &Result{Hosts: []HostResult{
		{Host: config.ParseHost("a"), Success: true},
		{Host: config.ParseHost("b"), Err: boom},
		{Host: config.ParseHost("c"), Err: stderrors.New("later")},
	}, Failed: 2}

	assert.False(t, r.Success())
	assert.Equal(t, boom, r.FirstFailure())
	assert.Equal(t, []string{"b", "c"}, r.FailedHosts())

	ok := &Result{Hosts: []HostResult{{Host: config.ParseHost("a"), Success: true}}}
	assert.True(t, ok.Success())
	assert.NoError(t, ok.FirstFailure())
	assert.Nil(t, ok.FailedHosts())
}
