package fleet

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rileyhilliard/rexec/internal/config"
	"github.com/rileyhilliard/rexec/internal/errors"
	"github.com/rileyhilliard/rexec/internal/plan"
	sshtest "github.com/rileyhilliard/rexec/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.Local)
}

type harness struct {
	dialer *sshtest.MockDialer
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(hosts ...string) *harness {
	h := &harness{
		dialer: sshtest.NewMockDialer(),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	for _, addr := range hosts {
		h.dialer.AddHost(addr).SetCommandResponse("echo ok", sshtest.Lines("ok\n"))
	}
	return h
}

func (h *harness) deps() Deps {
	return Deps{Dialer: h.dialer, Stdout: h.stdout, Stderr: h.stderr, Now: fixedNow, RunID: "run-1"}
}

func testOptions() config.Options {
	opts := config.DefaultOptions()
	opts.UseAgent = false
	opts.UseSSHConfig = false
	return opts
}

func TestExecute_SkipsRiskyOnEveryHost(t *testing.T) {
	h := newHarness("h1", "h2")

	var calls int
	var got error
	Execute(context.Background(), config.ParseHosts([]string{"h1", "h2"}), []string{"echo ok", "rm -rf /"}, testOptions(), h.deps(), func(err error) {
		calls++
		got = err
	})

	assert.Equal(t, 1, calls)
	assert.NoError(t, got)
	for _, addr := range []string{"h1", "h2"} {
		assert.Equal(t, []string{"echo ok"}, h.dialer.Session(addr).Started(), addr)
		assert.True(t, h.dialer.Session(addr).Closed(), addr)
	}
	assert.Equal(t, 2, strings.Count(h.stderr.String(), "WARNING: skipping risky command: rm -rf /"))
	assert.Equal(t, 2, strings.Count(h.stdout.String(), "ok\n"+"completed: echo ok (exit 0)"))
	assert.Contains(t, h.stdout.String(), "all hosts completed\n")
}

func TestExecute_ForceRunsEverything(t *testing.T) {
	h := newHarness("h1", "h2")
	opts := testOptions()
	opts.Force = true

	var got error
	Execute(context.Background(), config.ParseHosts([]string{"h1", "h2"}), []string{"echo ok", "rm -rf /"}, opts, h.deps(), func(err error) { got = err })

	assert.NoError(t, got)
	for _, addr := range []string{"h1", "h2"} {
		assert.Equal(t, []string{"echo ok", "rm -rf /"}, h.dialer.Session(addr).Started(), addr)
	}
	assert.NotContains(t, h.stderr.String(), "skipping")
}

func TestExecute_ConnectionFailureIsolated(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			h := newHarness("h1")
			h.dialer.FailHost("h2", stderrors.New("connection reset by peer"))
			opts := testOptions()
			opts.Parallel = parallel

			result := New(config.ParseHosts([]string{"h1", "h2"}), plan.Filter([]string{"echo ok"}, false), opts, h.deps()).Run(context.Background())

			require.Len(t, result.Hosts, 2)
			assert.True(t, result.Hosts[0].Success)
			assert.Equal(t, 1, result.Hosts[0].Executed)
			assert.False(t, result.Hosts[1].Success)
			assert.Equal(t, 0, result.Hosts[1].Executed)
			assert.True(t, errors.IsCode(result.Hosts[1].Err, errors.ErrConnect))
			assert.Equal(t, result.Hosts[1].Err, result.FirstFailure())
			assert.Equal(t, 1, result.Passed)
			assert.Equal(t, 1, result.Failed)

			assert.Equal(t, []string{"echo ok"}, h.dialer.Session("h1").Started())
			assert.Contains(t, h.stderr.String(), "ERROR: failed hosts: h2\n")
			assert.Contains(t, h.stderr.String(), "connection reset by peer")
		})
	}
}

func TestExecute_CallbackGetsFirstFailureInInputOrder(t *testing.T) {
	h := newHarness()
	h.dialer.FailHost("a", stderrors.New("a down"))
	h.dialer.FailHost("b", stderrors.New("b down"))
	opts := testOptions()
	opts.Parallel = true

	var got error
	Execute(context.Background(), config.ParseHosts([]string{"a", "b"}), []string{"uptime"}, opts, h.deps(), func(err error) { got = err })

	require.Error(t, got)
	assert.Contains(t, errors.Brief(got), "a down")
	assert.Contains(t, h.stderr.String(), "failed hosts: a, b")
}

func TestExecute_NilCallback(t *testing.T) {
	h := newHarness("h1")
	assert.NotPanics(t, func() {
		Execute(context.Background(), config.ParseHosts([]string{"h1"}), []string{"echo ok"}, testOptions(), h.deps(), nil)
	})
}

func TestRun_ChannelFailureAbortsHost(t *testing.T) {
	h := newHarness("h1")
	h.dialer.Session("h1").SetCommandResponse("second", sshtest.CommandResponse{StartErr: stderrors.New("channel refused")})

	result := New(config.ParseHosts([]string{"h1"}), plan.Filter([]string{"first", "second", "third"}, false), testOptions(), h.deps()).Run(context.Background())

	require.Len(t, result.Hosts, 1)
	hr := result.Hosts[0]
	assert.False(t, hr.Success)
	assert.True(t, errors.IsCode(hr.Err, errors.ErrChannel))
	assert.Equal(t, 1, hr.Executed)
	assert.Equal(t, []string{"first"}, h.dialer.Session("h1").Started())
	assert.True(t, h.dialer.Session("h1").Closed(), "session closed even when the runner fails")
}

func TestRun_SequentialOrder(t *testing.T) {
	h := newHarness("h1", "h2", "h3")
	h.dialer.FailHost("h2", stderrors.New("down"))

	New(config.ParseHosts([]string{"h1", "h2", "h3"}), plan.Filter([]string{"echo ok"}, false), testOptions(), h.deps()).Run(context.Background())

	assert.Equal(t, []string{"dial:h1", "close:h1", "dial:h2", "dial:h3", "close:h3"}, h.dialer.Events.Events())
}

func TestRun_SequentialNeverOverlaps(t *testing.T) {
	h := newHarness("h1", "h2")
	h.dialer.Barrier = sshtest.NewBarrier(2, 50*time.Millisecond)

	result := New(config.ParseHosts([]string{"h1", "h2"}), plan.Filter([]string{"echo ok"}, false), testOptions(), h.deps()).Run(context.Background())

	// h1 waits alone and times out; h2 only dials after h1 settles.
	require.Len(t, result.Hosts, 2)
	assert.False(t, result.Hosts[0].Success)
	assert.Contains(t, errors.Brief(result.Hosts[0].Err), "only 1 of 2")
}

func TestRun_ParallelStartsAllHosts(t *testing.T) {
	h := newHarness("h1", "h2", "h3")
	h.dialer.Barrier = sshtest.NewBarrier(3, 5*time.Second)
	opts := testOptions()
	opts.Parallel = true

	result := New(config.ParseHosts([]string{"h1", "h2", "h3"}), plan.Filter([]string{"echo ok"}, false), opts, h.deps()).Run(context.Background())

	assert.Equal(t, 3, result.Passed, "every dial was in flight before any finished")
	for i, addr := range []string{"h1", "h2", "h3"} {
		assert.Equal(t, addr, result.Hosts[i].Host.Address, "results keep input order")
	}
}

func TestRun_AggregateLengthMatchesHosts(t *testing.T) {
	tests := []struct {
		name     string
		hosts    []string
		failing  []string
		parallel bool
	}{
		{"empty", nil, nil, false},
		{"all ok sequential", []string{"a", "b", "c"}, nil, false},
		{"all ok parallel", []string{"a", "b", "c"}, nil, true},
		{"some fail sequential", []string{"a", "b", "c", "d"}, []string{"b", "d"}, false},
		{"all fail parallel", []string{"a", "b"}, []string{"a", "b"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			for _, f := range tt.failing {
				h.dialer.FailHost(f, stderrors.New("down"))
			}
			opts := testOptions()
			opts.Parallel = tt.parallel

			result := New(config.ParseHosts(tt.hosts), plan.Filter([]string{"uptime"}, false), opts, h.deps()).Run(context.Background())

			assert.Len(t, result.Hosts, len(tt.hosts))
			assert.Equal(t, len(tt.failing), result.Failed)
			assert.Equal(t, len(tt.hosts)-len(tt.failing), result.Passed)
		})
	}
}

func TestRun_TimestampFormat(t *testing.T) {
	h := newHarness("10.0.0.1")
	opts := testOptions()
	opts.Timestamp = true
	hosts := []config.Host{{Address: "10.0.0.1", Name: "web"}}

	New(hosts, plan.Filter([]string{"echo ok", "reboot"}, false), opts, h.deps()).Run(context.Background())

	assert.Empty(t, h.stderr.String(), "timestamp mode writes everything to one sink")
	want := []string{
		"[2026-03-14 09:26:53.589][web] connecting to web (10.0.0.1)",
		"[2026-03-14 09:26:53.589][web] connected",
		"[2026-03-14 09:26:53.589][web] executing: echo ok",
		"[2026-03-14 09:26:53.589][web] ok",
		"[2026-03-14 09:26:53.589][web] completed: echo ok (exit 0)",
		"[2026-03-14 09:26:53.589][web] WARNING: skipping risky command: reboot (force is off)",
		"[2026-03-14 09:26:53.589][web] completed all commands",
		"[2026-03-14 09:26:53.589] all hosts completed",
	}
	assert.Equal(t, strings.Join(want, "\n")+"\n", h.stdout.String())
}

func TestRun_JSONFormat(t *testing.T) {
	h := newHarness("h1")
	opts := testOptions()
	opts.LogFormat = "json"

	New(config.ParseHosts([]string{"h1"}), plan.Filter([]string{"echo ok"}, false), opts, h.deps()).Run(context.Background())

	out := h.stdout.String()
	assert.Contains(t, out, `"msg":"executing: echo ok"`)
	assert.Contains(t, out, `"host":"h1"`)
	assert.Contains(t, out, `"run_id":"run-1"`)
}

func TestRun_PerHostEncoding(t *testing.T) {
	h := newHarness()
	gbkHello := "\xc4\xe3\xba\xc3\n" // 你好
	h.dialer.AddHost("win").SetCommandResponse("greet", sshtest.Lines(gbkHello))
	h.dialer.AddHost("linux").SetCommandResponse("greet", sshtest.Lines("hello\n"))
	opts := testOptions()
	opts.Timestamp = true

	hosts := []config.Host{
		{Address: "win", Encoding: "gbk"},
		{Address: "linux"},
	}
	result := New(hosts, plan.Filter([]string{"greet"}, false), opts, h.deps()).Run(context.Background())

	assert.Equal(t, 2, result.Passed)
	assert.Contains(t, h.stdout.String(), "[win] 你好\n")
	assert.Contains(t, h.stdout.String(), "[linux] hello\n")
}

func TestRun_UnknownEncodingFailsHost(t *testing.T) {
	h := newHarness("h1")
	opts := testOptions()
	opts.Encoding = "klingon"

	result := New(config.ParseHosts([]string{"h1"}), plan.Filter([]string{"echo ok"}, false), opts, h.deps()).Run(context.Background())

	assert.True(t, errors.IsCode(result.FirstFailure(), errors.ErrConfig))
	assert.Empty(t, h.dialer.Targets(), "never dialed")
}

func TestRun_InvalidLogFormatFailsHost(t *testing.T) {
	h := newHarness("h1", "h2")
	opts := testOptions()
	opts.LogFormat = "xml"

	var got error
	Execute(context.Background(), config.ParseHosts([]string{"h1", "h2"}), []string{"echo ok"}, opts, h.deps(), func(err error) { got = err })

	require.Error(t, got)
	assert.True(t, errors.IsCode(got, errors.ErrConfig))
	assert.Contains(t, got.Error(), "xml")
	assert.Empty(t, h.dialer.Targets(), "never dialed")
}

func TestRun_TargetFromOptions(t *testing.T) {
	h := newHarness("h1")
	opts := testOptions()
	opts.Port = 2222
	opts.Username = "deploy"
	opts.IdentityFile = "/keys/fleet"
	opts.ConnectTimeout = 3 * time.Second

	New(config.ParseHosts([]string{"h1"}), plan.Filter(nil, false), opts, h.deps()).Run(context.Background())

	targets := h.dialer.Targets()
	require.Len(t, targets, 1)
	assert.Equal(t, "h1", targets[0].Address)
	assert.Equal(t, 2222, targets[0].Port)
	assert.Equal(t, "deploy", targets[0].User)
	assert.Equal(t, "/keys/fleet", targets[0].IdentityFile)
	assert.Equal(t, 3*time.Second, targets[0].Timeout)
}

func TestNew_GeneratesRunID(t *testing.T) {
	o := New(nil, nil, testOptions(), Deps{Dialer: sshtest.NewMockDialer()})
	assert.Len(t, o.RunID(), 36)
}
