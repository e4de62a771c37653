// Package logger provides the per-host and run-level log sinks for rexec.
// A logger writes in one of three formats: timestamped lines tagged with the
// host label, raw passthrough to stdout/stderr, or JSON objects.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/rexec/internal/ui"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger defines the interface for logging operations.
// All methods accept a format string and arguments, similar to fmt.Printf.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Format selects how a logger renders messages.
type Format string

const (
	// FormatRaw writes bare messages to stdout and WARNING:/ERROR: lines to stderr.
	FormatRaw Format = "raw"
	// FormatTimestamp prefixes every line with [time][host] on one sink.
	FormatTimestamp Format = "timestamp"
	// FormatJSON writes one JSON object per message.
	FormatJSON Format = "json"
)

// TimeLayout is the local timestamp layout used by FormatTimestamp.
const TimeLayout = "2006-01-02 15:04:05.000"

// ParseFormat validates a format name. Empty defaults to FormatRaw.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatRaw:
		return FormatRaw, nil
	case FormatTimestamp:
		return FormatTimestamp, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown log format %q (want raw, timestamp or json)", s)
}

// Config describes where and how loggers write. Loggers built from the same
// Config share its writers, so wrap them with NewSyncWriter when several
// hosts log at once.
type Config struct {
	Format Format
	Stdout io.Writer
	Stderr io.Writer
	Color  bool   // style WARNING/ERROR markers
	RunID  string // attached to JSON records
	Now    func() time.Time
}

func (c Config) stdout() io.Writer {
	if c.Stdout == nil {
		return os.Stdout
	}
	return c.Stdout
}

func (c Config) stderr() io.Writer {
	if c.Stderr == nil {
		return os.Stderr
	}
	return c.Stderr
}

// New builds a logger for label. An empty label is used for run-level
// messages and drops the host tag in timestamp mode.
func New(cfg Config, label string) Logger {
	switch cfg.Format {
	case FormatTimestamp:
		return newLineLogger(cfg, label)
	case FormatJSON:
		return newJSONLogger(cfg, label)
	default:
		return &rawLogger{stdout: cfg.stdout(), stderr: cfg.stderr()}
	}
}

func debugEnabled() bool {
	return os.Getenv("REXEC_DEBUG") != ""
}

// rawLogger passes messages through with no prefix.
type rawLogger struct {
	stdout io.Writer
	stderr io.Writer
}

func (l *rawLogger) Debug(format string, args ...interface{}) {
	if debugEnabled() {
		fmt.Fprintf(l.stderr, "DEBUG: "+format+"\n", args...)
	}
}

func (l *rawLogger) Info(format string, args ...interface{}) {
	fmt.Fprintf(l.stdout, format+"\n", args...)
}

func (l *rawLogger) Warn(format string, args ...interface{}) {
	fmt.Fprintf(l.stderr, "WARNING: "+format+"\n", args...)
}

func (l *rawLogger) Error(format string, args ...interface{}) {
	fmt.Fprintf(l.stderr, "ERROR: "+format+"\n", args...)
}

// lineLogger writes "[time][label] message" lines to a single sink.
type lineLogger struct {
	w     io.Writer
	label string
	now   func() time.Time

	warnMarker  string
	errorMarker string
	debugMarker string
}

func newLineLogger(cfg Config, label string) *lineLogger {
	l := &lineLogger{
		w:           cfg.stdout(),
		label:       label,
		now:         cfg.Now,
		warnMarker:  "WARNING:",
		errorMarker: "ERROR:",
		debugMarker: "DEBUG:",
	}
	if l.now == nil {
		l.now = time.Now
	}
	if cfg.Color {
		l.warnMarker = lipgloss.NewStyle().Foreground(ui.ColorWarning).Render(l.warnMarker)
		l.errorMarker = lipgloss.NewStyle().Foreground(ui.ColorError).Render(l.errorMarker)
		l.debugMarker = lipgloss.NewStyle().Foreground(ui.ColorMuted).Render(l.debugMarker)
	}
	return l
}

func (l *lineLogger) emit(marker, format string, args ...interface{}) {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(l.now().Format(TimeLayout))
	b.WriteString("]")
	if l.label != "" {
		b.WriteString("[")
		b.WriteString(l.label)
		b.WriteString("]")
	}
	b.WriteString(" ")
	if marker != "" {
		b.WriteString(marker)
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, format, args...)
	b.WriteString("\n")
	// One Write per line keeps lines whole on a SyncWriter.
	io.WriteString(l.w, b.String())
}

func (l *lineLogger) Debug(format string, args ...interface{}) {
	if debugEnabled() {
		l.emit(l.debugMarker, format, args...)
	}
}

func (l *lineLogger) Info(format string, args ...interface{}) {
	l.emit("", format, args...)
}

func (l *lineLogger) Warn(format string, args ...interface{}) {
	l.emit(l.warnMarker, format, args...)
}

func (l *lineLogger) Error(format string, args ...interface{}) {
	l.emit(l.errorMarker, format, args...)
}

// jsonLogger writes zap JSON records.
type jsonLogger struct {
	s *zap.SugaredLogger
}

func newJSONLogger(cfg Config, label string) *jsonLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.CallerKey = zapcore.OmitKey
	encCfg.StacktraceKey = zapcore.OmitKey

	level := zapcore.InfoLevel
	if debugEnabled() {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(cfg.stdout()), level)
	opts := []zap.Option{}
	if cfg.Now != nil {
		opts = append(opts, zap.WithClock(fixedClock{now: cfg.Now}))
	}
	z := zap.New(core, opts...)

	var fields []interface{}
	if label != "" {
		fields = append(fields, "host", label)
	}
	if cfg.RunID != "" {
		fields = append(fields, "run_id", cfg.RunID)
	}
	return &jsonLogger{s: z.Sugar().With(fields...)}
}

func (l *jsonLogger) Debug(format string, args ...interface{}) { l.s.Debugf(format, args...) }
func (l *jsonLogger) Info(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l *jsonLogger) Warn(format string, args ...interface{})  { l.s.Warnf(format, args...) }
func (l *jsonLogger) Error(format string, args ...interface{}) { l.s.Errorf(format, args...) }

// fixedClock adapts a now func to zapcore.Clock.
type fixedClock struct {
	now func() time.Time
}

func (c fixedClock) Now() time.Time { return c.now() }

func (c fixedClock) NewTicker(d time.Duration) *time.Ticker { return time.NewTicker(d) }

// SyncWriter serializes writes to an underlying writer.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSyncWriter wraps w. Wrapping an existing SyncWriter returns it unchanged.
func NewSyncWriter(w io.Writer) *SyncWriter {
	if sw, ok := w.(*SyncWriter); ok {
		return sw
	}
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// envLogger implements Logger and logs through the standard log package.
// Debug messages are only printed when REXEC_DEBUG is set.
type envLogger struct {
	prefix string
}

// NewEnvLogger creates a logger that respects the REXEC_DEBUG environment variable.
// The prefix is prepended to all log messages (e.g., "[ssh]").
func NewEnvLogger(prefix string) Logger {
	return &envLogger{prefix: prefix}
}

func (l *envLogger) Debug(format string, args ...interface{}) {
	if debugEnabled() {
		log.Printf(l.prefix+" "+format, args...)
	}
}

func (l *envLogger) Info(format string, args ...interface{}) {
	log.Printf(l.prefix+" "+format, args...)
}

func (l *envLogger) Warn(format string, args ...interface{}) {
	log.Printf(l.prefix+" WARN: "+format, args...)
}

func (l *envLogger) Error(format string, args ...interface{}) {
	log.Printf(l.prefix+" ERROR: "+format, args...)
}

// noopLogger implements Logger but discards all messages.
type noopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() Logger {
	return &noopLogger{}
}

func (l *noopLogger) Debug(format string, args ...interface{}) {}
func (l *noopLogger) Info(format string, args ...interface{})  {}
func (l *noopLogger) Warn(format string, args ...interface{})  {}
func (l *noopLogger) Error(format string, args ...interface{}) {}

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   string
	Message string
}

// BufferLogger captures log messages for testing. Safe for concurrent use.
type BufferLogger struct {
	mu       sync.Mutex
	messages []LogMessage
}

// NewBufferLogger creates a logger that captures messages for inspection.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{}
}

func (l *BufferLogger) add(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Debug(format string, args ...interface{}) { l.add("debug", format, args...) }
func (l *BufferLogger) Info(format string, args ...interface{})  { l.add("info", format, args...) }
func (l *BufferLogger) Warn(format string, args ...interface{})  { l.add("warn", format, args...) }
func (l *BufferLogger) Error(format string, args ...interface{}) { l.add("error", format, args...) }

// Messages returns a copy of everything logged so far.
func (l *BufferLogger) Messages() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// Lines returns the messages logged at level, in order.
func (l *BufferLogger) Lines(level string) []string {
	var out []string
	for _, m := range l.Messages() {
		if m.Level == level {
			out = append(out, m.Message)
		}
	}
	return out
}

// HasLevel returns true if any message was logged at the given level.
func (l *BufferLogger) HasLevel(level string) bool {
	return len(l.Lines(level)) > 0
}

// Clear removes all captured messages.
func (l *BufferLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = l.messages[:0]
}

// defaultLogger is the package-level default logger.
var defaultLogger = NewEnvLogger("[rexec]")

// Default returns the process-wide diagnostic logger used by transport code.
func Default() Logger {
	return defaultLogger
}

// SetDefault sets the default logger for the package.
func SetDefault(l Logger) {
	defaultLogger = l
}
