package runner

import (
	"bytes"
	"strings"
)

// lineWriter assembles a byte stream into lines. A line split across Write
// calls is held until its newline arrives or Flush is called. Blank lines
// are dropped.
type lineWriter struct {
	emit func(format string, args ...interface{})
	buf  []byte
}

func newLineWriter(emit func(string, ...interface{})) *lineWriter {
	return &lineWriter{emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)

	start := 0
	for {
		i := bytes.IndexByte(w.buf[start:], '\n')
		if i < 0 {
			break
		}
		w.line(w.buf[start : start+i])
		start += i + 1
	}
	w.buf = append(w.buf[:0], w.buf[start:]...)
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *lineWriter) Flush() {
	if len(w.buf) > 0 {
		w.line(w.buf)
		w.buf = w.buf[:0]
	}
}

func (w *lineWriter) line(b []byte) {
	s := strings.TrimRight(string(b), "\r")
	if strings.TrimSpace(s) == "" {
		return
	}
	w.emit("%s", s)
}
