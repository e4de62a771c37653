// Package decode converts command output from a host's locale encoding into
// UTF-8 as it streams in.
package decode

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Lookup resolves an encoding by its WHATWG name or alias ("gbk", "gb18030",
// "shift_jis", "latin1", "windows-1251", ...). An empty name means no
// transform and returns a nil encoding.
func Lookup(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	// htmlindex maps "utf-8" to a replacing decoder; plain passthrough is cheaper.
	if enc == unicode.UTF8 {
		return nil, nil
	}
	return enc, nil
}

// Reader wraps r so reads return UTF-8. Multibyte sequences split across
// underlying reads are held back until complete. A nil enc returns r.
func Reader(r io.Reader, enc encoding.Encoding) io.Reader {
	if enc == nil {
		return r
	}
	return transform.NewReader(r, enc.NewDecoder())
}

// Bytes decodes a complete buffer.
func Bytes(b []byte, enc encoding.Encoding) (string, error) {
	if enc == nil {
		return string(b), nil
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
