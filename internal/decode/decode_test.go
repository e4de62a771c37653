package decode

import (
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantNil bool
		wantErr bool
	}{
		{"empty means passthrough", "", true, false},
		{"utf-8 means passthrough", "utf-8", true, false},
		{"gbk", "gbk", false, false},
		{"gbk uppercase", "GBK", false, false},
		{"shift_jis", "shift_jis", false, false},
		{"latin1 alias", "latin1", false, false},
		{"unknown", "klingon", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := Lookup(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.input)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNil, enc == nil)
		})
	}
}

func gbk(t *testing.T, s string) []byte {
	t.Helper()
	b, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return b
}

func TestReader_DecodesGBK(t *testing.T) {
	enc, err := Lookup("gbk")
	require.NoError(t, err)

	raw := gbk(t, "驱动器 C 中的卷没有标签。\r\n")
	out, err := io.ReadAll(Reader(iotest.OneByteReader(bytesReader(raw)), enc))
	require.NoError(t, err)
	assert.Equal(t, "驱动器 C 中的卷没有标签。\r\n", string(out))
}

func TestReader_NilEncodingPassesThrough(t *testing.T) {
	r := bytesReader([]byte("plain\n"))
	assert.Same(t, r, Reader(r, nil))
}

func TestBytes(t *testing.T) {
	enc, err := Lookup("gbk")
	require.NoError(t, err)

	s, err := Bytes(gbk(t, "你好"), enc)
	require.NoError(t, err)
	assert.Equal(t, "你好", s)

	s, err = Bytes([]byte("hello"), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

type byteSliceReader struct {
	b []byte
}

func bytesReader(b []byte) *byteSliceReader {
	return &byteSliceReader{b: b}
}

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}
