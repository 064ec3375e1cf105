package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allTypes = []Type{NoCompression, ZstdCompression, SnappyCompression, LZ4Compression}

// Contract: data written through NewWriter reads back unchanged through NewReader.
func TestStreamRoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"empty":      {},
		"small":      []byte("dd.line\n"),
		"repetitive": []byte(strings.Repeat("src/foo.c:42 main\n", 5000)),
	}
	for _, typ := range allTypes {
		for name, data := range inputs {
			t.Run(typ.String()+"/"+name, func(t *testing.T) {
				var buf bytes.Buffer
				w, err := NewWriter(typ, &buf)
				require.NoError(t, err)
				_, err = w.Write(data)
				require.NoError(t, err)
				require.NoError(t, w.Close())

				r, err := NewReader(typ, &buf)
				require.NoError(t, err)
				got, err := io.ReadAll(r)
				require.NoError(t, err)
				require.NoError(t, r.Close())
				assert.Equal(t, data, got)
			})
		}
	}
}

// Contract: real codecs shrink repetitive input.
func TestStreamCompresses(t *testing.T) {
	data := []byte(strings.Repeat("0123456789abcdef", 4096))
	for _, typ := range allTypes[1:] {
		var buf bytes.Buffer
		w, err := NewWriter(typ, &buf)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		assert.Less(t, buf.Len(), len(data)/4, typ.String())
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range allTypes {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	got, err := ParseType("")
	require.NoError(t, err)
	assert.Equal(t, NoCompression, got)

	_, err = ParseType("gzip")
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "", NoCompression.Extension())
	assert.Equal(t, ".zst", ZstdCompression.Extension())
	assert.Equal(t, ".sz", SnappyCompression.Extension())
	assert.Equal(t, ".lz4", LZ4Compression.Extension())
}

// Contract: unknown types are rejected rather than passed through.
func TestUnknownType(t *testing.T) {
	_, err := NewWriter(Type(42), io.Discard)
	require.ErrorIs(t, err, ErrUnsupported)
	_, err = NewReader(Type(42), strings.NewReader(""))
	require.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, "unknown(42)", Type(42).String())
}
