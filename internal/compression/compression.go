// Package compression provides the stream codecs used for session bundles.
//
// A bundle is a tar archive wrapped in one of the codecs below. The codec
// also decides the file extension: bundle.tar, bundle.tar.zst,
// bundle.tar.sz or bundle.tar.lz4.
package compression

import (
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrUnsupported is returned for an unknown codec name or type.
var ErrUnsupported = errors.New("unsupported compression type")

// Type represents a compression algorithm.
type Type uint8

const (
	// NoCompression writes the stream unchanged.
	NoCompression Type = iota

	// ZstdCompression uses Zstandard framing.
	ZstdCompression

	// SnappyCompression uses the Snappy framing format.
	SnappyCompression

	// LZ4Compression uses LZ4 frames.
	LZ4Compression
)

// String returns the name accepted by ParseType.
func (t Type) String() string {
	switch t {
	case NoCompression:
		return "none"
	case ZstdCompression:
		return "zstd"
	case SnappyCompression:
		return "snappy"
	case LZ4Compression:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Extension is the suffix appended after ".tar".
func (t Type) Extension() string {
	switch t {
	case ZstdCompression:
		return ".zst"
	case SnappyCompression:
		return ".sz"
	case LZ4Compression:
		return ".lz4"
	default:
		return ""
	}
}

// ParseType maps a codec name to its Type.
func ParseType(name string) (Type, error) {
	switch name {
	case "", "none":
		return NoCompression, nil
	case "zstd":
		return ZstdCompression, nil
	case "snappy":
		return SnappyCompression, nil
	case "lz4":
		return LZ4Compression, nil
	default:
		return NoCompression, fmt.Errorf("%w: %q", ErrUnsupported, name)
	}
}

// NewWriter wraps w with the compressor for t. Closing the returned writer
// flushes the codec but does not close w.
func NewWriter(t Type, w io.Writer) (io.WriteCloser, error) {
	switch t {
	case NoCompression:
		return nopCloser{w}, nil

	case ZstdCompression:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		return enc, nil

	case SnappyCompression:
		return snappy.NewBufferedWriter(w), nil

	case LZ4Compression:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(lz4.Fast)); err != nil {
			return nil, fmt.Errorf("lz4 apply level: %w", err)
		}
		return lw, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, t)
	}
}

// NewReader wraps r with the decompressor for t.
func NewReader(t Type, r io.Reader) (io.ReadCloser, error) {
	switch t {
	case NoCompression:
		return io.NopCloser(r), nil

	case ZstdCompression:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		return dec.IOReadCloser(), nil

	case SnappyCompression:
		return io.NopCloser(snappy.NewReader(r)), nil

	case LZ4Compression:
		return io.NopCloser(lz4.NewReader(r)), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, t)
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
