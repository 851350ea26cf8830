package export

import (
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names accepted by NewWriter.
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

// ValidCompression reports whether name is a supported compression.
// The empty string means no compression.
func ValidCompression(name string) bool {
	switch name {
	case "", CompressionNone, CompressionGzip, CompressionZstd, CompressionLZ4:
		return true
	}
	return false
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w with the named compression and returns the file
// extension to append. Closing the writer flushes the compressor but does
// not close w.
func NewWriter(w io.Writer, compression string) (io.WriteCloser, string, error) {
	switch compression {
	case "", CompressionNone:
		return nopWriteCloser{w}, "", nil
	case CompressionGzip:
		return gzip.NewWriter(w), ".gz", nil
	case CompressionZstd:
		writer, err := zstd.NewWriter(w)
		return writer, ".zst", err
	case CompressionLZ4:
		return lz4.NewWriter(w), ".lz4", nil
	default:
		return nil, "", fmt.Errorf("unsupported compression type: %s", compression)
	}
}

// NewReader returns a decompressing reader chosen by the extension of path.
// Unknown extensions are read as-is.
func NewReader(r io.Reader, path string) (io.ReadCloser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return gzip.NewReader(r)
	case ".zst":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case ".lz4":
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}

// TrimCompressionExt removes a trailing compression extension from name.
func TrimCompressionExt(name string) string {
	for _, ext := range []string{".gz", ".gzip", ".zst", ".lz4"} {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}
