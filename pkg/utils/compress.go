package utils

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/pkg/errors"
)

// Compress gzips data.
func Compress(data []byte) (bytes.Buffer, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return buf, errors.Wrap(err, "failed to write gzip data")
	}
	if err := gz.Close(); err != nil {
		return buf, errors.Wrap(err, "failed to close gzip writer")
	}
	return buf, nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gzip reader")
	}
	defer gz.Close()
	out, err := io.ReadAll(gz)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read gzip data")
	}
	return out, nil
}
