package registry

import (
	"bytes"
	"fmt"
	"github.com/klauspost/compress/flate"
	"io"
)

// Game state snapshots arrive on every relayed update and sit in memory for
// the whole match, so they are stored flate-compressed and only inflated
// when a reconnecting participant needs the replay.

func compressBlob(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return nil, fmt.Errorf("failed to create state compressor: %w", err)
	}
	if _, err = w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress state blob: %w", err)
	}
	if err = w.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush state blob: %w", err)
	}
	return buf.Bytes(), nil
}

func decompressBlob(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer func() {
		_ = r.Close()
	}()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress state blob: %w", err)
	}
	return out, nil
}
