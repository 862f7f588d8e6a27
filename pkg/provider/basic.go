package provider

import (
	"context"
	"crypto/sha256"
	"io"
	"os"
	"time"
)

// BasicProvider is a reference MetadataProvider that never resolves
// embedded timestamps or location data — callers fall back to the
// filesystem modification time and the configured unknown-location
// fallback string for every file. It exists so the engine and its tests
// have a usable provider without depending on an EXIF or geocoding
// library; production callers are expected to supply their own.
type BasicProvider struct{}

// NewBasicProvider returns a BasicProvider.
func NewBasicProvider() BasicProvider {
	return BasicProvider{}
}

// Resolve always reports HasTimestamp and HasLocation as false.
func (BasicProvider) Resolve(_ context.Context, _ string, _ int64, _ time.Time) (FileMetadata, error) {
	return FileMetadata{}, nil
}

// Checksum streams the file through SHA-256. It does not buffer the whole
// file in memory.
func (BasicProvider) Checksum(ctx context.Context, path string) ([32]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, contextReader{ctx: ctx, r: f}); err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// contextReader aborts a long read once ctx is done, so checksum hashing
// of a very large file on a slow device doesn't ignore cancellation.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
