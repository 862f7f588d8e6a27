// Package provider defines the boundary between the copy engine and the
// opaque metadata extractors (EXIF parsing, reverse geocoding) that sit
// outside this module. The engine only ever talks to the MetadataProvider
// interface; concrete extraction logic is supplied by the caller.
package provider

import (
	"context"
	"time"
)

// LocationData is the resolved place name for a file, at whatever
// granularity the provider supports. Any field may be empty, meaning the
// provider could not resolve it; the renderer substitutes the configured
// fallback string in that case.
type LocationData struct {
	District string
	City     string
	County   string
	State    string
	Country  string
}

// FileMetadata is everything a provider can tell the engine about a single
// source file beyond its raw filesystem stat.
type FileMetadata struct {
	// HasTimestamp reports whether Timestamp was resolved from embedded
	// metadata (EXIF DateTimeOriginal or equivalent). When false, callers
	// fall back to the file's modification time.
	HasTimestamp bool
	Timestamp    time.Time

	// HasLocation reports whether Location was resolved at all.
	HasLocation bool
	Location    LocationData

	// Camera is the make/model string used by the {camera} pattern token.
	// Empty when unknown.
	Camera string
}

// MetadataProvider resolves per-file metadata and content checksums. It is
// the single seam where EXIF extraction and reverse geocoding are expected
// to live; this module never parses image formats itself.
type MetadataProvider interface {
	// Resolve returns everything known about the file at path. size and
	// modTime come from the caller's os.Lstat on path, supplied so a
	// provider need not restat the file itself.
	Resolve(ctx context.Context, path string, size int64, modTime time.Time) (FileMetadata, error)

	// Checksum returns the SHA-256 digest of the file's content.
	// plan.SourceFile caches the result, so it is normally called once per
	// file per plan; concurrent first callers may each call it.
	Checksum(ctx context.Context, path string) ([32]byte, error)
}
