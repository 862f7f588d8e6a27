package checkpoint

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ConfigFingerprint is every configuration field that must stay stable
// across a resume for the destination layout to mean the same thing it
// did when the checkpoint was written.
type ConfigFingerprint struct {
	DestPattern         string
	Mode                string // "Copy" or "Move"
	DuplicatesFormat    string
	PathCasing          string
	UseFullCountryNames bool
	LocationGranularity string
	UnknownFallback     string
}

func appendString(buf *bytes.Buffer, s *string) {
	if s == nil {
		buf.WriteByte(0x00)
		return
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(*s)))
	buf.Write(lenBuf[:])
	buf.WriteString(*s)
}

func appendBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

// ComputeConfigHash hashes the fields of cfg that affect how the
// destination tree is laid out, truncated to the 16-byte prefix stored
// in the header.
func ComputeConfigHash(cfg ConfigFingerprint) [16]byte {
	var buf bytes.Buffer
	appendString(&buf, &cfg.DestPattern)
	appendString(&buf, &cfg.Mode)
	appendString(&buf, &cfg.DuplicatesFormat)
	appendString(&buf, &cfg.PathCasing)
	appendBool(&buf, cfg.UseFullCountryNames)
	appendString(&buf, &cfg.LocationGranularity)
	appendString(&buf, &cfg.UnknownFallback)

	sum := sha256.Sum256(buf.Bytes())
	var out [16]byte
	copy(out[:], sum[:16])
	return out
}

// ComputePlanHash hashes the ordered set of (path, size) pairs that make
// up a plan, case-insensitively sorted by path, truncated to the 16-byte
// prefix stored in the header.
func ComputePlanHash(paths []string, sizes []int64) [16]byte {
	type item struct {
		path string
		size int64
	}
	items := make([]item, len(paths))
	for i := range paths {
		items[i] = item{paths[i], sizes[i]}
	}
	sort.Slice(items, func(i, j int) bool {
		return strings.ToLower(items[i].path) < strings.ToLower(items[j].path)
	})

	h := sha256.New()
	for _, it := range items {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(it.path)))
		h.Write(lenBuf[:])
		h.Write([]byte(it.path))
		var szBuf [8]byte
		binary.LittleEndian.PutUint64(szBuf[:], uint64(it.size))
		h.Write(szBuf[:])
	}
	var out [16]byte
	copy(out[:], h.Sum(nil)[:16])
	return out
}

// ValidationResult is the outcome of checking a loaded checkpoint against
// the current run's source directory, destination pattern and config.
type ValidationResult struct {
	Valid     bool
	Reason    string
	Total     int
	Completed int
	Warnings  []string
}

const staleAfter = 30 * 24 * time.Hour

// Validate checks a loaded checkpoint state against the current run.
// planHash is the hash of the newly recomputed plan (same source tree
// walked again); a mismatch means the set of files to copy has changed.
func Validate(state *State, sourceDir, destPattern string, cfg ConfigFingerprint, planHash [16]byte) ValidationResult {
	if !sameSourceDir(state.SourceDir, sourceDir) {
		return ValidationResult{Reason: "source directory has changed since this checkpoint was written"}
	}
	if !samePattern(state.DestPattern, destPattern) {
		return ValidationResult{Reason: "destination pattern has changed since this checkpoint was written"}
	}
	if ComputeConfigHash(cfg) != state.ConfigHash {
		return ValidationResult{Reason: "Configuration has changed since this checkpoint was written"}
	}
	if planHash != state.PlanHash {
		return ValidationResult{Reason: "the set of files to copy has changed since this checkpoint was written"}
	}
	completed := state.Bitmap.Count()
	if completed >= int(state.TotalFiles) {
		return ValidationResult{Reason: "checkpoint already accounts for every planned file"}
	}

	var warnings []string
	if time.Since(state.StartTime) > staleAfter {
		warnings = append(warnings, fmt.Sprintf("checkpoint is more than %s old", staleAfter))
	}

	return ValidationResult{
		Valid:     true,
		Total:     int(state.TotalFiles),
		Completed: completed,
		Warnings:  warnings,
	}
}
