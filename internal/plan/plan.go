// Package plan holds the data model produced by the planner and consumed
// by the resume orchestrator and the executor: the set of source files
// discovered, the destination each is mapped to, and the directories that
// must exist before any copy begins.
package plan

import (
	"context"
	"sync"
	"time"

	"github.com/rholland/photocopy/pkg/provider"
)

// Mode selects whether an operation copies or moves its source file.
type Mode int

const (
	ModeCopy Mode = iota
	ModeMove
)

func (m Mode) String() string {
	if m == ModeMove {
		return "Move"
	}
	return "Copy"
}

// SourceFile is one file discovered under the source tree. Checksum is
// computed lazily and cached, since not every run needs it (only the
// duplicate-detection policies do).
type SourceFile struct {
	// Path is the absolute, canonicalised filesystem path.
	Path string
	// RelDir is the file's directory relative to the source root, using
	// "/" as the separator regardless of host OS, empty for files directly
	// under the source root.
	RelDir string
	Size    int64
	ModTime time.Time
	Meta    provider.FileMetadata

	mu          sync.Mutex
	checksum    [32]byte
	checksumSet bool
}

// ResolvedTimestamp returns the provider-resolved timestamp if one was
// found, otherwise the filesystem modification time.
func (s *SourceFile) ResolvedTimestamp() time.Time {
	if s.Meta.HasTimestamp {
		return s.Meta.Timestamp
	}
	return s.ModTime
}

// Checksum returns the cached checksum, computing it via p on first call.
// Safe for concurrent use; concurrent callers racing on an uncomputed
// checksum will both compute it but only one result is kept, which is
// harmless since the provider is expected to be deterministic.
func (s *SourceFile) Checksum(ctx context.Context, p provider.MetadataProvider) ([32]byte, error) {
	s.mu.Lock()
	if s.checksumSet {
		defer s.mu.Unlock()
		return s.checksum, nil
	}
	s.mu.Unlock()

	sum, err := p.Checksum(ctx, s.Path)
	if err != nil {
		return [32]byte{}, err
	}

	s.mu.Lock()
	if !s.checksumSet {
		s.checksum = sum
		s.checksumSet = true
	}
	out := s.checksum
	s.mu.Unlock()
	return out, nil
}

// Operation is one planned file transfer: copy or move Source to
// Destination. Index is the operation's position in the plan and is the
// key used by the checkpoint log to record its outcome.
type Operation struct {
	Index       int
	Source      *SourceFile
	Destination string
	Mode        Mode
}

// Plan is the full, ordered set of operations the executor will carry
// out, plus every directory that must exist before any copy begins.
type Plan struct {
	Operations  []Operation
	Directories []string
	TotalBytes  int64
}

// Paths returns the source path of every operation, in plan order. Used
// to compute the checkpoint's plan hash.
func (p *Plan) Paths() []string {
	out := make([]string, len(p.Operations))
	for i, op := range p.Operations {
		out[i] = op.Source.Path
	}
	return out
}

// Sizes returns the source size of every operation, in plan order.
func (p *Plan) Sizes() []int64 {
	out := make([]int64, len(p.Operations))
	for i, op := range p.Operations {
		out[i] = op.Source.Size
	}
	return out
}
