package checkpoint

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the in-memory representation of one checkpoint: everything a
// Writer needs to keep updating the file, and everything a resume
// decision needs to evaluate compatibility.
type State struct {
	SessionID   string
	Version     int32
	StartTime   time.Time
	SourceDir   string
	DestPattern string
	ConfigHash  [16]byte
	PlanHash    [16]byte
	TotalFiles  int32
	TotalBytes  int64

	// FilePath is the checkpoint's own location on disk, set once it has
	// been created or loaded.
	FilePath string

	Bitmap *Bitmap

	Completed      atomic.Int64
	Failed         atomic.Int64
	Skipped        atomic.Int64
	BytesCompleted atomic.Int64

	errMu  sync.Mutex
	errors map[int32]string

	lastUpdated atomic.Int64 // ticks
}

// NewState builds an empty State ready to back a fresh checkpoint.
func NewState(sessionID, sourceDir, destPattern string, version int32, start time.Time, configHash, planHash [16]byte, totalFiles int32, totalBytes int64) *State {
	s := &State{
		SessionID:   sessionID,
		Version:     version,
		StartTime:   start.UTC(),
		SourceDir:   sourceDir,
		DestPattern: destPattern,
		ConfigHash:  configHash,
		PlanHash:    planHash,
		TotalFiles:  totalFiles,
		TotalBytes:  totalBytes,
		Bitmap:      NewBitmap(int(totalFiles)),
		errors:      make(map[int32]string),
	}
	s.lastUpdated.Store(ToTicks(start.UTC()))
	return s
}

// RecordError stores the failure message for a plan index.
func (s *State) RecordError(index int32, message string) {
	s.errMu.Lock()
	s.errors[index] = message
	s.errMu.Unlock()
}

// Errors returns a copy of the recorded index -> message map.
func (s *State) Errors() map[int32]string {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	out := make(map[int32]string, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

// Touch advances LastUpdated to now if now is later than the current
// value. Safe for concurrent callers.
func (s *State) Touch(now time.Time) {
	ticks := ToTicks(now.UTC())
	for {
		cur := s.lastUpdated.Load()
		if ticks <= cur {
			return
		}
		if s.lastUpdated.CompareAndSwap(cur, ticks) {
			return
		}
	}
}

// LastUpdated returns the most recent Touch time.
func (s *State) LastUpdated() time.Time {
	return FromTicks(s.lastUpdated.Load())
}
