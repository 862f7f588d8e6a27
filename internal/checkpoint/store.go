package checkpoint

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/rholland/photocopy/internal/errs"
	"github.com/rholland/photocopy/internal/pathsafety"
)

const checkpointSubdir = ".photocopy"
const filePrefix = "photocopy-"
const fileSuffix = ".checkpoint"

// Store locates, loads, creates and removes checkpoint files on disk.
type Store struct {
	// DirOverride, if set, is used verbatim (after "~" expansion and
	// canonicalisation) instead of deriving a directory from the
	// destination pattern.
	DirOverride string
	Log         zerolog.Logger
}

// NewStore returns a Store using log for diagnostic messages.
func NewStore(log zerolog.Logger) *Store {
	return &Store{Log: log}
}

// CheckpointDirectory returns the directory checkpoints for destPattern
// are stored in: DirOverride if set, otherwise a ".photocopy" directory
// under destPattern's static root.
func (s *Store) CheckpointDirectory(destPattern string) (string, error) {
	if s.DirOverride != "" {
		expanded, err := homedir.Expand(s.DirOverride)
		if err != nil {
			return "", fmt.Errorf("expand checkpoint directory override: %w", err)
		}
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return "", err
		}
		return pathsafety.Canonicalise(abs)
	}
	root, err := pathsafety.ExtractDestinationRoot(destPattern)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, checkpointSubdir), nil
}

func fileName(sessionID string) string {
	return filePrefix + sessionID + fileSuffix
}

// ListAll returns the full path of every checkpoint file in dir, most
// recently modified first. A missing directory is not an error — it
// simply yields no results.
func (s *Store) ListAll(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list checkpoints in %q: %w", dir, err)
	}
	type withTime struct {
		path string
		mod  time.Time
	}
	var found []withTime
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, withTime{filepath.Join(dir, e.Name()), info.ModTime()})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod.After(found[j].mod) })
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.path
	}
	return out, nil
}

// normalizeDir trims a trailing separator for comparison purposes.
func normalizeDir(s string) string {
	return strings.TrimRight(filepath.Clean(s), string(filepath.Separator))
}

func sameSourceDir(a, b string) bool {
	a, b = normalizeDir(a), normalizeDir(b)
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func samePattern(a, b string) bool {
	return a == b
}

// readHeaderAndStrings reads just enough of path to compare it against a
// current (sourceDir, destPattern) pair, without scanning its records.
func readHeaderAndStrings(path string) (*Header, string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", "", err
	}
	defer f.Close()

	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, "", "", fmt.Errorf("read header: %w", errs.ErrCheckpointCorrupt)
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		return nil, "", "", err
	}

	strBuf := make([]byte, int(h.SourcePathLen)+int(h.DestPatternLen))
	if _, err := io.ReadFull(f, strBuf); err != nil {
		return nil, "", "", fmt.Errorf("read source/destination strings: %w", errs.ErrCheckpointCorrupt)
	}
	source := string(strBuf[:h.SourcePathLen])
	dest := string(strBuf[h.SourcePathLen:])
	return h, source, dest, nil
}

// FindLatest returns the path of the checkpoint in dir with the greatest
// start time among those that are still InProgress and whose stored
// source directory and destination pattern match, or "" if none does.
// Terminal checkpoints (Completed or Failed) are never candidates for
// resume, however recently they were modified.
func (s *Store) FindLatest(dir, sourceDir, destPattern string) (string, error) {
	all, err := s.ListAll(dir)
	if err != nil {
		return "", err
	}
	var bestPath string
	var bestStart int64
	for _, path := range all {
		h, storedSource, storedDest, err := readHeaderAndStrings(path)
		if err != nil {
			s.Log.Warn().Err(err).Str("path", path).Msg("skipping unreadable checkpoint")
			continue
		}
		if h.Status != StatusInProgress {
			continue
		}
		if !sameSourceDir(storedSource, sourceDir) || !samePattern(storedDest, destPattern) {
			continue
		}
		if bestPath == "" || h.StartTicks > bestStart {
			bestPath = path
			bestStart = h.StartTicks
		}
	}
	return bestPath, nil
}

// Load reads the full checkpoint at path, including every operation
// record, and tallies completion state into a fresh State. It returns
// (nil, nil) if the header is structurally invalid — an invalid header
// is treated as "no usable checkpoint", never a hard error, since the
// caller's only recourse is to start fresh.
func (s *Store) Load(path string) (*State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint %q: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil
	}
	h, err := DecodeHeader(headerBuf)
	if err != nil {
		return nil, nil
	}

	strBuf := make([]byte, int(h.SourcePathLen)+int(h.DestPatternLen))
	if _, err := io.ReadFull(r, strBuf); err != nil {
		return nil, nil
	}
	source := string(strBuf[:h.SourcePathLen])
	dest := string(strBuf[h.SourcePathLen:])

	st := NewState("", source, dest, h.Version, FromTicks(h.StartTicks), h.ConfigHashPrefix, h.PlanHashPrefix, h.TotalFiles, h.TotalBytes)
	st.FilePath = path
	st.Touch(FromTicks(h.LastUpdateTicks))

	pad := int(h.RecordsOffset) - (HeaderSize + int(h.SourcePathLen) + int(h.DestPatternLen))
	if pad > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(pad)); err != nil {
			return nil, nil
		}
	}

	recBuf := make([]byte, RecordSize)
	for {
		n, err := io.ReadFull(r, recBuf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF || n != RecordSize {
			// Torn write at the tail: the rest is discarded.
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read checkpoint records: %w", err)
		}
		rec, err := DecodeRecord(recBuf)
		if err != nil {
			break
		}
		if int(rec.Index) < 0 || rec.Index >= h.TotalFiles {
			continue
		}
		st.Bitmap.Set(int(rec.Index))
		switch rec.Outcome {
		case OutcomeCompleted, OutcomeCopyDonePendingDelete:
			st.Completed.Add(1)
		case OutcomeSkipped:
			st.Skipped.Add(1)
		case OutcomeFailed:
			st.Failed.Add(1)
		}
		st.BytesCompleted.Add(rec.FileSize)
	}

	return st, nil
}

// CreateWriter creates a brand-new checkpoint file for state and returns
// a Writer over it. It fails if a file already exists for state's
// session id.
func (s *Store) CreateWriter(dir string, state *State) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory %q: %w", dir, err)
	}
	path := filepath.Join(dir, fileName(state.SessionID))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create checkpoint file %q: %w", path, err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil || !locked {
		f.Close()
		return nil, fmt.Errorf("lock checkpoint file %q: %w", path, errs.ErrIO)
	}

	header := Header{
		Magic:            Magic,
		Version:          state.Version,
		Status:           StatusInProgress,
		StartTicks:       ToTicks(state.StartTime),
		LastUpdateTicks:  ToTicks(state.StartTime),
		TotalFiles:       state.TotalFiles,
		TotalBytes:       state.TotalBytes,
		CompletedCount:   0,
		CompletedBytes:   0,
		ConfigHashPrefix: state.ConfigHash,
		PlanHashPrefix:   state.PlanHash,
		SourcePathLen:    int32(len(state.SourceDir)),
		DestPatternLen:   int32(len(state.DestPattern)),
		RecordsOffset:    recordsOffset(len(state.SourceDir), len(state.DestPattern)),
	}

	if _, err := f.Write(header.Encode()); err != nil {
		f.Close()
		return nil, fmt.Errorf("write checkpoint header: %w", err)
	}
	if _, err := f.WriteString(state.SourceDir); err != nil {
		f.Close()
		return nil, fmt.Errorf("write checkpoint source path: %w", err)
	}
	if _, err := f.WriteString(state.DestPattern); err != nil {
		f.Close()
		return nil, fmt.Errorf("write checkpoint destination pattern: %w", err)
	}
	padding := int(header.RecordsOffset) - (HeaderSize + len(state.SourceDir) + len(state.DestPattern))
	if padding > 0 {
		if _, err := f.Write(make([]byte, padding)); err != nil {
			f.Close()
			return nil, fmt.Errorf("write checkpoint padding: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("fsync new checkpoint: %w", err)
	}

	state.FilePath = path
	return newWriter(f, lock, state, s.Log), nil
}

// ResumeWriter reopens the checkpoint at state.FilePath for appending,
// taking the exclusive lock so no second process can resume the same
// file concurrently.
func (s *Store) ResumeWriter(state *State) (*Writer, error) {
	f, err := os.OpenFile(state.FilePath, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("reopen checkpoint %q: %w", state.FilePath, err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}

	lock := flock.New(state.FilePath + ".lock")
	locked, err := lock.TryLock()
	if err != nil || !locked {
		f.Close()
		return nil, fmt.Errorf("checkpoint %q is already open elsewhere: %w", state.FilePath, errs.ErrIO)
	}

	return newWriter(f, lock, state, s.Log), nil
}

// Delete removes a checkpoint file and its lock file.
func (s *Store) Delete(path string) error {
	_ = os.Remove(path + ".lock")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete checkpoint %q: %w", path, err)
	}
	return nil
}

// Cleanup removes every checkpoint in dir that has reached a terminal
// status (Completed or Failed) and is older than maxAge, measured from
// its header's last-update time. InProgress checkpoints are never
// removed. It returns the number removed.
func (s *Store) Cleanup(dir string, maxAge time.Duration) (int, error) {
	all, err := s.ListAll(dir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	for _, path := range all {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		buf := make([]byte, HeaderSize)
		_, readErr := io.ReadFull(f, buf)
		f.Close()
		if readErr != nil {
			continue
		}
		h, err := DecodeHeader(buf)
		if err != nil {
			continue
		}
		if h.Status != StatusCompleted && h.Status != StatusFailed {
			continue
		}
		if FromTicks(h.LastUpdateTicks).After(cutoff) {
			continue
		}
		if err := s.Delete(path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
