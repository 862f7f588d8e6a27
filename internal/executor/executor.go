// Package executor carries out a CopyPlan: bounded-concurrency workers
// that copy or move each source file to its planned destination,
// detecting duplicates and destination collisions and recording every
// outcome to a checkpoint writer as they go.
package executor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rholland/photocopy/internal/checkpoint"
	"github.com/rholland/photocopy/internal/dupindex"
	"github.com/rholland/photocopy/internal/errs"
	"github.com/rholland/photocopy/internal/pathsafety"
	"github.com/rholland/photocopy/internal/plan"
	"github.com/rholland/photocopy/pkg/provider"
)

// PromptFunc is consulted when DuplicatePolicy is dupindex.PolicyPrompt
// and a duplicate is found. existingPath is the first file seen with
// this content; incoming is the file currently being planned. It returns
// true to copy incoming anyway, false to skip it. A nil PromptFunc
// behaves like dupindex.PolicySkip.
type PromptFunc func(existingPath string, incoming *plan.SourceFile) bool

// Options configures a single execution pass.
type Options struct {
	DestinationRoot string
	Concurrency     int // 0 means runtime.NumCPU()

	// Overwrite replaces a destination file that already exists.
	// SkipExisting skips a colliding destination instead. If neither is
	// set, the default is to rename: the stem gets DuplicatesFormat's
	// "{number}" suffix for the smallest number that names a free path.
	Overwrite        bool
	SkipExisting     bool
	DuplicatesFormat string

	DuplicatePolicy dupindex.Policy
	PromptFunc      PromptFunc

	Provider provider.MetadataProvider

	FlushEvery    int
	FlushInterval time.Duration

	Log zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.NumCPU()
	}
	if o.FlushEvery <= 0 {
		o.FlushEvery = 1024
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 5 * time.Second
	}
	if o.DuplicatesFormat == "" {
		o.DuplicatesFormat = "_{number}"
	}
	return o
}

// Summary tallies this run's new activity. It does not include files the
// resume fast-path skipped because a prior session already recorded
// them — those are reflected in the checkpoint header's own counts.
type Summary struct {
	Processed      int64
	Completed      int64
	Skipped        int64
	Failed         int64
	Duplicates     int64
	FailureReasons []string
}

// tally is the mutable, concurrency-safe accumulator runOne writes into.
// Run copies its counters into a plain Summary once every worker has
// finished, so callers never receive a struct holding a lock.
type tally struct {
	Summary
	mu sync.Mutex
}

func (t *tally) addFailureReason(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.FailureReasons = append(t.FailureReasons, reason)
}

// Run executes every operation in p, recording outcomes to w and
// tracking content duplicates in idx. It returns once every operation has
// been attempted or ctx is cancelled before all have started.
func Run(ctx context.Context, p *plan.Plan, w *checkpoint.Writer, idx *dupindex.Index, opts Options) (Summary, error) {
	opts = opts.withDefaults()

	for _, dir := range p.Directories {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Summary{}, fmt.Errorf("create destination directory %q: %w", dir, err)
		}
	}

	if isNetwork, fsType, err := pathsafety.IsNetworkFilesystem(opts.DestinationRoot); err == nil && isNetwork {
		opts.Log.Warn().Str("path", opts.DestinationRoot).Str("fstype", fsType).
			Msg("destination root is on a network filesystem; atomic rename may be unavailable, proceeding best-effort")
	}

	var sum tally
	reserved := newReservations()
	flushCounter := int64(0)
	flushDone := make(chan struct{})
	stopFlush := make(chan struct{})
	go func() {
		defer close(flushDone)
		t := time.NewTicker(opts.FlushInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				_ = w.Flush()
			case <-stopFlush:
				return
			}
		}
	}()
	defer func() {
		close(stopFlush)
		<-flushDone
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i := range p.Operations {
		op := p.Operations[i]
		if err := ctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			runOne(gctx, op, w, idx, reserved, opts, &sum)
			n := atomic.AddInt64(&flushCounter, 1)
			if n%int64(opts.FlushEvery) == 0 {
				_ = w.Flush()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return sum.Summary, err
	}
	if err := ctx.Err(); err != nil {
		return sum.Summary, fmt.Errorf("execution: %w", errs.ErrCancelled)
	}
	return sum.Summary, nil
}

// runOne performs a single operation. It never returns an error to the
// errgroup — a per-file failure is recorded to the checkpoint and
// tallied, not treated as fatal to the whole run.
func runOne(ctx context.Context, op plan.Operation, w *checkpoint.Writer, idx *dupindex.Index, reserved *reservations, opts Options, sum *tally) {
	if w.IsCompleted(op.Index) {
		return
	}
	atomic.AddInt64(&sum.Processed, 1)

	if blocked, reason := ancestorBlocked(opts.DestinationRoot, op.Destination); blocked {
		opts.Log.Warn().Str("path", op.Destination).Msg(reason)
		fail(w, op, sum, reason)
		return
	}

	if opts.DuplicatePolicy != dupindex.PolicyNone {
		sum2, err := op.Source.Checksum(ctx, opts.Provider)
		if err != nil {
			fail(w, op, sum, fmt.Sprintf("checksum failed: %v", err))
			return
		}
		existing, first := idx.InsertIfAbsent(hex.EncodeToString(sum2[:]), dupindex.Entry{Path: op.Source.Path, Size: op.Source.Size})
		if !first {
			atomic.AddInt64(&sum.Duplicates, 1)
			switch opts.DuplicatePolicy {
			case dupindex.PolicySkip:
				skip(w, op, sum, fmt.Sprintf("duplicate of %s", existing.Path))
				return
			case dupindex.PolicyPrompt:
				keep := false
				if opts.PromptFunc != nil {
					keep = opts.PromptFunc(existing.Path, op.Source)
				}
				if !keep {
					skip(w, op, sum, fmt.Sprintf("duplicate of %s", existing.Path))
					return
				}
			case dupindex.PolicyReport:
				// fall through and copy anyway
			}
		}
	}

	dest, outcome, err := reserved.resolve(op.Destination, opts.DestinationRoot, opts)
	if err != nil {
		fail(w, op, sum, err.Error())
		return
	}
	if outcome == checkpoint.OutcomeSkipped {
		skip(w, op, sum, "destination already exists")
		return
	}

	outcome2 := checkpoint.OutcomeCompleted
	switch op.Mode {
	case plan.ModeMove:
		var err error
		outcome2, err = moveFile(op.Source.Path, dest)
		if err != nil {
			if outcome2 == checkpoint.OutcomeCopyDonePendingDelete {
				if recErr := w.Record(op.Index, outcome2, op.Source.Size); recErr != nil {
					opts.Log.Warn().Err(recErr).Msg("checkpoint record failed")
				}
				opts.Log.Warn().Err(err).Str("path", op.Source.Path).Msg("move copied but source removal failed")
				atomic.AddInt64(&sum.Completed, 1)
				return
			}
			fail(w, op, sum, err.Error())
			return
		}
	default:
		if err := copyFile(op.Source.Path, dest); err != nil {
			fail(w, op, sum, err.Error())
			return
		}
	}

	if err := w.Record(op.Index, outcome2, op.Source.Size); err != nil {
		opts.Log.Warn().Err(err).Str("path", op.Source.Path).Msg("checkpoint record failed")
	}
	atomic.AddInt64(&sum.Completed, 1)
}

func fail(w *checkpoint.Writer, op plan.Operation, sum *tally, message string) {
	_ = w.RecordFailure(op.Index, op.Source.Size, message)
	atomic.AddInt64(&sum.Failed, 1)
	sum.addFailureReason(fmt.Sprintf("%s: %s", op.Source.Path, message))
}

func skip(w *checkpoint.Writer, op plan.Operation, sum *tally, message string) {
	if err := w.Record(op.Index, checkpoint.OutcomeSkipped, op.Source.Size); err != nil {
		_ = message
	}
	atomic.AddInt64(&sum.Skipped, 1)
}

// ancestorBlocked reports whether any ancestor directory of dest, up to
// root, is a reparse point — copying through a symlinked ancestor could
// silently escape the destination tree.
func ancestorBlocked(root, dest string) (bool, string) {
	dir := filepath.Dir(dest)
	for {
		if !pathsafety.IsWithin(dir, root) || dir == root {
			return false, ""
		}
		if pathsafety.IsReparsePoint(dir) {
			return true, fmt.Sprintf("ancestor directory %q is a reparse point", dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false, ""
		}
		dir = parent
	}
}

// reservations serializes destination-path selection across concurrent
// workers. Two operations that render to the same destination must not
// both observe it as free: the whole "does this path exist, and if not
// pick the next one" decision runs under one lock, with every path this
// run has already handed out tracked alongside whatever os.Lstat reports,
// so a second worker racing the first is forced onto the next candidate
// instead of silently clobbering it.
type reservations struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

func newReservations() *reservations {
	return &reservations{claimed: make(map[string]struct{})}
}

func (r *reservations) existsLocked(path string) bool {
	if _, ok := r.claimed[path]; ok {
		return true
	}
	_, err := os.Lstat(path)
	return err == nil
}

// resolve decides the final destination path given an existing file (or
// reservation held by another in-flight operation) occupying dest.
// outcome is checkpoint.OutcomeSkipped when the caller should skip
// without copying.
func (r *reservations) resolve(dest string, root string, opts Options) (string, checkpoint.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.existsLocked(dest) {
		r.claimed[dest] = struct{}{}
		return dest, checkpoint.OutcomeCompleted, nil
	}

	if opts.Overwrite {
		r.claimed[dest] = struct{}{}
		return dest, checkpoint.OutcomeCompleted, nil
	}
	if opts.SkipExisting {
		return dest, checkpoint.OutcomeSkipped, nil
	}
	candidate, err := r.nextAvailableNameLocked(dest, root, opts.DuplicatesFormat)
	if err != nil {
		return dest, checkpoint.OutcomeCompleted, err
	}
	r.claimed[candidate] = struct{}{}
	return candidate, checkpoint.OutcomeCompleted, nil
}

// nextAvailableNameLocked finds the smallest k >= 1 for which
// stem+format(k)+ext names a path neither on disk nor already claimed by
// another in-flight operation this run, re-validating every candidate
// against root before returning it. Callers must hold r.mu.
func (r *reservations) nextAvailableNameLocked(dest, root, format string) (string, error) {
	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(dest, ext)
	for n := 1; n < 100000; n++ {
		suffix := strings.ReplaceAll(format, "{number}", strconv.Itoa(n))
		candidate := stem + suffix + ext
		if ok, reason := pathsafety.ValidateGenerated(candidate, root); !ok {
			return "", fmt.Errorf("%s: %w", reason, errs.ErrUnsafePath)
		}
		if !r.existsLocked(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no available name for %q after 100000 attempts", dest)
}

// copyFile writes src's content to a temp file beside dest, fsyncs it,
// then atomically renames it into place.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source %q: %w", src, err)
	}
	defer in.Close()

	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".photocopy-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %q: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copy %q: %w", src, err)
	}
	if info, err := in.Stat(); err == nil {
		_ = tmp.Chmod(info.Mode())
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync %q: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %q: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("rename %q to %q: %w", tmpPath, dest, err)
	}
	return nil
}

// moveFile tries an atomic rename first; across filesystems it falls
// back to copy-then-unlink. A copy that succeeds but whose source unlink
// fails is reported as checkpoint.OutcomeCopyDonePendingDelete alongside
// a non-nil error: the destination is intact, only the source cleanup
// failed, so a future resume must not redo the copy.
func moveFile(src, dest string) (checkpoint.Outcome, error) {
	// SameFilesystem only short-circuits to the copy-then-unlink fallback
	// when it can positively confirm the two sides are on different
	// devices; any uncertainty (a stat error) falls through to attempting
	// the rename directly and reacting to a cross-device error instead.
	if same, err := pathsafety.SameFilesystem(src, filepath.Dir(dest)); err == nil && !same {
		return copyThenUnlink(src, dest)
	}

	err := os.Rename(src, dest)
	if err == nil {
		return checkpoint.OutcomeCompleted, nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !isCrossDevice(linkErr) {
		return checkpoint.OutcomeCompleted, err
	}
	return copyThenUnlink(src, dest)
}

// copyThenUnlink is the cross-filesystem Move fallback: copy the bytes
// into place, fsync, then remove the source. A copy that lands but whose
// source removal fails is reported as OutcomeCopyDonePendingDelete — the
// destination is intact, so a future resume must not redo the copy.
func copyThenUnlink(src, dest string) (checkpoint.Outcome, error) {
	if err := copyFile(src, dest); err != nil {
		return checkpoint.OutcomeCompleted, err
	}
	if err := os.Remove(src); err != nil {
		return checkpoint.OutcomeCopyDonePendingDelete, fmt.Errorf("copied %q to %q but could not remove source: %w", src, dest, err)
	}
	return checkpoint.OutcomeCompleted, nil
}

func isCrossDevice(err *os.LinkError) bool {
	return strings.Contains(err.Err.Error(), "cross-device") || strings.Contains(err.Err.Error(), "invalid cross-device link")
}
