package checkpoint

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/rholland/photocopy/internal/errs"
)

const (
	queueCapacity  = 10_000
	batchRecords   = 170 // ~4KB per write at RecordSize=24
	disposeTimeout = 5 * time.Second
)

type queueItem struct {
	rec       Record
	isBarrier bool
	done      chan struct{}
}

// Writer is the single background-draining append sink for one
// checkpoint file. Record/RecordFailure enqueue and return immediately;
// a dedicated goroutine batches records onto disk so callers on a worker
// pool never block on file I/O under normal load — they only block once
// the bounded queue is full, which is deliberate backpressure.
type Writer struct {
	file  *os.File
	lock  *flock.Flock
	state *State
	log   zerolog.Logger

	queue     chan queueItem
	drainDone chan struct{}
	drainErr  atomic.Pointer[error]

	mu     sync.RWMutex
	closed bool
}

func newWriter(file *os.File, lock *flock.Flock, state *State, log zerolog.Logger) *Writer {
	w := &Writer{
		file:      file,
		lock:      lock,
		state:     state,
		log:       log,
		queue:     make(chan queueItem, queueCapacity),
		drainDone: make(chan struct{}),
	}
	go w.drainLoop()
	return w
}

func (w *Writer) drainLoop() {
	defer close(w.drainDone)
	batch := make([]byte, 0, batchRecords*RecordSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if _, err := w.file.Write(batch); err != nil {
			w.setDrainErr(fmt.Errorf("write checkpoint records: %w", err))
		}
		batch = batch[:0]
	}

	for item := range w.queue {
		if item.isBarrier {
			flush()
			close(item.done)
			continue
		}
		batch = append(batch, item.rec.Encode()...)
		if len(batch) >= batchRecords*RecordSize {
			flush()
		}
	drainMore:
		for len(batch) < batchRecords*RecordSize {
			select {
			case next, ok := <-w.queue:
				if !ok {
					flush()
					return
				}
				if next.isBarrier {
					flush()
					close(next.done)
					continue
				}
				batch = append(batch, next.rec.Encode()...)
			default:
				break drainMore
			}
		}
		flush()
	}
	flush()
}

func (w *Writer) setDrainErr(err error) {
	w.drainErr.Store(&err)
}

func (w *Writer) loadDrainErr() error {
	p := w.drainErr.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (w *Writer) enqueue(item queueItem) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errs.ErrClosed
	}
	w.queue <- item
	return nil
}

// Record enqueues the outcome of plan index i, completed with the given
// file size, at the current time.
func (w *Writer) Record(i int, outcome Outcome, fileSize int64) error {
	return w.record(i, outcome, fileSize, "")
}

// RecordFailure enqueues a failed outcome for plan index i and stores
// message for later diagnostics.
func (w *Writer) RecordFailure(i int, fileSize int64, message string) error {
	return w.record(i, OutcomeFailed, fileSize, message)
}

func (w *Writer) record(i int, outcome Outcome, fileSize int64, message string) error {
	if i < 0 || i >= int(w.state.TotalFiles) {
		panic("checkpoint: record index out of range")
	}
	now := time.Now().UTC()
	w.state.Bitmap.Set(i)
	switch outcome {
	case OutcomeCompleted, OutcomeCopyDonePendingDelete:
		w.state.Completed.Add(1)
	case OutcomeSkipped:
		w.state.Skipped.Add(1)
	case OutcomeFailed:
		w.state.Failed.Add(1)
		w.state.RecordError(int32(i), message)
	}
	w.state.BytesCompleted.Add(fileSize)
	w.state.Touch(now)

	return w.enqueue(queueItem{rec: Record{
		Index:     int32(i),
		Outcome:   outcome,
		FileSize:  fileSize,
		Timestamp: ToTicks(now),
	}})
}

// IsCompleted reports whether plan index i already has a recorded
// outcome — the executor's resume fast-path.
func (w *Writer) IsCompleted(i int) bool {
	return w.state.Bitmap.IsSet(i)
}

// barrier blocks until every record enqueued before this call has been
// written to the file.
func (w *Writer) barrier() error {
	done := make(chan struct{})
	if err := w.enqueue(queueItem{isBarrier: true, done: done}); err != nil {
		return err
	}
	<-done
	return w.loadDrainErr()
}

// Flush durably persists every record enqueued so far and rewrites the
// header to reflect current progress. Callers use this periodically
// (every N records, or on a timer) to bound how much work a crash can
// lose.
func (w *Writer) Flush() error {
	return w.syncAndRewrite(StatusInProgress)
}

// Complete marks the checkpoint as finished successfully.
func (w *Writer) Complete() error {
	return w.syncAndRewrite(StatusCompleted)
}

// Fail marks the checkpoint as terminally failed.
func (w *Writer) Fail() error {
	return w.syncAndRewrite(StatusFailed)
}

func (w *Writer) syncAndRewrite(status Status) error {
	if err := w.barrier(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("fsync checkpoint: %w", err)
	}
	if err := w.rewriteHeader(status); err != nil {
		return err
	}
	return w.file.Sync()
}

func (w *Writer) rewriteHeader(status Status) error {
	h := Header{
		Magic:            Magic,
		Version:          w.state.Version,
		Status:           status,
		StartTicks:       ToTicks(w.state.StartTime),
		LastUpdateTicks:  ToTicks(w.state.LastUpdated()),
		TotalFiles:       w.state.TotalFiles,
		TotalBytes:       w.state.TotalBytes,
		CompletedCount:   int32(w.state.Completed.Load()),
		CompletedBytes:   w.state.BytesCompleted.Load(),
		ConfigHashPrefix: w.state.ConfigHash,
		PlanHashPrefix:   w.state.PlanHash,
		SourcePathLen:    int32(len(w.state.SourceDir)),
		DestPatternLen:   int32(len(w.state.DestPattern)),
		RecordsOffset:    recordsOffset(len(w.state.SourceDir), len(w.state.DestPattern)),
	}
	if _, err := w.file.WriteAt(h.Encode(), 0); err != nil {
		return fmt.Errorf("rewrite checkpoint header: %w", err)
	}
	return nil
}

// Dispose stops accepting new records, waits up to 5 seconds for the
// background drain to empty, then releases the file lock and closes the
// handle. Records already durably written remain so on disk regardless
// of whether the drain finishes inside the timeout.
func (w *Writer) Dispose() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	select {
	case <-w.drainDone:
	case <-time.After(disposeTimeout):
		w.log.Warn().Msg("checkpoint writer disposal timed out waiting for drain")
	}

	_ = w.file.Sync()
	if w.lock != nil {
		_ = w.lock.Unlock()
	}
	return w.file.Close()
}

func recordsOffset(sourceLen, destLen int) int32 {
	return int32(alignUp8(HeaderSize + sourceLen + destLen))
}
