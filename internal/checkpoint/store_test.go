package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newState(t *testing.T, total int32) *State {
	t.Helper()
	cfg := baseFingerprint()
	return NewState(uuid.NewString(), "/source/photos", cfg.DestPattern, CurrentVersion, time.Now().UTC(),
		ComputeConfigHash(cfg), ComputePlanHash([]string{"a.jpg"}, []int64{10}), total, 1000)
}

func TestCreateWriterThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store := &Store{Log: zerolog.Nop()}

	state := newState(t, 3)
	w, err := store.CreateWriter(dir, state)
	require.NoError(t, err)

	require.NoError(t, w.Record(0, OutcomeCompleted, 100))
	require.NoError(t, w.Record(1, OutcomeSkipped, 50))
	require.NoError(t, w.RecordFailure(2, 0, "permission denied"))
	require.NoError(t, w.Flush())
	require.NoError(t, w.Dispose())

	loaded, err := store.Load(state.FilePath)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	require.True(t, loaded.Bitmap.IsSet(0))
	require.True(t, loaded.Bitmap.IsSet(1))
	require.True(t, loaded.Bitmap.IsSet(2))
	require.EqualValues(t, 1, loaded.Completed.Load())
	require.EqualValues(t, 1, loaded.Skipped.Load())
	require.EqualValues(t, 1, loaded.Failed.Load())
	require.EqualValues(t, 150, loaded.BytesCompleted.Load())
	require.Equal(t, state.SourceDir, loaded.SourceDir)
	require.Equal(t, state.DestPattern, loaded.DestPattern)
}

func TestCreateWriterCompleteSetsTerminalStatus(t *testing.T) {
	dir := t.TempDir()
	store := &Store{Log: zerolog.Nop()}
	state := newState(t, 1)

	w, err := store.CreateWriter(dir, state)
	require.NoError(t, err)
	require.NoError(t, w.Record(0, OutcomeCompleted, 1))
	require.NoError(t, w.Complete())
	require.NoError(t, w.Dispose())

	h, _, _, err := readHeaderAndStrings(state.FilePath)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, h.Status)
}

func TestFindLatestSkipsTerminalCheckpoints(t *testing.T) {
	dir := t.TempDir()
	store := &Store{Log: zerolog.Nop()}

	done := newState(t, 1)
	w1, err := store.CreateWriter(dir, done)
	require.NoError(t, err)
	require.NoError(t, w1.Record(0, OutcomeCompleted, 1))
	require.NoError(t, w1.Complete())
	require.NoError(t, w1.Dispose())

	time.Sleep(10 * time.Millisecond)

	inProgress := newState(t, 2)
	w2, err := store.CreateWriter(dir, inProgress)
	require.NoError(t, err)
	require.NoError(t, w2.Record(0, OutcomeCompleted, 1))
	require.NoError(t, w2.Flush())
	require.NoError(t, w2.Dispose())

	found, err := store.FindLatest(dir, inProgress.SourceDir, inProgress.DestPattern)
	require.NoError(t, err)
	require.Equal(t, inProgress.FilePath, found)
}

func TestFindLatestRequiresMatchingSourceAndDest(t *testing.T) {
	dir := t.TempDir()
	store := &Store{Log: zerolog.Nop()}
	state := newState(t, 1)
	w, err := store.CreateWriter(dir, state)
	require.NoError(t, err)
	require.NoError(t, w.Dispose())

	found, err := store.FindLatest(dir, "/a/different/source", state.DestPattern)
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestResumeWriterAppendsToExistingFile(t *testing.T) {
	dir := t.TempDir()
	store := &Store{Log: zerolog.Nop()}
	state := newState(t, 2)

	w, err := store.CreateWriter(dir, state)
	require.NoError(t, err)
	require.NoError(t, w.Record(0, OutcomeCompleted, 10))
	require.NoError(t, w.Flush())
	require.NoError(t, w.Dispose())

	loaded, err := store.Load(state.FilePath)
	require.NoError(t, err)
	loaded.FilePath = state.FilePath

	w2, err := store.ResumeWriter(loaded)
	require.NoError(t, err)
	require.True(t, w2.IsCompleted(0))
	require.NoError(t, w2.Record(1, OutcomeCompleted, 20))
	require.NoError(t, w2.Complete())
	require.NoError(t, w2.Dispose())

	final, err := store.Load(state.FilePath)
	require.NoError(t, err)
	require.True(t, final.Bitmap.IsSet(0))
	require.True(t, final.Bitmap.IsSet(1))
	require.EqualValues(t, 2, final.Completed.Load())
}

func TestCleanupRemovesOnlyOldTerminalCheckpoints(t *testing.T) {
	dir := t.TempDir()
	store := &Store{Log: zerolog.Nop()}

	completed := newState(t, 1)
	w, err := store.CreateWriter(dir, completed)
	require.NoError(t, err)
	require.NoError(t, w.Record(0, OutcomeCompleted, 1))
	require.NoError(t, w.Complete())
	require.NoError(t, w.Dispose())

	stillRunning := newState(t, 1)
	w2, err := store.CreateWriter(dir, stillRunning)
	require.NoError(t, err)
	require.NoError(t, w2.Flush())
	require.NoError(t, w2.Dispose())

	removed, err := store.Cleanup(dir, 0)
	require.NoError(t, err)
	require.Equal(t, 1, removed, "only the terminal checkpoint should be removed")

	remaining, err := store.ListAll(dir)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, filepath.Base(stillRunning.FilePath), filepath.Base(remaining[0]))
}

func TestCreateWriterRejectsDuplicateSession(t *testing.T) {
	dir := t.TempDir()
	store := &Store{Log: zerolog.Nop()}
	state := newState(t, 1)

	w, err := store.CreateWriter(dir, state)
	require.NoError(t, err)
	defer w.Dispose()

	cfg := baseFingerprint()
	dup := NewState(state.SessionID, state.SourceDir, state.DestPattern, CurrentVersion, time.Now().UTC(),
		ComputeConfigHash(cfg), ComputePlanHash([]string{"a.jpg"}, []int64{10}), 1, 1000)
	_, err = store.CreateWriter(dir, dup)
	require.Error(t, err)
}

func TestLoadReturnsNilForGarbageFile(t *testing.T) {
	dir := t.TempDir()
	store := &Store{Log: zerolog.Nop()}
	path := filepath.Join(dir, "photocopy-garbage.checkpoint")
	require.NoError(t, os.WriteFile(path, []byte("not a checkpoint"), 0o644))

	state, err := store.Load(path)
	require.NoError(t, err)
	require.Nil(t, state)
}
