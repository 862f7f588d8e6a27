package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rholland/photocopy/internal/errs"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := &Header{
		Magic:            Magic,
		Version:          CurrentVersion,
		Status:           StatusInProgress,
		StartTicks:       1234567,
		LastUpdateTicks:  7654321,
		TotalFiles:       42,
		TotalBytes:       1 << 30,
		CompletedCount:   7,
		CompletedBytes:   1 << 20,
		ConfigHashPrefix: [16]byte{1, 2, 3},
		PlanHashPrefix:   [16]byte{4, 5, 6},
		SourcePathLen:    12,
		DestPatternLen:   34,
		RecordsOffset:    168,
	}

	buf := h.Encode()
	require.Len(t, buf, HeaderSize)

	got, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestDecodeHeaderRejectsShortBuffer(t *testing.T) {
	_, err := DecodeHeader(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, errs.ErrCheckpointCorrupt)
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	h := &Header{Magic: Magic, Version: CurrentVersion}
	buf := h.Encode()
	buf[0] = 'X'
	_, err := DecodeHeader(buf)
	assert.ErrorIs(t, err, errs.ErrCheckpointCorrupt)
}

func TestDecodeHeaderRejectsFutureVersion(t *testing.T) {
	h := &Header{Magic: Magic, Version: CurrentVersion + 1}
	buf := h.Encode()
	_, err := DecodeHeader(buf)
	assert.ErrorIs(t, err, errs.ErrCheckpointCorrupt)
}

func TestRecordEncodeDecodeRoundTrip(t *testing.T) {
	r := Record{Index: 99, Outcome: OutcomeCopyDonePendingDelete, FileSize: 4096, Timestamp: 555}
	buf := r.Encode()
	require.Len(t, buf, RecordSize)

	got, err := DecodeRecord(buf)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestDecodeRecordRejectsWrongLength(t *testing.T) {
	_, err := DecodeRecord(make([]byte, RecordSize-1))
	assert.ErrorIs(t, err, errs.ErrCheckpointCorrupt)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "Completed", OutcomeCompleted.String())
	assert.Equal(t, "CopyDonePendingDelete", OutcomeCopyDonePendingDelete.String())
	assert.Equal(t, "Skipped", OutcomeSkipped.String())
	assert.Equal(t, "Failed", OutcomeFailed.String())
	assert.Equal(t, "Unknown", Outcome(99).String())
}

func TestAlignUp8(t *testing.T) {
	cases := map[int]int{0: 0, 1: 8, 7: 8, 8: 8, 9: 16, 100: 104}
	for in, want := range cases {
		assert.Equal(t, want, alignUp8(in), "alignUp8(%d)", in)
	}
}
