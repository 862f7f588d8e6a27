// Package checkpoint implements the durable, binary, append-only log that
// records the outcome of every planned file operation as it completes,
// and the store that locates, loads and writes these logs on disk.
//
// On-disk layout: a fixed 128-byte header, immediately followed by the
// UTF-8 source path and destination pattern strings (their lengths are in
// the header), then zero-padding out to an 8-byte-aligned offset, then a
// sequence of fixed 24-byte operation records running to EOF.
package checkpoint

import (
	"encoding/binary"
	"fmt"

	"github.com/rholland/photocopy/internal/errs"
)

// Status is the terminal state recorded in the header.
type Status int32

const (
	StatusInProgress Status = 0
	StatusCompleted  Status = 1
	StatusFailed     Status = 2
)

// Magic is the fixed 8-byte file signature: "PCOPY01\0".
var Magic = [8]byte{'P', 'C', 'O', 'P', 'Y', '0', '1', 0}

// CurrentVersion is the header version this build writes and the newest
// version it understands how to read.
const CurrentVersion int32 = 1

// HeaderSize is the fixed, constant size of the header in bytes.
const HeaderSize = 128

// Header is the fixed-layout checkpoint header.
type Header struct {
	Magic            [8]byte
	Version          int32
	Status           Status
	StartTicks       int64
	LastUpdateTicks  int64
	TotalFiles       int32
	TotalBytes       int64
	CompletedCount   int32
	CompletedBytes   int64
	ConfigHashPrefix [16]byte
	PlanHashPrefix   [16]byte
	SourcePathLen    int32
	DestPatternLen   int32
	RecordsOffset    int32
}

// IsValid reports whether the header has the expected magic and a
// version this build can read.
func (h *Header) IsValid() bool {
	return h.Magic == Magic && h.Version >= 1 && h.Version <= CurrentVersion
}

// Encode writes h into a fresh HeaderSize-byte buffer.
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.Version))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.Status))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.StartTicks))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.LastUpdateTicks))
	binary.LittleEndian.PutUint32(buf[32:36], uint32(h.TotalFiles))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(h.TotalBytes))
	binary.LittleEndian.PutUint32(buf[48:52], uint32(h.CompletedCount))
	binary.LittleEndian.PutUint64(buf[56:64], uint64(h.CompletedBytes))
	copy(buf[64:80], h.ConfigHashPrefix[:])
	copy(buf[80:96], h.PlanHashPrefix[:])
	binary.LittleEndian.PutUint32(buf[96:100], uint32(h.SourcePathLen))
	binary.LittleEndian.PutUint32(buf[100:104], uint32(h.DestPatternLen))
	binary.LittleEndian.PutUint32(buf[104:108], uint32(h.RecordsOffset))
	return buf
}

// DecodeHeader reads a Header from buf, which must be at least
// HeaderSize bytes. It returns ErrCheckpointCorrupt if buf is short or
// the header fails IsValid.
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("short header (%d bytes): %w", len(buf), errs.ErrCheckpointCorrupt)
	}
	h := &Header{}
	copy(h.Magic[:], buf[0:8])
	h.Version = int32(binary.LittleEndian.Uint32(buf[8:12]))
	h.Status = Status(binary.LittleEndian.Uint32(buf[12:16]))
	h.StartTicks = int64(binary.LittleEndian.Uint64(buf[16:24]))
	h.LastUpdateTicks = int64(binary.LittleEndian.Uint64(buf[24:32]))
	h.TotalFiles = int32(binary.LittleEndian.Uint32(buf[32:36]))
	h.TotalBytes = int64(binary.LittleEndian.Uint64(buf[40:48]))
	h.CompletedCount = int32(binary.LittleEndian.Uint32(buf[48:52]))
	h.CompletedBytes = int64(binary.LittleEndian.Uint64(buf[56:64]))
	copy(h.ConfigHashPrefix[:], buf[64:80])
	copy(h.PlanHashPrefix[:], buf[80:96])
	h.SourcePathLen = int32(binary.LittleEndian.Uint32(buf[96:100]))
	h.DestPatternLen = int32(binary.LittleEndian.Uint32(buf[100:104]))
	h.RecordsOffset = int32(binary.LittleEndian.Uint32(buf[104:108]))
	if !h.IsValid() {
		return nil, fmt.Errorf("bad magic or unsupported version %d: %w", h.Version, errs.ErrCheckpointCorrupt)
	}
	return h, nil
}

// Outcome is the recorded disposition of one planned operation.
type Outcome uint8

const (
	OutcomeCompleted             Outcome = 0
	OutcomeCopyDonePendingDelete Outcome = 1
	OutcomeSkipped               Outcome = 2
	OutcomeFailed                Outcome = 3
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "Completed"
	case OutcomeCopyDonePendingDelete:
		return "CopyDonePendingDelete"
	case OutcomeSkipped:
		return "Skipped"
	case OutcomeFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// RecordSize is the fixed, constant size of one operation record.
const RecordSize = 24

// Record is one entry in the append-only records section: the outcome of
// a single planned operation, keyed by its index in the plan.
type Record struct {
	Index     int32
	Outcome   Outcome
	FileSize  int64
	Timestamp int64 // ticks
}

// Encode writes r into a fresh RecordSize-byte buffer.
func (r Record) Encode() []byte {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Index))
	buf[4] = byte(r.Outcome)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(r.FileSize))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(r.Timestamp))
	return buf
}

// DecodeRecord reads a Record from exactly RecordSize bytes.
func DecodeRecord(buf []byte) (Record, error) {
	if len(buf) != RecordSize {
		return Record{}, fmt.Errorf("invalid record length %d: %w", len(buf), errs.ErrCheckpointCorrupt)
	}
	return Record{
		Index:     int32(binary.LittleEndian.Uint32(buf[0:4])),
		Outcome:   Outcome(buf[4]),
		FileSize:  int64(binary.LittleEndian.Uint64(buf[8:16])),
		Timestamp: int64(binary.LittleEndian.Uint64(buf[16:24])),
	}, nil
}

// alignUp8 rounds n up to the next multiple of 8.
func alignUp8(n int) int {
	return (n + 7) &^ 7
}
