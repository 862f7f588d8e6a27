package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewStateInitialisesBitmapAndTicks(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewState("session-1", "/src", "/dst/{year}/{name}", CurrentVersion, start, [16]byte{1}, [16]byte{2}, 10, 2048)

	assert.Equal(t, "session-1", s.SessionID)
	assert.Equal(t, int32(10), s.TotalFiles)
	assert.NotNil(t, s.Bitmap)
	assert.Equal(t, 0, s.Bitmap.Count())
	assert.WithinDuration(t, start, s.LastUpdated(), time.Microsecond)
}

func TestStateRecordErrorAndErrorsReturnsACopy(t *testing.T) {
	s := NewState("s", "/src", "/dst", CurrentVersion, time.Now(), [16]byte{}, [16]byte{}, 1, 0)
	s.RecordError(3, "disk full")
	s.RecordError(7, "permission denied")

	errs := s.Errors()
	assert.Equal(t, map[int32]string{3: "disk full", 7: "permission denied"}, errs)

	errs[99] = "mutated copy"
	assert.NotContains(t, s.Errors(), int32(99), "Errors() must return a defensive copy")
}

func TestStateTouchOnlyAdvances(t *testing.T) {
	s := NewState("s", "/src", "/dst", CurrentVersion, time.Now(), [16]byte{}, [16]byte{}, 1, 0)
	later := s.LastUpdated().Add(time.Hour)
	s.Touch(later)
	assert.WithinDuration(t, later, s.LastUpdated(), time.Microsecond)

	earlier := later.Add(-2 * time.Hour)
	s.Touch(earlier)
	assert.WithinDuration(t, later, s.LastUpdated(), time.Microsecond, "Touch must not move time backwards")
}
