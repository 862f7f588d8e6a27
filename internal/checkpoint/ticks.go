package checkpoint

import "time"

// unixEpochTicks is 1970-01-01T00:00:00Z in the header's tick
// representation: 100-nanosecond intervals since 0001-01-01T00:00:00Z.
const unixEpochTicks int64 = 621_355_968_000_000_000

// ToTicks converts t to the header's tick representation.
func ToTicks(t time.Time) int64 {
	t = t.UTC()
	return unixEpochTicks + t.Unix()*10_000_000 + int64(t.Nanosecond())/100
}

// FromTicks converts a header tick value back to a time.Time.
func FromTicks(ticks int64) time.Time {
	rel := ticks - unixEpochTicks
	sec, rem := rel/10_000_000, rel%10_000_000
	if rem < 0 {
		sec--
		rem += 10_000_000
	}
	return time.Unix(sec, rem*100).UTC()
}
