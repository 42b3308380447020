package karabo

import (
	"fmt"
	"strings"
	"time"
)

// Conversion factors between the wire unit (integer microseconds since
// the Unix epoch) and the storage pair (seconds, attoseconds).
const (
	MicrosPerSecond = uint64(1_000_000)
	AttosPerMicro   = uint64(1_000_000_000_000)
)

// Timestamp is a high-resolution instant: seconds since the Unix epoch
// plus an attosecond remainder, optionally tagged with an accelerator
// train id. The wire carries microseconds only; the sub-microsecond part
// of Frac is always zero for values that crossed the wire.
type Timestamp struct {
	Sec  uint64
	Frac uint64
	Tid  uint64
}

// FromMicros widens a microseconds-since-epoch value to (sec, frac).
// The conversion is exact; Micros inverts it.
func FromMicros(us uint64) Timestamp {
	return Timestamp{
		Sec:  us / MicrosPerSecond,
		Frac: (us % MicrosPerSecond) * AttosPerMicro,
	}
}

// Micros narrows the timestamp back to microseconds since the epoch.
// Attosecond precision below one microsecond is truncated.
func (t Timestamp) Micros() uint64 {
	return t.Sec*MicrosPerSecond + t.Frac/AttosPerMicro
}

// Time converts to a time.Time with microsecond precision.
func (t Timestamp) Time() time.Time {
	nanos := int64(t.Frac/AttosPerMicro) * int64(time.Microsecond)
	return time.Unix(int64(t.Sec), nanos).UTC()
}

// WithTid returns a copy carrying the given train id.
func (t Timestamp) WithTid(tid uint64) Timestamp {
	t.Tid = tid
	return t
}

// ISO8601 formats the timestamp as an ISO 8601 UTC string with
// microsecond fractional seconds.
func (t Timestamp) ISO8601() string {
	return t.Time().Format("2006-01-02T15:04:05.000000Z")
}

// iso8601Layouts lists the accepted time-string shapes, most common first.
var iso8601Layouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"20060102T150405.999999999",
	"20060102T150405",
}

// ParseISO8601 parses an ISO 8601 time string with optional fractional
// seconds and optional zone designator. Zone-less strings are read as UTC.
func ParseISO8601(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range iso8601Layouts {
		parsed, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			continue
		}
		us := uint64(parsed.UnixMicro())
		return FromMicros(us), nil
	}
	return Timestamp{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

// Before reports whether t is strictly earlier than other. Train ids do
// not participate in ordering.
func (t Timestamp) Before(other Timestamp) bool {
	if t.Sec != other.Sec {
		return t.Sec < other.Sec
	}
	return t.Frac < other.Frac
}
