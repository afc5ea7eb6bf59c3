// Package timeutil enforces UTC discipline for every persisted timestamp.
// Local-time conversion is presentation-only and never written back.
package timeutil

import "time"

// Layout is the wire format for persisted timestamps: RFC 3339 with
// nanosecond precision, always carrying an explicit offset.
const Layout = time.RFC3339Nano

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// Normalize converts t to UTC. All ordering and comparison logic operates
// on normalized values to avoid daylight-saving ambiguity.
func Normalize(t time.Time) time.Time {
	return t.UTC()
}

// Monotonic returns candidate (normalized) if it is strictly after prev,
// otherwise prev advanced by one nanosecond. Per-note updated_at values
// built through Monotonic never move backwards.
func Monotonic(prev, candidate time.Time) time.Time {
	c := candidate.UTC()
	if !c.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return c
}

// Format serializes t for storage or interchange.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse decodes a persisted timestamp and normalizes it to UTC.
// Accepts any RFC 3339 input, with or without fractional seconds.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
