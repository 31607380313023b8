package syncx

import (
	"time"
)

// checkpointLayout is RFC3339 with microsecond precision. A checkpoint
// string totally orders server write events: every row whose
// server_timestamp is <= the checkpoint has been observable at the time the
// checkpoint was issued. Clients treat the value as opaque.
const checkpointLayout = "2006-01-02T15:04:05.999999Z07:00"

// FormatCheckpoint renders a server timestamp as an opaque checkpoint.
func FormatCheckpoint(t time.Time) string {
	return t.UTC().Format(checkpointLayout)
}

// ParseCheckpoint decodes a checkpoint previously returned by the server.
// Returns false on any malformed input.
func ParseCheckpoint(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// MaxTime returns the later of two instants.
func MaxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// NowCheckpoint is the checkpoint for the current wall clock.
func NowCheckpoint() string {
	return FormatCheckpoint(time.Now())
}
