// Package progress provides the sync progress data types and the single-slot
// publisher that fans the latest progress event out to observers.
// This file contains the event atoms.
package progress

import "time"

// ErrorKind classifies a failure reported on the progress stream.
type ErrorKind string

const (
	// UnavailableBackend is the default classification for any transport failure.
	UnavailableBackend ErrorKind = "UNAVAILABLE_BACKEND"

	// NoActiveConnections means the node answered but reported zero peers.
	NoActiveConnections ErrorKind = "NO_ACTIVE_CONNECTIONS"
)

// Snapshot is one sync progress report from the node.
type Snapshot struct {
	// Current is the node's current block height
	Current uint64 `json:"current"`

	// Highest is the highest block height known to the node
	Highest uint64 `json:"highest"`

	// Raw holds every field the node reported, including the ones above.
	// It is passed through untouched.
	Raw map[string]interface{} `json:"-"`
}

// Synced reports whether the node has caught up.
func (s Snapshot) Synced() bool {
	return s.Current == s.Highest
}

// Remaining returns the number of blocks left, or 0 if current is ahead.
func (s Snapshot) Remaining() uint64 {
	if s.Current >= s.Highest {
		return 0
	}
	return s.Highest - s.Current
}

// Percent returns sync completion in the range 0-100.
func (s Snapshot) Percent() float64 {
	if s.Highest == 0 || s.Current >= s.Highest {
		return 100
	}
	return float64(s.Current) / float64(s.Highest) * 100
}

// Event is the tagged union delivered to observers. Exactly one of
// Snapshot or Err is set.
type Event struct {
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Err      ErrorKind `json:"error,omitempty"`

	// At is when the event was published
	At time.Time `json:"at"`
}

// SnapshotEvent wraps a snapshot.
func SnapshotEvent(s Snapshot) Event {
	return Event{Snapshot: &s, At: time.Now()}
}

// ErrorEvent wraps an error kind.
func ErrorEvent(kind ErrorKind) Event {
	return Event{Err: kind, At: time.Now()}
}

// IsError reports whether the event carries an error.
func (e Event) IsError() bool {
	return e.Err != ""
}
