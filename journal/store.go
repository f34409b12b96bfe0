package journal

import "context"

// EventStore is an append-only audit log. ReadAll returns events in the
// order they were appended; that order is authoritative.
type EventStore interface {
	Append(ctx context.Context, e Event) error
	ReadAll(ctx context.Context) ([]Event, error)
}

// SnapshotStore is an append-only snapshot log. ReadLatest returns the last
// snapshot written, or ok=false if there is none.
type SnapshotStore interface {
	Write(ctx context.Context, s LedgerSnapshot) error
	ReadLatest(ctx context.Context) (snap LedgerSnapshot, ok bool, err error)
}
