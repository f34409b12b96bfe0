package journal

import (
	"context"
	"sync"
)

// MemoryEvents keeps the audit log in process memory.
type MemoryEvents struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEvents() *MemoryEvents { return &MemoryEvents{} }

func (m *MemoryEvents) Append(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *MemoryEvents) ReadAll(ctx context.Context) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out, nil
}

// MemorySnapshots keeps ledger snapshots in process memory.
type MemorySnapshots struct {
	mu    sync.Mutex
	snaps []LedgerSnapshot
}

func NewMemorySnapshots() *MemorySnapshots { return &MemorySnapshots{} }

func (m *MemorySnapshots) Write(ctx context.Context, s LedgerSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, s)
	return nil
}

func (m *MemorySnapshots) ReadLatest(ctx context.Context) (LedgerSnapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return LedgerSnapshot{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snaps) == 0 {
		return LedgerSnapshot{}, false, nil
	}
	return m.snaps[len(m.snaps)-1], true, nil
}

// Len reports how many snapshots were written.
func (m *MemorySnapshots) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snaps)
}
