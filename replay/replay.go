// Package replay rebuilds derived state from the persisted logs and serves
// read-only views over them.
//
// Decision memory comes only from folding the audit log in stored order.
// The shadow ledger comes only from the latest snapshot; execution facts in
// the audit log are never folded back into it, so a log without snapshots
// restores to an empty ledger.
package replay

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ceerkle/dreichor-trading/broker"
	"github.com/ceerkle/dreichor-trading/journal"
	"github.com/ceerkle/dreichor-trading/ledger"
	"github.com/ceerkle/dreichor-trading/market"
	"github.com/ceerkle/dreichor-trading/memory"
)

var log = logrus.WithField("component", "replay")

// Memory folds every stored event into an empty decision memory.
func Memory(ctx context.Context, events journal.EventStore) (memory.State, error) {
	all, err := events.ReadAll(ctx)
	if err != nil {
		return memory.State{}, fmt.Errorf("read audit events: %w", err)
	}
	return MemoryFrom(all)
}

// MemoryFrom folds events, in the given order, into an empty decision memory.
func MemoryFrom(events []journal.Event) (memory.State, error) {
	s, err := memory.Fold(memory.Empty(), events)
	if err != nil {
		return memory.State{}, fmt.Errorf("replay decision memory: %w", err)
	}
	return s, nil
}

// Ledger restores the ledger of plane from the latest snapshot. Without a
// snapshot the ledger is empty.
func Ledger(ctx context.Context, snaps journal.SnapshotStore, plane broker.Plane) (ledger.State, error) {
	snap, ok, err := snaps.ReadLatest(ctx)
	if err != nil {
		return ledger.State{}, fmt.Errorf("read latest snapshot: %w", err)
	}
	if !ok {
		return ledger.New(plane), nil
	}
	if snap.Plane != plane {
		return ledger.State{}, fmt.Errorf("%w: snapshot %s is %s, want %s",
			ledger.ErrPlaneMismatch, snap.SnapshotID, snap.Plane, plane)
	}
	return snap.Ledger(), nil
}

// State is everything a runner needs to continue after a restart.
type State struct {
	Memory   memory.State
	Ledger   ledger.State
	Events   int
	Snapshot *journal.LedgerSnapshot
}

func Restore(ctx context.Context, events journal.EventStore, snaps journal.SnapshotStore, plane broker.Plane) (State, error) {
	all, err := events.ReadAll(ctx)
	if err != nil {
		return State{}, fmt.Errorf("read audit events: %w", err)
	}
	mem, err := MemoryFrom(all)
	if err != nil {
		return State{}, err
	}

	snap, ok, err := snaps.ReadLatest(ctx)
	if err != nil {
		return State{}, fmt.Errorf("read latest snapshot: %w", err)
	}
	st := State{Memory: mem, Ledger: ledger.New(plane), Events: len(all)}
	if ok {
		if snap.Plane != plane {
			return State{}, fmt.Errorf("%w: snapshot %s is %s, want %s",
				ledger.ErrPlaneMismatch, snap.SnapshotID, snap.Plane, plane)
		}
		st.Ledger = snap.Ledger()
		st.Snapshot = &snap
	}

	log.WithFields(logrus.Fields{
		"events":    st.Events,
		"decisions": len(mem.Entries),
		"snapshot":  ok,
		"plane":     plane,
	}).Debug("restored state")
	return st, nil
}

// Tail returns the last n events. n <= 0 returns all of them.
func Tail(events []journal.Event, n int) []journal.Event {
	if n <= 0 || n >= len(events) {
		return events
	}
	return events[len(events)-n:]
}

type Summary struct {
	TotalCount      int                       `json:"total_count"`
	CountsByType    map[journal.EventType]int `json:"counts_by_type"`
	LastEventID     *market.UUID              `json:"last_event_id"`
	LastLogicalTime *market.LogicalTime       `json:"last_logical_time"`
}

// Summarize counts events by type and reports the last one in log order.
func Summarize(events []journal.Event) Summary {
	s := Summary{CountsByType: map[journal.EventType]int{}}
	for _, e := range events {
		h := e.Base()
		s.TotalCount++
		s.CountsByType[h.Type]++
		id, t := h.ID, h.LogicalTime
		s.LastEventID = &id
		s.LastLogicalTime = &t
	}
	return s
}
