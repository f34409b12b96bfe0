// Package memory aggregates audit facts into per-decision statistics.
// It is observational only: nothing in it may feed back into a decision.
package memory

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ceerkle/dreichor-trading/broker"
	"github.com/ceerkle/dreichor-trading/journal"
	"github.com/ceerkle/dreichor-trading/market"
	"github.com/ceerkle/dreichor-trading/risk"
)

const Version = 1

var (
	ErrMissingDecisionID = errors.New("audit event without decisionId is invalid for decision memory")
	ErrUnknownDecision   = errors.New("referenced decisionId has no entry")
)

type ExecutionSummary struct {
	Observed   int           `json:"executionsObserved"`
	Filled     int           `json:"filledCount"`
	Failed     int           `json:"failedCount"`
	LastStatus broker.Status `json:"lastExecutionStatus,omitempty"`
}

type SafetySummary struct {
	Observed   int           `json:"evaluationsObserved"`
	Blocked    int           `json:"blockedCount"`
	ForcedSell int           `json:"forcedSellCount"`
	LastResult *risk.Verdict `json:"lastSafetyResult,omitempty"`
}

type CategoryCounts struct {
	DecisionQuality int `json:"DECISION_QUALITY"`
	RiskComfort     int `json:"RISK_COMFORT"`
	SystemBehavior  int `json:"SYSTEM_BEHAVIOR"`
}

// Of returns the counter for cat.
func (c CategoryCounts) Of(cat journal.FeedbackCategory) int {
	switch cat {
	case journal.DecisionQuality:
		return c.DecisionQuality
	case journal.RiskComfort:
		return c.RiskComfort
	case journal.SystemBehavior:
		return c.SystemBehavior
	}
	return 0
}

type FeedbackSummary struct {
	Count      int            `json:"feedbackCount"`
	Categories CategoryCounts `json:"categories"`
}

// Entry is the aggregate for one decision. It is created by the first
// DECISION_EVALUATED fact for its id and only ever updated afterwards.
type Entry struct {
	DecisionID    market.UUID          `json:"decisionId"`
	DecisionClass market.DecisionClass `json:"decisionClass"`
	FirstSeen     market.LogicalTime   `json:"firstSeenLogicalTime"`
	Execution     ExecutionSummary     `json:"execution"`
	Safety        SafetySummary        `json:"safety"`
	Feedback      FeedbackSummary      `json:"feedback"`
}

// State is the reducer state. Its maps are never written after a State
// has been returned; every change works on fresh copies.
type State struct {
	Version int                   `json:"version"`
	Entries map[market.UUID]Entry `json:"entries"`
	Seen    map[market.UUID]bool  `json:"seenInputIds"`
}

func Empty() State {
	return State{Version: Version, Entries: map[market.UUID]Entry{}, Seen: map[market.UUID]bool{}}
}

func (s State) Has(input market.UUID) bool { return s.Seen[input] }

func (s State) Lookup(decision market.UUID) (Entry, bool) {
	e, ok := s.Entries[decision]
	return e, ok
}

// Sorted returns the entries by first-seen time, then id.
func (s State) Sorted() []Entry {
	out := make([]Entry, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstSeen != out[j].FirstSeen {
			return out[i].FirstSeen < out[j].FirstSeen
		}
		return out[i].DecisionID < out[j].DecisionID
	})
	return out
}

func (s State) knows(decision market.UUID) bool {
	_, ok := s.Entries[decision]
	return ok
}

func (s State) clone() State {
	next := State{
		Version: Version,
		Entries: make(map[market.UUID]Entry, len(s.Entries)+1),
		Seen:    make(map[market.UUID]bool, len(s.Seen)+8),
	}
	for k, v := range s.Entries {
		next.Entries[k] = v
	}
	for k := range s.Seen {
		next.Seen[k] = true
	}
	return next
}

// Reduce applies one audit event. An event whose id was already applied
// returns s unchanged.
func Reduce(s State, e journal.Event) (State, error) {
	return Fold(s, []journal.Event{e})
}

// Fold applies events in order. On error s is returned with the error and
// no partial result escapes.
func Fold(s State, events []journal.Event) (State, error) {
	next := s
	owned := false
	for _, e := range events {
		if next.Has(e.Base().ID) {
			continue
		}
		if !owned {
			next = s.clone()
			owned = true
		}
		if err := next.apply(e); err != nil {
			return s, fmt.Errorf("event %s (%s): %w", e.Base().ID, e.Base().Type, err)
		}
	}
	return next, nil
}

// ReduceFeedback applies a feedback record. Only DECISION targets can be
// aggregated.
func ReduceFeedback(s State, rec journal.FeedbackRecord) (State, error) {
	if s.Has(rec.ID) {
		return s, nil
	}
	if rec.Target.Type != journal.TargetDecision {
		return s, fmt.Errorf("%w: decision memory needs a DECISION target, got %s",
			journal.ErrInvalidFeedbackTarget, rec.Target.Type)
	}
	next := s.clone()
	if err := next.applyFeedback(rec); err != nil {
		return s, fmt.Errorf("feedback %s: %w", rec.ID, err)
	}
	return next, nil
}

// apply mutates s, which must be an owned clone.
func (s *State) apply(e journal.Event) error {
	id := e.Base().ID

	switch v := e.(type) {
	case journal.UserFeedbackRecorded:
		// Feedback on executions or time windows is logged but not aggregated.
		// Feedback on a decision this state never saw is kept in the log only.
		if v.Target.Type != journal.TargetDecision || !s.knows(v.Target.DecisionID) {
			s.Seen[id] = true
			return nil
		}
		return s.applyFeedback(v.Record())

	case journal.DecisionEvaluated:
		if v.DecisionID == "" {
			return ErrMissingDecisionID
		}
		if _, ok := s.Entries[v.DecisionID]; !ok {
			s.Entries[v.DecisionID] = Entry{
				DecisionID:    v.DecisionID,
				DecisionClass: v.DecisionClass,
				FirstSeen:     v.LogicalTime,
			}
		}
		s.Seen[id] = true
		return nil
	}

	ref, ok := journal.DecisionRef(e)
	if !ok {
		return ErrMissingDecisionID
	}
	entry, ok := s.Entries[ref]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDecision, ref)
	}

	switch v := e.(type) {
	case journal.ExecutionOutcomeRecorded:
		x := &entry.Execution
		x.Observed++
		switch v.Status {
		case broker.Filled:
			x.Filled++
		case broker.Failed:
			x.Failed++
		}
		x.LastStatus = v.Status
	case journal.SafetyEvaluated:
		x := &entry.Safety
		x.Observed++
		switch v.Result.Type {
		case risk.BlockBuy, risk.Halt:
			x.Blocked++
		case risk.ForceSell:
			x.ForcedSell++
		}
		result := v.Result
		x.LastResult = &result
	}
	// EXECUTION_ATTEMPTED, ORDER_INTENT_* and LEDGER_UPDATED are only marked seen.

	s.Entries[ref] = entry
	s.Seen[id] = true
	return nil
}

func (s *State) applyFeedback(rec journal.FeedbackRecord) error {
	entry, ok := s.Entries[rec.Target.DecisionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDecision, rec.Target.DecisionID)
	}
	f := &entry.Feedback
	f.Count++
	switch rec.Category {
	case journal.DecisionQuality:
		f.Categories.DecisionQuality++
	case journal.RiskComfort:
		f.Categories.RiskComfort++
	case journal.SystemBehavior:
		f.Categories.SystemBehavior++
	default:
		return fmt.Errorf("%w: feedback category %q", market.ErrInvalidValue, rec.Category)
	}
	s.Entries[rec.Target.DecisionID] = entry
	s.Seen[rec.ID] = true
	return nil
}
