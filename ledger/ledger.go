// Package ledger derives per-market position state from execution outcomes.
// It is bookkeeping only, never an authoritative balance.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ceerkle/dreichor-trading/broker"
	"github.com/ceerkle/dreichor-trading/market"
)

// ErrPlaneMismatch is returned when an outcome or request targets a
// different plane than the ledger.
var ErrPlaneMismatch = errors.New("execution plane mismatch")

type Position struct {
	MarketID        market.MarketID `json:"marketId"`
	Quantity        market.Decimal  `json:"quantity"`
	IsOpen          bool            `json:"isOpen"`
	LastExecutionID market.UUID     `json:"lastExecutionId"`
}

// State is the ledger of one plane. Positions is never modified in place;
// every change produces a fresh map.
type State struct {
	Plane     broker.Plane                 `json:"plane"`
	Positions map[market.MarketID]Position `json:"positions"`
}

func New(plane broker.Plane) State {
	return State{Plane: plane, Positions: map[market.MarketID]Position{}}
}

// HasOpenPosition reports whether any market is open.
func (s State) HasOpenPosition() bool {
	for _, p := range s.Positions {
		if p.IsOpen {
			return true
		}
	}
	return false
}

// MarketIDs returns the ledger keys in sorted order.
func (s State) MarketIDs() []market.MarketID {
	ids := make([]market.MarketID, 0, len(s.Positions))
	for k := range s.Positions {
		ids = append(ids, k)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Canonical renders positions in key order with a fixed field order.
func (s State) Canonical() string {
	parts := make([]string, 0, len(s.Positions))
	for _, k := range s.MarketIDs() {
		p := s.Positions[k]
		parts = append(parts, fmt.Sprintf("%s:{marketId=%s,quantity=%s,isOpen=%s,lastExecutionId=%s}",
			k, p.MarketID, p.Quantity, strconv.FormatBool(p.IsOpen), p.LastExecutionID))
	}
	return strings.Join(parts, "|")
}

// OpenQuantity sums the quantities of open positions. It is a read-side
// view and never feeds a decision.
func (s State) OpenQuantity() (decimal.Decimal, error) {
	total := decimal.Zero
	for _, id := range s.MarketIDs() {
		p := s.Positions[id]
		if !p.IsOpen {
			continue
		}
		q, err := p.Quantity.Dec()
		if err != nil {
			return decimal.Zero, fmt.Errorf("market %s: %w", id, err)
		}
		total = total.Add(q)
	}
	return total, nil
}

type Deviation string

const (
	DeviationNone   Deviation = "NONE"
	ExecutionFailed Deviation = "EXECUTION_FAILED"
)

type Update struct {
	Next      State
	Deviation Deviation
}

// Apply folds one outcome into s. Failed and partially filled outcomes
// return s itself.
func Apply(s State, o broker.Outcome) (Update, error) {
	if o.Plane != s.Plane {
		return Update{}, fmt.Errorf("%w: outcome plane %s, ledger plane %s", ErrPlaneMismatch, o.Plane, s.Plane)
	}

	switch o.Status {
	case broker.Failed:
		return Update{Next: s, Deviation: ExecutionFailed}, nil
	case broker.PartiallyFilled:
		return Update{Next: s, Deviation: DeviationNone}, nil
	case broker.Filled:
	default:
		return Update{}, fmt.Errorf("%w: execution status %q", market.ErrInvalidValue, o.Status)
	}

	next := Position{
		MarketID:        o.MarketID,
		Quantity:        o.FilledQuantity,
		IsOpen:          true,
		LastExecutionID: o.ExecutionID,
	}
	if o.Side == market.Sell {
		next.Quantity = market.Zero
		next.IsOpen = false
	}
	return Update{Next: s.with(next), Deviation: DeviationNone}, nil
}

// ApplyAll folds outcomes in order from s.
func ApplyAll(s State, outcomes []broker.Outcome) (State, error) {
	for _, o := range outcomes {
		u, err := Apply(s, o)
		if err != nil {
			return s, err
		}
		s = u.Next
	}
	return s, nil
}

func (s State) with(p Position) State {
	positions := make(map[market.MarketID]Position, len(s.Positions)+1)
	for k, v := range s.Positions {
		positions[k] = v
	}
	positions[p.MarketID] = p
	return State{Plane: s.Plane, Positions: positions}
}
