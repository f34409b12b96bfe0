package broker

import (
	"fmt"

	"github.com/ceerkle/dreichor-trading/internal/id"
	"github.com/ceerkle/dreichor-trading/market"
)

// Plane is an execution venue. Ledgers and gates are scoped per plane.
type Plane string

const (
	Paper Plane = "PAPER"
	Live  Plane = "LIVE"
)

func ParsePlane(s string) (Plane, error) {
	switch Plane(s) {
	case Paper:
		return Paper, nil
	case Live:
		return Live, nil
	}
	return "", fmt.Errorf("%w: execution plane %q", market.ErrInvalidValue, s)
}

type Status string

const (
	Filled          Status = "FILLED"
	PartiallyFilled Status = "PARTIALLY_FILLED"
	Failed          Status = "FAILED"
)

type ReasonCode string

const (
	NotAvailable ReasonCode = "EXECUTION_NOT_AVAILABLE"
	Rejected     ReasonCode = "EXECUTION_REJECTED"
)

// Outcome is the result of executing one order intent.
type Outcome struct {
	ExecutionID    market.UUID        `json:"executionId"`
	OrderIntentID  market.UUID        `json:"orderIntentId"`
	Plane          Plane              `json:"plane"`
	Status         Status             `json:"status"`
	Side           market.Side        `json:"side"`
	MarketID       market.MarketID    `json:"marketId"`
	FilledQuantity market.Decimal     `json:"filledQuantity"`
	LogicalTime    market.LogicalTime `json:"logicalTime"`
	Reason         ReasonCode         `json:"reason,omitempty"`
}

// Executor turns an intent into an outcome. Implementations must be pure:
// the same intent and time always give the same outcome.
type Executor interface {
	Plane() Plane
	Execute(intent market.OrderIntent, t market.LogicalTime) Outcome
}

// ExecutionID is a function of (intent, plane, time) only.
func ExecutionID(intent market.UUID, p Plane, t market.LogicalTime) market.UUID {
	return id.Execution(intent, string(p), t)
}

// fill is the deterministic full fill both built-in planes produce.
func fill(p Plane, intent market.OrderIntent, t market.LogicalTime) Outcome {
	return Outcome{
		ExecutionID:    ExecutionID(intent.ID, p, t),
		OrderIntentID:  intent.ID,
		Plane:          p,
		Status:         Filled,
		Side:           intent.Side,
		MarketID:       intent.MarketID,
		FilledQuantity: intent.Allocation,
		LogicalTime:    t,
	}
}

// Executors indexes executors by plane.
type Executors map[Plane]Executor

// DefaultExecutors registers the paper executor and the live stub.
func DefaultExecutors() Executors {
	return Executors{
		Paper: PaperExecutor{},
		Live:  LiveExecutor{},
	}
}
