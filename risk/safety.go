package risk

import (
	"fmt"

	"github.com/ceerkle/dreichor-trading/broker"
	"github.com/ceerkle/dreichor-trading/ledger"
	"github.com/ceerkle/dreichor-trading/market"
	"github.com/ceerkle/dreichor-trading/strategy"
)

// Gates are supplied fresh every tick by an external policy source.
type Gates struct {
	HaltAll   bool `json:"haltAll"`
	BlockBuy  bool `json:"blockBuy"`
	ForceSell bool `json:"forceSell"`
}

// IntentGates narrows g to what intent creation consults.
func (g Gates) IntentGates() strategy.IntentGates {
	return strategy.IntentGates{BlockBuy: g.BlockBuy, ForceSell: g.ForceSell}
}

type VerdictType string

const (
	Allow     VerdictType = "ALLOW"
	BlockBuy  VerdictType = "BLOCK_BUY"
	ForceSell VerdictType = "FORCE_SELL"
	Halt      VerdictType = "HALT"
)

type Reason string

const (
	HaltAllActive       Reason = "HALT_ALL_ACTIVE"
	BuyBlocked          Reason = "BUY_BLOCKED"
	ForceSellActive     Reason = "FORCE_SELL_ACTIVE"
	PositionAlreadyOpen Reason = "POSITION_ALREADY_OPEN"
)

// Verdict is the safety result. Reason is empty exactly when Type is Allow.
type Verdict struct {
	Type   VerdictType `json:"type"`
	Reason Reason      `json:"reason,omitempty"`
}

// Blocks reports whether v counts as a block for decision memory.
func (v Verdict) Blocks() bool {
	return v.Type == BlockBuy || v.Type == Halt
}

type Input struct {
	Proposed strategy.Proposal
	Ledger   ledger.State
	Plane    broker.Plane
	Gates    Gates
	Now      market.LogicalTime
}

// Evaluate applies the safety rules in order and returns the first match.
func Evaluate(in Input) (Verdict, error) {
	if in.Ledger.Plane != in.Plane {
		return Verdict{}, fmt.Errorf("%w: safety plane %s, ledger plane %s", ledger.ErrPlaneMismatch, in.Plane, in.Ledger.Plane)
	}

	open := in.Ledger.HasOpenPosition()
	side := proposedSide(in.Proposed)

	switch {
	case in.Gates.HaltAll:
		// Sells are still allowed under a global halt.
		if side == market.Sell {
			return Verdict{Type: Allow}, nil
		}
		return Verdict{Type: Halt, Reason: HaltAllActive}, nil
	case in.Gates.ForceSell && open:
		return Verdict{Type: ForceSell, Reason: ForceSellActive}, nil
	case in.Gates.BlockBuy && side == market.Buy:
		return Verdict{Type: BlockBuy, Reason: BuyBlocked}, nil
	case side == market.Buy && open:
		return Verdict{Type: BlockBuy, Reason: PositionAlreadyOpen}, nil
	}
	return Verdict{Type: Allow}, nil
}

func proposedSide(p strategy.Proposal) market.Side {
	if i, ok := p.(strategy.Intent); ok {
		return i.Side
	}
	return ""
}
