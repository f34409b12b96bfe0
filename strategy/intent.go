package strategy

import (
	"github.com/ceerkle/dreichor-trading/internal/id"
	"github.com/ceerkle/dreichor-trading/market"
)

// NoIntentReason explains why a tick produced no order.
type NoIntentReason string

const (
	LifecycleBlocked    NoIntentReason = "LIFECYCLE_BLOCKED"
	AttentionNegative   NoIntentReason = "ATTENTION_NEGATIVE"
	HoldTimeActive      NoIntentReason = "HOLD_TIME_ACTIVE"
	CooldownActive      NoIntentReason = "COOLDOWN_ACTIVE"
	SafetyBlocked       NoIntentReason = "SAFETY_BLOCKED"
	MissingTargetMarket NoIntentReason = "MISSING_TARGET_MARKET"
	PreconditionsNotMet NoIntentReason = "PRECONDITIONS_NOT_MET"
)

// ReasonCode maps r onto the audit reason codes. Several reasons collapse
// to UNKNOWN; consumers are written against the collapsed set.
func (r NoIntentReason) ReasonCode() market.ReasonCode {
	switch r {
	case AttentionNegative:
		return market.ReasonAttentionInsufficient
	case HoldTimeActive:
		return market.ReasonHoldTimeActive
	case CooldownActive:
		return market.ReasonCooldownActive
	case SafetyBlocked:
		return market.ReasonSafetyTriggered
	case LifecycleBlocked, MissingTargetMarket, PreconditionsNotMet:
		return market.ReasonUnknown
	}
	return market.ReasonUnknown
}

// Proposal is the result of intent creation: an Intent or a NoIntent.
type Proposal interface {
	isProposal()
}

// Intent wraps a real order intent.
type Intent struct {
	market.OrderIntent
}

type NoIntent struct {
	Reason NoIntentReason
}

func (Intent) isProposal()   {}
func (NoIntent) isProposal() {}

// IntentGates are the safety gates intent creation consults.
type IntentGates struct {
	BlockBuy  bool
	ForceSell bool
}

// IntentInput bundles everything CreateOrderIntent reads.
type IntentInput struct {
	InstanceID   market.UUID
	Lifecycle    Lifecycle
	Attention    AttentionDecision
	Pool         ParameterPool
	TargetMarket *market.MarketID
	Gates        IntentGates
	Now          market.LogicalTime
}

// CreateOrderIntent derives at most one order intent for the tick.
// A held position selects the sell path, otherwise the buy path runs.
func CreateOrderIntent(in IntentInput) Proposal {
	if pos, held := in.Lifecycle.HeldPosition(); held {
		return sellPath(in, pos)
	}
	return buyPath(in)
}

func sellPath(in IntentInput, pos market.Position) Proposal {
	holding, ok := in.Lifecycle.State.(Holding)
	if !ok {
		// Exit already in progress.
		return NoIntent{LifecycleBlocked}
	}
	if !in.Attention.Better() && !in.Gates.ForceSell {
		return NoIntent{AttentionNegative}
	}
	// Force sell bypasses hold time.
	if !in.Gates.ForceSell && in.Now < holding.EnteredAt.Add(in.Lifecycle.Config.MinimumHoldTime) {
		return NoIntent{HoldTimeActive}
	}
	return Intent{market.OrderIntent{
		ID:         id.OrderIntent(in.InstanceID, pos.MarketID, market.Sell, in.Now),
		Side:       market.Sell,
		MarketID:   pos.MarketID,
		Allocation: pos.Size,
	}}
}

func buyPath(in IntentInput) Proposal {
	if c, ok := in.Lifecycle.State.(Cooldown); ok && in.Now < c.Until {
		return NoIntent{CooldownActive}
	}
	if _, ok := in.Lifecycle.State.(Evaluation); !ok {
		return NoIntent{LifecycleBlocked}
	}
	if !in.Attention.Better() {
		return NoIntent{AttentionNegative}
	}
	if _, ok := in.Lifecycle.State.(Entry); ok {
		return NoIntent{PreconditionsNotMet}
	}
	if in.Gates.BlockBuy {
		return NoIntent{SafetyBlocked}
	}
	if in.TargetMarket == nil {
		return NoIntent{MissingTargetMarket}
	}
	m := *in.TargetMarket
	return Intent{market.OrderIntent{
		ID:         id.OrderIntent(in.InstanceID, m, market.Buy, in.Now),
		Side:       market.Buy,
		MarketID:   m,
		Allocation: in.Pool.Allocation(),
	}}
}
