// strategy/lifecycle.go
package strategy

import (
	"errors"
	"fmt"

	"github.com/ceerkle/dreichor-trading/market"
)

var (
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	ErrInvariant         = errors.New("lifecycle invariant violated")
)

// LifecycleConfig holds the per-instance timing rules, in logical time steps.
type LifecycleConfig struct {
	MinimumHoldTime  uint64 `json:"minimumHoldTime" yaml:"minimum_hold_time"`
	CooldownDuration uint64 `json:"cooldownDuration" yaml:"cooldown_duration"`
}

type StateTag string

const (
	TagIdle               StateTag = "IDLE"
	TagEvaluation         StateTag = "EVALUATION"
	TagEntry              StateTag = "ENTRY"
	TagHolding            StateTag = "HOLDING"
	TagExit               StateTag = "EXIT"
	TagCooldown           StateTag = "COOLDOWN"
	TagReentryEligibility StateTag = "REENTRY_ELIGIBILITY"
)

// State is one of Idle, Evaluation, Entry, Holding, Exit, Cooldown or
// ReentryEligibility. The set is closed.
type State interface {
	Tag() StateTag
	isState()
}

type ExitReason string

const (
	RotationSell ExitReason = "ROTATION_SELL"
	SafetySell   ExitReason = "SAFETY_SELL"
)

type Idle struct{}

type Evaluation struct{}

type Entry struct {
	BuyIntentID market.UUID
}

type Holding struct {
	Position  market.Position
	EnteredAt market.LogicalTime
}

type Exit struct {
	Position     market.Position
	EnteredAt    market.LogicalTime
	Reason       ExitReason
	SellIntentID market.UUID
}

type Cooldown struct {
	Until market.LogicalTime
}

type ReentryEligibility struct{}

func (Idle) Tag() StateTag               { return TagIdle }
func (Evaluation) Tag() StateTag         { return TagEvaluation }
func (Entry) Tag() StateTag              { return TagEntry }
func (Holding) Tag() StateTag            { return TagHolding }
func (Exit) Tag() StateTag               { return TagExit }
func (Cooldown) Tag() StateTag           { return TagCooldown }
func (ReentryEligibility) Tag() StateTag { return TagReentryEligibility }

func (Idle) isState()               {}
func (Evaluation) isState()         {}
func (Entry) isState()              {}
func (Holding) isState()            {}
func (Exit) isState()               {}
func (Cooldown) isState()           {}
func (ReentryEligibility) isState() {}

// Lifecycle is the position state machine of one strategy instance.
// It is a value: Transition returns a new Lifecycle and never mutates its input.
type Lifecycle struct {
	Config LifecycleConfig
	State  State
}

// NewLifecycle starts an instance in Idle.
func NewLifecycle(cfg LifecycleConfig) Lifecycle {
	return Lifecycle{Config: cfg, State: Idle{}}
}

// HeldPosition returns the open position in Holding or Exit.
func (l Lifecycle) HeldPosition() (market.Position, bool) {
	switch s := l.State.(type) {
	case Holding:
		return s.Position, true
	case Exit:
		return s.Position, true
	}
	return market.Position{}, false
}

type EventKind string

const (
	KindMetaTriggerEvaluation      EventKind = "META_TRIGGER_EVALUATION"
	KindMetaTriggerIdle            EventKind = "META_TRIGGER_IDLE"
	KindEvaluationNoAction         EventKind = "EVALUATION_NO_ACTION"
	KindEvaluationBuyIntentCreated EventKind = "EVALUATION_BUY_INTENT_CREATED"
	KindBuyExecutionSucceeded      EventKind = "BUY_EXECUTION_SUCCEEDED"
	KindBuyExecutionFailed         EventKind = "BUY_EXECUTION_FAILED"
	KindRequestRotationExit        EventKind = "REQUEST_ROTATION_EXIT"
	KindRequestSafetyExit          EventKind = "REQUEST_SAFETY_EXIT"
	KindSellExecutionSucceeded     EventKind = "SELL_EXECUTION_SUCCEEDED"
	KindSellExecutionFailed        EventKind = "SELL_EXECUTION_FAILED"
	KindLogicalTimeAdvanced        EventKind = "LOGICAL_TIME_ADVANCED"
)

// Event drives Transition. The set is closed.
type Event interface {
	Kind() EventKind
	isEvent()
}

type MetaTriggerEvaluation struct{}

type MetaTriggerIdle struct{}

type EvaluationNoAction struct{}

type EvaluationBuyIntentCreated struct {
	BuyIntentID market.UUID
}

type BuyExecutionSucceeded struct {
	Position market.Position
	Now      market.LogicalTime
}

type BuyExecutionFailed struct{}

type RequestRotationExit struct {
	SellIntentID market.UUID
	Now          market.LogicalTime
}

// RequestSafetyExit interrupts Holding or Exit regardless of hold time.
type RequestSafetyExit struct {
	SellIntentID market.UUID
}

type SellExecutionSucceeded struct {
	Now market.LogicalTime
}

type SellExecutionFailed struct{}

type LogicalTimeAdvanced struct {
	Now market.LogicalTime
}

func (MetaTriggerEvaluation) Kind() EventKind      { return KindMetaTriggerEvaluation }
func (MetaTriggerIdle) Kind() EventKind            { return KindMetaTriggerIdle }
func (EvaluationNoAction) Kind() EventKind         { return KindEvaluationNoAction }
func (EvaluationBuyIntentCreated) Kind() EventKind { return KindEvaluationBuyIntentCreated }
func (BuyExecutionSucceeded) Kind() EventKind      { return KindBuyExecutionSucceeded }
func (BuyExecutionFailed) Kind() EventKind         { return KindBuyExecutionFailed }
func (RequestRotationExit) Kind() EventKind        { return KindRequestRotationExit }
func (RequestSafetyExit) Kind() EventKind          { return KindRequestSafetyExit }
func (SellExecutionSucceeded) Kind() EventKind     { return KindSellExecutionSucceeded }
func (SellExecutionFailed) Kind() EventKind        { return KindSellExecutionFailed }
func (LogicalTimeAdvanced) Kind() EventKind        { return KindLogicalTimeAdvanced }

func (MetaTriggerEvaluation) isEvent()      {}
func (MetaTriggerIdle) isEvent()            {}
func (EvaluationNoAction) isEvent()         {}
func (EvaluationBuyIntentCreated) isEvent() {}
func (BuyExecutionSucceeded) isEvent()      {}
func (BuyExecutionFailed) isEvent()         {}
func (RequestRotationExit) isEvent()        {}
func (RequestSafetyExit) isEvent()          {}
func (SellExecutionSucceeded) isEvent()     {}
func (SellExecutionFailed) isEvent()        {}
func (LogicalTimeAdvanced) isEvent()        {}

// InvalidTransitionError names the state and the rejected event.
type InvalidTransitionError struct {
	State StateTag
	Event EventKind
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("Invalid transition: state=%s event=%s", e.State, e.Event)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// Transition applies ev to l. Invariants are checked on the result.
func Transition(l Lifecycle, ev Event) (Lifecycle, error) {
	next, err := apply(l, ev)
	if err != nil {
		return l, err
	}
	if err := CheckInvariants(next); err != nil {
		return l, err
	}
	return next, nil
}

func apply(l Lifecycle, ev Event) (Lifecycle, error) {
	cfg := l.Config

	// Interrupts are handled ahead of the per-state tables.
	switch e := ev.(type) {
	case RequestSafetyExit:
		switch s := l.State.(type) {
		case Holding:
			return Lifecycle{cfg, Exit{
				Position:     s.Position,
				EnteredAt:    s.EnteredAt,
				Reason:       SafetySell,
				SellIntentID: e.SellIntentID,
			}}, nil
		case Exit:
			s.Reason = SafetySell
			return Lifecycle{cfg, s}, nil
		}
		return l, nil
	case LogicalTimeAdvanced:
		if s, ok := l.State.(Cooldown); ok && e.Now >= s.Until {
			return Lifecycle{cfg, ReentryEligibility{}}, nil
		}
		return l, nil
	}

	switch s := l.State.(type) {
	case Idle:
		if _, ok := ev.(MetaTriggerEvaluation); ok {
			return Lifecycle{cfg, Evaluation{}}, nil
		}

	case Evaluation:
		switch e := ev.(type) {
		case EvaluationNoAction:
			return Lifecycle{cfg, Idle{}}, nil
		case EvaluationBuyIntentCreated:
			return Lifecycle{cfg, Entry{BuyIntentID: e.BuyIntentID}}, nil
		}

	case Entry:
		switch e := ev.(type) {
		case BuyExecutionFailed:
			return Lifecycle{cfg, Idle{}}, nil
		case BuyExecutionSucceeded:
			return Lifecycle{cfg, Holding{Position: e.Position, EnteredAt: e.Now}}, nil
		}

	case Holding:
		if e, ok := ev.(RequestRotationExit); ok {
			if e.Now < s.EnteredAt.Add(cfg.MinimumHoldTime) {
				return l, nil
			}
			return Lifecycle{cfg, Exit{
				Position:     s.Position,
				EnteredAt:    s.EnteredAt,
				Reason:       RotationSell,
				SellIntentID: e.SellIntentID,
			}}, nil
		}

	case Exit:
		switch e := ev.(type) {
		case SellExecutionFailed:
			return Lifecycle{cfg, Holding{Position: s.Position, EnteredAt: s.EnteredAt}}, nil
		case SellExecutionSucceeded:
			return Lifecycle{cfg, Cooldown{Until: e.Now.Add(cfg.CooldownDuration)}}, nil
		}

	case Cooldown:
		// Only LogicalTimeAdvanced is accepted while cooling down.

	case ReentryEligibility:
		switch ev.(type) {
		case MetaTriggerEvaluation:
			return Lifecycle{cfg, Evaluation{}}, nil
		case MetaTriggerIdle:
			return Lifecycle{cfg, Idle{}}, nil
		}

	default:
		return l, fmt.Errorf("%w: unknown state %T", ErrInvariant, l.State)
	}

	return l, &InvalidTransitionError{State: l.State.Tag(), Event: ev.Kind()}
}

// CheckInvariants verifies the structural rules of l.
func CheckInvariants(l Lifecycle) error {
	switch s := l.State.(type) {
	case nil:
		return fmt.Errorf("%w: lifecycle has no state", ErrInvariant)
	case Entry:
		if s.BuyIntentID == "" {
			return fmt.Errorf("%w: Entry requires a Buy OrderIntent", ErrInvariant)
		}
	case Exit:
		if s.SellIntentID == "" {
			return fmt.Errorf("%w: Exit requires a Sell OrderIntent", ErrInvariant)
		}
	}
	return nil
}
