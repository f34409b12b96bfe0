// journal/journal.go
package journal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ceerkle/dreichor-trading/broker"
	"github.com/ceerkle/dreichor-trading/market"
	"github.com/ceerkle/dreichor-trading/risk"
)

// Version is the only record version written or accepted.
const Version = 1

var ErrMalformedRecord = errors.New("malformed journal record")

type EventType string

const (
	TypeDecisionEvaluated        EventType = "DECISION_EVALUATED"
	TypeOrderIntentCreated       EventType = "ORDER_INTENT_CREATED"
	TypeOrderIntentSkipped       EventType = "ORDER_INTENT_SKIPPED"
	TypeSafetyEvaluated          EventType = "SAFETY_EVALUATED"
	TypeExecutionAttempted       EventType = "EXECUTION_ATTEMPTED"
	TypeExecutionOutcomeRecorded EventType = "EXECUTION_OUTCOME_RECORDED"
	TypeLedgerUpdated            EventType = "LEDGER_UPDATED"
	TypeUserFeedbackRecorded     EventType = "USER_FEEDBACK_RECORDED"
)

// EventTypes lists every audit event type in pipeline order.
var EventTypes = []EventType{
	TypeDecisionEvaluated,
	TypeOrderIntentCreated,
	TypeOrderIntentSkipped,
	TypeSafetyEvaluated,
	TypeExecutionAttempted,
	TypeExecutionOutcomeRecorded,
	TypeLedgerUpdated,
	TypeUserFeedbackRecorded,
}

// Header carries the fields common to every audit event.
// CreatedAtLogical always equals LogicalTime.
type Header struct {
	ID               market.UUID        `json:"id"`
	Type             EventType          `json:"type"`
	Version          int                `json:"version"`
	LogicalTime      market.LogicalTime `json:"logicalTime"`
	CreatedAtLogical market.LogicalTime `json:"createdAtLogical"`
}

func NewHeader(id market.UUID, typ EventType, t market.LogicalTime) Header {
	return Header{ID: id, Type: typ, Version: Version, LogicalTime: t, CreatedAtLogical: t}
}

func (h Header) Base() Header { return h }

// Event is an immutable audit fact. The set of implementations is closed.
type Event interface {
	Base() Header
	auditEvent()
}

// DecisionRef returns the decision an event refers to, if it carries one.
func DecisionRef(e Event) (market.UUID, bool) {
	var ref market.UUID
	switch v := e.(type) {
	case DecisionEvaluated:
		ref = v.DecisionID
	case OrderIntentCreated:
		ref = v.DecisionID
	case OrderIntentSkipped:
		ref = v.DecisionID
	case SafetyEvaluated:
		ref = v.DecisionID
	case ExecutionAttempted:
		ref = v.DecisionID
	case ExecutionOutcomeRecorded:
		ref = v.DecisionID
	case LedgerUpdated:
		ref = v.DecisionID
	case UserFeedbackRecorded:
		return "", false
	}
	return ref, ref != ""
}

type DecisionEvaluated struct {
	Header
	DecisionID         market.UUID          `json:"decisionId"`
	StrategyInstanceID market.UUID          `json:"strategyInstanceId"`
	DecisionClass      market.DecisionClass `json:"decisionClass"`
}

type OrderIntentCreated struct {
	Header
	DecisionID    market.UUID     `json:"decisionId"`
	OrderIntentID market.UUID     `json:"orderIntentId"`
	Side          market.Side     `json:"side"`
	MarketID      market.MarketID `json:"marketId"`
}

type OrderIntentSkipped struct {
	Header
	DecisionID market.UUID       `json:"decisionId"`
	Reason     market.ReasonCode `json:"reason"`
}

type SafetyEvaluated struct {
	Header
	DecisionID market.UUID  `json:"decisionId"`
	Result     risk.Verdict `json:"result"`
}

type ExecutionAttempted struct {
	Header
	DecisionID  market.UUID  `json:"decisionId"`
	ExecutionID market.UUID  `json:"executionId"`
	Plane       broker.Plane `json:"plane"`
}

type ExecutionOutcomeRecorded struct {
	Header
	DecisionID  market.UUID   `json:"decisionId"`
	ExecutionID market.UUID   `json:"executionId"`
	Status      broker.Status `json:"status"`
}

type LedgerUpdated struct {
	Header
	DecisionID market.UUID     `json:"decisionId"`
	Plane      broker.Plane    `json:"plane"`
	MarketID   market.MarketID `json:"marketId"`
}

type UserFeedbackRecorded struct {
	Header
	FeedbackID market.UUID      `json:"feedbackId"`
	Category   FeedbackCategory `json:"category"`
	Target     FeedbackTarget   `json:"target"`
	Comment    string           `json:"comment,omitempty"`
}

func (DecisionEvaluated) auditEvent()        {}
func (OrderIntentCreated) auditEvent()       {}
func (OrderIntentSkipped) auditEvent()       {}
func (SafetyEvaluated) auditEvent()          {}
func (ExecutionAttempted) auditEvent()       {}
func (ExecutionOutcomeRecorded) auditEvent() {}
func (LedgerUpdated) auditEvent()            {}
func (UserFeedbackRecorded) auditEvent()     {}

// EncodeEvent renders e as a single JSON object.
func EncodeEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses one JSON record into its concrete event type.
func DecodeEvent(data []byte) (Event, error) {
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: event %s has version %d", ErrMalformedRecord, h.ID, h.Version)
	}

	switch h.Type {
	case TypeDecisionEvaluated:
		return decodeAs[DecisionEvaluated](data)
	case TypeOrderIntentCreated:
		return decodeAs[OrderIntentCreated](data)
	case TypeOrderIntentSkipped:
		return decodeAs[OrderIntentSkipped](data)
	case TypeSafetyEvaluated:
		return decodeAs[SafetyEvaluated](data)
	case TypeExecutionAttempted:
		return decodeAs[ExecutionAttempted](data)
	case TypeExecutionOutcomeRecorded:
		return decodeAs[ExecutionOutcomeRecorded](data)
	case TypeLedgerUpdated:
		return decodeAs[LedgerUpdated](data)
	case TypeUserFeedbackRecorded:
		return decodeAs[UserFeedbackRecorded](data)
	}
	return nil, fmt.Errorf("%w: unknown event type %q", ErrMalformedRecord, h.Type)
}

func decodeAs[T Event](data []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return v, nil
}
