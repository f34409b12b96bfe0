package journal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ceerkle/dreichor-trading/internal/id"
	"github.com/ceerkle/dreichor-trading/market"
)

var ErrInvalidFeedbackTarget = errors.New("invalid feedback target")

type FeedbackCategory string

const (
	DecisionQuality FeedbackCategory = "DECISION_QUALITY"
	RiskComfort     FeedbackCategory = "RISK_COMFORT"
	SystemBehavior  FeedbackCategory = "SYSTEM_BEHAVIOR"
)

var FeedbackCategories = []FeedbackCategory{DecisionQuality, RiskComfort, SystemBehavior}

func ParseFeedbackCategory(s string) (FeedbackCategory, error) {
	for _, c := range FeedbackCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: feedback category %q", market.ErrInvalidValue, s)
}

type TargetType string

const (
	TargetDecision   TargetType = "DECISION"
	TargetExecution  TargetType = "EXECUTION"
	TargetTimeWindow TargetType = "TIME_WINDOW"
)

// FeedbackTarget points feedback at a decision, an execution, or a window
// of logical time. Only the fields of its Type are meaningful.
type FeedbackTarget struct {
	Type        TargetType
	DecisionID  market.UUID
	ExecutionID market.UUID
	From        market.LogicalTime
	To          market.LogicalTime
}

func DecisionTarget(decision market.UUID) FeedbackTarget {
	return FeedbackTarget{Type: TargetDecision, DecisionID: decision}
}

func ExecutionTarget(execution market.UUID) FeedbackTarget {
	return FeedbackTarget{Type: TargetExecution, ExecutionID: execution}
}

func WindowTarget(from, to market.LogicalTime) FeedbackTarget {
	return FeedbackTarget{Type: TargetTimeWindow, From: from, To: to}
}

// Validate checks the target is syntactically well formed.
func (t FeedbackTarget) Validate() error {
	switch t.Type {
	case TargetDecision:
		if _, err := market.ParseUUID(string(t.DecisionID)); err != nil {
			return fmt.Errorf("%w: decision: %v", ErrInvalidFeedbackTarget, err)
		}
	case TargetExecution:
		if _, err := market.ParseUUID(string(t.ExecutionID)); err != nil {
			return fmt.Errorf("%w: execution: %v", ErrInvalidFeedbackTarget, err)
		}
	case TargetTimeWindow:
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidFeedbackTarget, t.Type)
	}
	return nil
}

// String is the serialization hashed into feedback ids.
func (t FeedbackTarget) String() string {
	switch t.Type {
	case TargetDecision:
		return "DECISION|" + string(t.DecisionID)
	case TargetExecution:
		return "EXECUTION|" + string(t.ExecutionID)
	case TargetTimeWindow:
		return "TIME_WINDOW|" + t.From.String() + "|" + t.To.String()
	}
	return string(t.Type)
}

type decisionTargetJSON struct {
	Type       TargetType  `json:"type"`
	DecisionID market.UUID `json:"decisionId"`
}

type executionTargetJSON struct {
	Type        TargetType  `json:"type"`
	ExecutionID market.UUID `json:"executionId"`
}

type windowTargetJSON struct {
	Type TargetType         `json:"type"`
	From market.LogicalTime `json:"from"`
	To   market.LogicalTime `json:"to"`
}

func (t FeedbackTarget) MarshalJSON() ([]byte, error) {
	switch t.Type {
	case TargetDecision:
		return json.Marshal(decisionTargetJSON{t.Type, t.DecisionID})
	case TargetExecution:
		return json.Marshal(executionTargetJSON{t.Type, t.ExecutionID})
	case TargetTimeWindow:
		return json.Marshal(windowTargetJSON{t.Type, t.From, t.To})
	}
	return nil, fmt.Errorf("%w: type %q", ErrInvalidFeedbackTarget, t.Type)
}

func (t *FeedbackTarget) UnmarshalJSON(data []byte) error {
	var head struct {
		Type TargetType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Type {
	case TargetDecision:
		var v decisionTargetJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*t = DecisionTarget(v.DecisionID)
	case TargetExecution:
		var v executionTargetJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*t = ExecutionTarget(v.ExecutionID)
	case TargetTimeWindow:
		var v windowTargetJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*t = WindowTarget(v.From, v.To)
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidFeedbackTarget, head.Type)
	}
	return nil
}

// FeedbackRecord is the stored form of one piece of user feedback.
type FeedbackRecord struct {
	ID          market.UUID        `json:"id"`
	Version     int                `json:"version"`
	Category    FeedbackCategory   `json:"category"`
	Target      FeedbackTarget     `json:"target"`
	Comment     string             `json:"comment,omitempty"`
	LogicalTime market.LogicalTime `json:"logicalTime"`
}

type FeedbackInput struct {
	Category FeedbackCategory
	Target   FeedbackTarget
	Comment  string
}

// FeedbackRecording pairs a record with its audit event. Both share an id.
type FeedbackRecording struct {
	Record FeedbackRecord
	Event  UserFeedbackRecorded
}

// FeedbackID derives the id of feedback from its category, target and time.
func FeedbackID(c FeedbackCategory, target FeedbackTarget, t market.LogicalTime) market.UUID {
	return id.Feedback(string(c), target.String(), t)
}

// RecordFeedback validates in and derives its record and audit event.
func RecordFeedback(in FeedbackInput, t market.LogicalTime) (FeedbackRecording, error) {
	if _, err := ParseFeedbackCategory(string(in.Category)); err != nil {
		return FeedbackRecording{}, err
	}
	if err := in.Target.Validate(); err != nil {
		return FeedbackRecording{}, err
	}

	fid := FeedbackID(in.Category, in.Target, t)
	rec := FeedbackRecord{
		ID:          fid,
		Version:     Version,
		Category:    in.Category,
		Target:      in.Target,
		Comment:     in.Comment,
		LogicalTime: t,
	}
	ev := UserFeedbackRecorded{
		Header:     NewHeader(fid, TypeUserFeedbackRecorded, t),
		FeedbackID: fid,
		Category:   in.Category,
		Target:     in.Target,
		Comment:    in.Comment,
	}
	return FeedbackRecording{Record: rec, Event: ev}, nil
}

// Record recovers the feedback record carried by a recorded event.
func (e UserFeedbackRecorded) Record() FeedbackRecord {
	return FeedbackRecord{
		ID:          e.FeedbackID,
		Version:     e.Version,
		Category:    e.Category,
		Target:      e.Target,
		Comment:     e.Comment,
		LogicalTime: e.LogicalTime,
	}
}
