package journal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceerkle/dreichor-trading/broker"
	"github.com/ceerkle/dreichor-trading/market"
	"github.com/ceerkle/dreichor-trading/risk"
)

const (
	decisionA  market.UUID = "0a000000-0000-0000-0000-000000000001"
	instanceID market.UUID = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"
)

func evID(n byte) market.UUID {
	return market.UUID("e0000000-0000-0000-0000-0000000000" + string("0123456789abcdef"[n>>4]) + string("0123456789abcdef"[n&15]))
}

// sampleEvents returns one event of every type in pipeline order.
func sampleEvents() []Event {
	fb, err := RecordFeedback(FeedbackInput{Category: RiskComfort, Target: DecisionTarget(decisionA), Comment: "ok"}, 3)
	if err != nil {
		panic(err)
	}
	return []Event{
		DecisionEvaluated{Header: NewHeader(evID(1), TypeDecisionEvaluated, 3), DecisionID: decisionA, StrategyInstanceID: instanceID, DecisionClass: "market.rotate.default@v1"},
		OrderIntentCreated{Header: NewHeader(evID(2), TypeOrderIntentCreated, 3), DecisionID: decisionA, OrderIntentID: evID(20), Side: market.Buy, MarketID: "BTCUSDT"},
		SafetyEvaluated{Header: NewHeader(evID(3), TypeSafetyEvaluated, 3), DecisionID: decisionA, Result: risk.Verdict{Type: risk.Allow}},
		ExecutionAttempted{Header: NewHeader(evID(4), TypeExecutionAttempted, 3), DecisionID: decisionA, ExecutionID: evID(40), Plane: broker.Paper},
		ExecutionOutcomeRecorded{Header: NewHeader(evID(5), TypeExecutionOutcomeRecorded, 3), DecisionID: decisionA, ExecutionID: evID(40), Status: broker.Filled},
		LedgerUpdated{Header: NewHeader(evID(6), TypeLedgerUpdated, 3), DecisionID: decisionA, Plane: broker.Paper, MarketID: "BTCUSDT"},
		OrderIntentSkipped{Header: NewHeader(evID(7), TypeOrderIntentSkipped, 4), DecisionID: decisionA, Reason: market.ReasonCooldownActive},
		fb.Event,
	}
}

func TestEventWireShape(t *testing.T) {
	t.Parallel()

	e := SafetyEvaluated{
		Header:     NewHeader(evID(3), TypeSafetyEvaluated, 9),
		DecisionID: decisionA,
		Result:     risk.Verdict{Type: risk.Halt, Reason: risk.HaltAllActive},
	}
	data, err := EncodeEvent(e)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "SAFETY_EVALUATED", m["type"])
	assert.Equal(t, float64(1), m["version"])
	assert.Equal(t, float64(9), m["logicalTime"])
	assert.Equal(t, float64(9), m["createdAtLogical"])
	assert.Equal(t, string(decisionA), m["decisionId"])
	assert.Equal(t, map[string]any{"type": "HALT", "reason": "HALT_ALL_ACTIVE"}, m["result"])

	allow, err := EncodeEvent(SafetyEvaluated{Header: NewHeader(evID(3), TypeSafetyEvaluated, 9), DecisionID: decisionA, Result: risk.Verdict{Type: risk.Allow}})
	require.NoError(t, err)
	assert.Contains(t, string(allow), `"result":{"type":"ALLOW"}`)
}

func TestDecodeEventRestoresConcreteTypes(t *testing.T) {
	t.Parallel()

	for _, e := range sampleEvents() {
		data, err := EncodeEvent(e)
		require.NoError(t, err)
		got, err := DecodeEvent(data)
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
}

func TestDecodeEventRejects(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not json":      `{`,
		"bad version":   `{"id":"e0000000-0000-0000-0000-000000000001","type":"LEDGER_UPDATED","version":2,"logicalTime":1,"createdAtLogical":1}`,
		"unknown type":  `{"id":"e0000000-0000-0000-0000-000000000001","type":"PRICE_SEEN","version":1,"logicalTime":1,"createdAtLogical":1}`,
		"bad id":        `{"id":"nope","type":"LEDGER_UPDATED","version":1,"logicalTime":1,"createdAtLogical":1}`,
		"bad reason":    `{"id":"e0000000-0000-0000-0000-000000000001","type":"ORDER_INTENT_SKIPPED","version":1,"logicalTime":1,"createdAtLogical":1,"reason":"MAYBE"}`,
		"negative time": `{"id":"e0000000-0000-0000-0000-000000000001","type":"LEDGER_UPDATED","version":1,"logicalTime":-1,"createdAtLogical":1}`,
	}
	for name, in := range tests {
		_, err := DecodeEvent([]byte(in))
		assert.ErrorIs(t, err, ErrMalformedRecord, name)
	}
}

func TestDecisionRef(t *testing.T) {
	t.Parallel()

	for _, e := range sampleEvents() {
		ref, ok := DecisionRef(e)
		if e.Base().Type == TypeUserFeedbackRecorded {
			assert.False(t, ok)
			continue
		}
		assert.True(t, ok, e.Base().Type)
		assert.Equal(t, decisionA, ref)
	}

	_, ok := DecisionRef(LedgerUpdated{Header: NewHeader(evID(6), TypeLedgerUpdated, 3)})
	assert.False(t, ok)
}
