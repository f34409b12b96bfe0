package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceerkle/dreichor-trading/broker"
	"github.com/ceerkle/dreichor-trading/internal/id"
	"github.com/ceerkle/dreichor-trading/journal"
	"github.com/ceerkle/dreichor-trading/ledger"
	"github.com/ceerkle/dreichor-trading/market"
	"github.com/ceerkle/dreichor-trading/memory"
	"github.com/ceerkle/dreichor-trading/replay"
	"github.com/ceerkle/dreichor-trading/risk"
	"github.com/ceerkle/dreichor-trading/strategy"
)

const instanceID market.UUID = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"

func marketPtr(m market.MarketID) *market.MarketID { return &m }

// buyInput is a tick at t that should buy M1 with allocation 1.
func buyInput(t market.LogicalTime) Input {
	return Input{
		LogicalTime: t,
		InstanceID:  instanceID,
		Plane:       broker.Paper,
		Decision: market.Decision{
			Class:       "market.rotate.default@v1",
			ReasonCodes: []market.ReasonCode{market.ReasonAttentionSuperior},
			LogicalTime: t,
		},
		Lifecycle:    strategy.Lifecycle{Config: strategy.LifecycleConfig{MinimumHoldTime: 3, CooldownDuration: 2}, State: strategy.Evaluation{}},
		Attention:    strategy.DecideAttention(strategy.AllAttention(true)),
		Pool:         strategy.ParameterPool{ID: "test@v1", Parameters: strategy.ParameterSet{Allocation: "1"}},
		TargetMarket: marketPtr("M1"),
		Ledger:       ledger.New(broker.Paper),
		Memory:       memory.Empty(),
	}
}

func types(events []journal.Event) []journal.EventType {
	out := make([]journal.EventType, len(events))
	for i, e := range events {
		out[i] = e.Base().Type
	}
	return out
}

type recordingObserver struct{ results []Result }

func (o *recordingObserver) Observe(r Result) { o.results = append(o.results, r) }

type failingEvents struct{ err error }

func (f failingEvents) Append(context.Context, journal.Event) error      { return f.err }
func (f failingEvents) ReadAll(context.Context) ([]journal.Event, error) { return nil, f.err }

type misplacedExecutor struct{ broker.PaperExecutor }

func (misplacedExecutor) Plane() broker.Plane { return broker.Live }

func TestTickBuy(t *testing.T) {
	t.Parallel()

	res, err := New(Deps{Executors: broker.DefaultExecutors()}).Tick(context.Background(), buyInput(10))
	require.NoError(t, err)

	assert.Equal(t, []journal.EventType{
		journal.TypeDecisionEvaluated,
		journal.TypeOrderIntentCreated,
		journal.TypeSafetyEvaluated,
		journal.TypeExecutionAttempted,
		journal.TypeExecutionOutcomeRecorded,
		journal.TypeLedgerUpdated,
	}, types(res.Events))

	for _, e := range res.Events {
		assert.Equal(t, market.LogicalTime(10), e.Base().LogicalTime)
		assert.Equal(t, e.Base().LogicalTime, e.Base().CreatedAtLogical)
		ref, ok := journal.DecisionRef(e)
		assert.True(t, ok)
		assert.Equal(t, res.DecisionID, ref)
	}

	intent, ok := res.Intent()
	require.True(t, ok)
	assert.Equal(t, id.OrderIntent(instanceID, "M1", market.Buy, 10), intent.ID)
	assert.Equal(t, risk.Verdict{Type: risk.Allow}, res.Verdict)

	require.NotNil(t, res.Outcome)
	assert.Equal(t, broker.ExecutionID(intent.ID, broker.Paper, 10), res.Outcome.ExecutionID)
	assert.Equal(t, ledger.DeviationNone, res.Deviation)
	assert.Equal(t, ledger.Position{
		MarketID:        "M1",
		Quantity:        "1",
		IsOpen:          true,
		LastExecutionID: res.Outcome.ExecutionID,
	}, res.Ledger.Positions["M1"])

	entry, ok := res.Memory.Lookup(res.DecisionID)
	require.True(t, ok)
	assert.Equal(t, market.LogicalTime(10), entry.FirstSeen)
	assert.Equal(t, 1, entry.Execution.Filled)
	assert.Equal(t, 1, entry.Safety.Observed)
	assert.Len(t, res.Memory.Seen, 6)
	assert.Nil(t, res.Snapshot)
}

func TestTickIsDeterministic(t *testing.T) {
	t.Parallel()

	eng := New(Deps{Executors: broker.DefaultExecutors()})
	a, err := eng.Tick(context.Background(), buyInput(10))
	require.NoError(t, err)
	b, err := eng.Tick(context.Background(), buyInput(10))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := eng.Tick(context.Background(), buyInput(11))
	require.NoError(t, err)
	assert.NotEqual(t, a.DecisionID, c.DecisionID)
}

func TestTickIDs(t *testing.T) {
	t.Parallel()

	in := buyInput(10)
	res, err := New(Deps{Executors: broker.DefaultExecutors()}).Tick(context.Background(), in)
	require.NoError(t, err)

	decision := id.Meta(id.NamespaceDecision, string(instanceID)+"|market.rotate.default@v1|10|ATTENTION_SUPERIOR")
	assert.Equal(t, decision, res.DecisionID)
	assert.Equal(t, id.Meta(id.NamespaceAudit, "DECISION_EVALUATED|"+string(decision)+"|t=10"), res.Events[0].Base().ID)

	exec := string(res.Outcome.ExecutionID)
	assert.Equal(t, id.Meta(id.NamespaceAudit, "EXECUTION_OUTCOME_RECORDED|"+string(decision)+"|"+exec+"|FILLED|t=10"), res.Events[4].Base().ID)

	// Reason codes are part of the decision id.
	in.Decision.ReasonCodes = nil
	other, err := New(Deps{Executors: broker.DefaultExecutors()}).Tick(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, res.DecisionID, other.DecisionID)
}

func TestTickSkipped(t *testing.T) {
	t.Parallel()

	in := buyInput(4)
	in.Lifecycle = strategy.NewLifecycle(strategy.LifecycleConfig{})

	res, err := New(Deps{Executors: broker.DefaultExecutors()}).Tick(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []journal.EventType{
		journal.TypeDecisionEvaluated,
		journal.TypeOrderIntentSkipped,
		journal.TypeSafetyEvaluated,
	}, types(res.Events))
	assert.Equal(t, strategy.NoIntent{Reason: strategy.LifecycleBlocked}, res.Proposal)

	skipped := res.Events[1].(journal.OrderIntentSkipped)
	assert.Equal(t, market.ReasonUnknown, skipped.Reason)
	assert.Equal(t, id.Meta(id.NamespaceAudit, "ORDER_INTENT_SKIPPED|"+string(res.DecisionID)+"|LIFECYCLE_BLOCKED|t=4"), skipped.ID)

	assert.False(t, res.Executed())
	assert.Equal(t, in.Ledger, res.Ledger)
}

func TestTickHalt(t *testing.T) {
	t.Parallel()

	in := buyInput(10)
	in.Gates = risk.Gates{HaltAll: true}

	res, err := New(Deps{Executors: broker.DefaultExecutors()}).Tick(context.Background(), in)
	require.NoError(t, err)

	_, ok := res.Intent()
	assert.True(t, ok)
	assert.Equal(t, risk.Halt, res.Verdict.Type)
	assert.False(t, res.Executed())
	assert.Len(t, res.Events, 3)
	assert.Equal(t, 1, res.Memory.Entries[res.DecisionID].Safety.Blocked)
}

func TestTickForceSell(t *testing.T) {
	t.Parallel()
	eng := New(Deps{Executors: broker.DefaultExecutors()})

	bought, err := eng.Tick(context.Background(), buyInput(10))
	require.NoError(t, err)

	holding := buyInput(11)
	holding.Ledger = bought.Ledger
	holding.Memory = bought.Memory
	holding.Attention = strategy.DecideAttention(strategy.AllAttention(false))
	holding.Lifecycle.State = strategy.Holding{
		Position:  market.Position{ID: string(bought.Outcome.ExecutionID), MarketID: "M1", Size: "1"},
		EnteredAt: 10,
	}

	holding.Gates = risk.Gates{ForceSell: true}
	res, err := eng.Tick(context.Background(), holding)
	require.NoError(t, err)
	intent, ok := res.Intent()
	require.True(t, ok)
	assert.Equal(t, market.Sell, intent.Side)
	assert.Equal(t, risk.ForceSell, res.Verdict.Type)
	assert.False(t, res.Executed())

	// A halt lets sells through, so the forced sell executes.
	holding.Gates = risk.Gates{HaltAll: true, ForceSell: true}
	res, err = eng.Tick(context.Background(), holding)
	require.NoError(t, err)
	assert.Equal(t, risk.Allow, res.Verdict.Type)
	require.True(t, res.Executed())
	assert.False(t, res.Ledger.HasOpenPosition())
	assert.Equal(t, market.Zero, res.Ledger.Positions["M1"].Quantity)
}

func TestTickPersists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	events := journal.NewMemoryEvents()
	snaps := journal.NewMemorySnapshots()
	obs := &recordingObserver{}
	eng := New(Deps{
		Executors:           broker.DefaultExecutors(),
		Events:              events,
		Snapshots:           snaps,
		SnapshotOnExecution: true,
		Observer:            obs,
	})

	res, err := eng.Tick(ctx, buyInput(10))
	require.NoError(t, err)

	stored, err := events.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Events, stored)

	require.NotNil(t, res.Snapshot)
	assert.Equal(t, journal.NewLedgerSnapshot(res.Ledger, 10), *res.Snapshot)
	assert.Equal(t, 1, snaps.Len())
	require.Len(t, obs.results, 1)
	assert.Equal(t, res.DecisionID, obs.results[0].DecisionID)

	// No execution, no snapshot.
	skip := buyInput(11)
	skip.Lifecycle = strategy.NewLifecycle(strategy.LifecycleConfig{})
	skip.Ledger = res.Ledger
	skip.Memory = res.Memory
	_, err = eng.Tick(ctx, skip)
	require.NoError(t, err)
	assert.Equal(t, 1, snaps.Len())

	restored, err := replay.Restore(ctx, events, snaps, broker.Paper)
	require.NoError(t, err)
	assert.Equal(t, res.Ledger, restored.Ledger)
	assert.Equal(t, 9, restored.Events)
	assert.Len(t, restored.Memory.Entries, 2)
}

func TestTickReplayMatchesLiveMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	events := journal.NewMemoryEvents()
	eng := New(Deps{Executors: broker.DefaultExecutors(), Events: events})

	in := buyInput(10)
	in.Feedback = &journal.FeedbackInput{Category: journal.DecisionQuality, Target: journal.DecisionTarget(DecisionID(instanceID, in.Decision))}
	res, err := eng.Tick(ctx, in)
	require.NoError(t, err)

	replayed, err := replay.Memory(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, res.Memory, replayed)
}

func TestTickFeedback(t *testing.T) {
	t.Parallel()

	in := buyInput(10)
	decision := DecisionID(instanceID, in.Decision)
	in.Feedback = &journal.FeedbackInput{Category: journal.RiskComfort, Target: journal.DecisionTarget(decision), Comment: "too eager"}

	res, err := New(Deps{Executors: broker.DefaultExecutors()}).Tick(context.Background(), in)
	require.NoError(t, err)

	last := res.Events[len(res.Events)-1]
	require.IsType(t, journal.UserFeedbackRecorded{}, last)
	assert.Equal(t, journal.FeedbackID(journal.RiskComfort, journal.DecisionTarget(decision), 10), last.Base().ID)
	require.NotNil(t, res.Feedback)
	assert.Equal(t, "too eager", res.Feedback.Comment)

	fb := res.Memory.Entries[decision].Feedback
	assert.Equal(t, 1, fb.Count)
	assert.Equal(t, 1, fb.Categories.RiskComfort)

	// Feedback on a time window is recorded but not aggregated.
	in.Feedback = &journal.FeedbackInput{Category: journal.SystemBehavior, Target: journal.WindowTarget(1, 10)}
	res, err = New(Deps{Executors: broker.DefaultExecutors()}).Tick(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, journal.TypeUserFeedbackRecorded, res.Events[len(res.Events)-1].Base().Type)
	assert.Equal(t, 0, res.Memory.Entries[decision].Feedback.Count)
}

func TestTickRecordsFeedbackOnUnseenDecision(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	events := journal.NewMemoryEvents()
	eng := New(Deps{Executors: broker.DefaultExecutors(), Events: events})

	unseen := market.UUID("0b000000-0000-0000-0000-000000000002")
	in := buyInput(10)
	in.Feedback = &journal.FeedbackInput{Category: journal.RiskComfort, Target: journal.DecisionTarget(unseen)}
	res, err := eng.Tick(ctx, in)
	require.NoError(t, err)

	assert.True(t, res.Executed())
	require.NotNil(t, res.Feedback)
	last := res.Events[len(res.Events)-1]
	assert.Equal(t, journal.TypeUserFeedbackRecorded, last.Base().Type)
	assert.Equal(t, res.Feedback.ID, last.Base().ID)
	assert.True(t, res.Memory.Has(res.Feedback.ID))
	_, known := res.Memory.Lookup(unseen)
	assert.False(t, known)
	assert.Equal(t, 0, res.Memory.Entries[res.DecisionID].Feedback.Count)

	stored, err := events.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, len(res.Events))

	replayed, err := replay.MemoryFrom(stored)
	require.NoError(t, err)
	assert.Equal(t, res.Memory, replayed)
}

func TestTickRejectsMalformedFeedbackBeforePersisting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	events := journal.NewMemoryEvents()
	eng := New(Deps{Executors: broker.DefaultExecutors(), Events: events})

	in := buyInput(10)
	in.Feedback = &journal.FeedbackInput{Category: journal.RiskComfort, Target: journal.DecisionTarget("not-a-uuid")}
	_, err := eng.Tick(ctx, in)
	assert.ErrorIs(t, err, journal.ErrInvalidFeedbackTarget)

	in.Feedback = &journal.FeedbackInput{Category: "LOVED_IT", Target: journal.WindowTarget(1, 10)}
	_, err = eng.Tick(ctx, in)
	assert.ErrorIs(t, err, market.ErrInvalidValue)

	stored, err := events.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestTickPersistenceFailureIsFatal(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	obs := &recordingObserver{}
	eng := New(Deps{Executors: broker.DefaultExecutors(), Events: failingEvents{boom}, Observer: obs})

	_, err := eng.Tick(context.Background(), buyInput(10))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, obs.results)
}

func TestTickStructuralErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		deps   Deps
		mutate func(*Input)
		want   error
	}{
		{
			name:   "decision time",
			deps:   Deps{Executors: broker.DefaultExecutors()},
			mutate: func(in *Input) { in.Decision.LogicalTime = 9 },
			want:   ErrLogicalTime,
		},
		{
			name:   "ledger plane",
			deps:   Deps{Executors: broker.DefaultExecutors()},
			mutate: func(in *Input) { in.Ledger = ledger.New(broker.Live) },
			want:   ledger.ErrPlaneMismatch,
		},
		{
			name:   "lifecycle invariant",
			deps:   Deps{Executors: broker.DefaultExecutors()},
			mutate: func(in *Input) { in.Lifecycle.State = strategy.Entry{} },
			want:   strategy.ErrInvariant,
		},
		{
			name:   "missing executor",
			deps:   Deps{Executors: broker.Executors{broker.Live: broker.LiveExecutor{}}},
			mutate: func(*Input) {},
			want:   ErrMissingExecutor,
		},
		{
			name:   "executor plane",
			deps:   Deps{Executors: broker.Executors{broker.Paper: misplacedExecutor{}}},
			mutate: func(*Input) {},
			want:   ledger.ErrPlaneMismatch,
		},
		{
			name:   "instance id",
			deps:   Deps{Executors: broker.DefaultExecutors()},
			mutate: func(in *Input) { in.InstanceID = "instance-1" },
			want:   market.ErrInvalidValue,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := journal.NewMemoryEvents()
			tt.deps.Events = events
			in := buyInput(10)
			tt.mutate(&in)

			_, err := New(tt.deps).Tick(context.Background(), in)
			assert.ErrorIs(t, err, tt.want)

			stored, _ := events.ReadAll(context.Background())
			assert.Empty(t, stored)
		})
	}
}

func TestHoldTimeScenario(t *testing.T) {
	t.Parallel()

	cfg := strategy.LifecycleConfig{MinimumHoldTime: 3}
	l, err := strategy.Transition(strategy.NewLifecycle(cfg), strategy.MetaTriggerEvaluation{})
	require.NoError(t, err)
	assert.Equal(t, strategy.TagEvaluation, l.State.Tag())

	in := buyInput(10)
	in.Lifecycle = l
	res, err := New(Deps{Executors: broker.DefaultExecutors()}).Tick(context.Background(), in)
	require.NoError(t, err)
	intent, ok := res.Intent()
	require.True(t, ok)
	assert.Equal(t, market.MarketID("M1"), intent.MarketID)
	assert.Equal(t, market.Decimal("1"), intent.Allocation)

	l, err = strategy.Transition(l, strategy.EvaluationBuyIntentCreated{BuyIntentID: intent.ID})
	require.NoError(t, err)
	pos := market.Position{ID: string(res.Outcome.ExecutionID), MarketID: "M1", Size: res.Outcome.FilledQuantity}
	l, err = strategy.Transition(l, strategy.BuyExecutionSucceeded{Position: pos, Now: 10})
	require.NoError(t, err)

	sell := id.OrderIntent(instanceID, "M1", market.Sell, 12)
	l, err = strategy.Transition(l, strategy.RequestRotationExit{SellIntentID: sell, Now: 12})
	require.NoError(t, err)
	assert.Equal(t, strategy.TagHolding, l.State.Tag())

	l, err = strategy.Transition(l, strategy.RequestRotationExit{SellIntentID: sell, Now: 13})
	require.NoError(t, err)
	exit, ok := l.State.(strategy.Exit)
	require.True(t, ok)
	assert.Equal(t, strategy.RotationSell, exit.Reason)
}
