// Package engine sequences one tick of a strategy instance: decision audit,
// order intent, safety, execution, ledger, decision memory and feedback, in
// that fixed order, then persists the facts it produced.
//
// The engine holds no per-instance state. Lifecycle, ledger and memory are
// passed in and the next values are returned, so ticks for one instance
// must be serialized by the caller.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ceerkle/dreichor-trading/broker"
	"github.com/ceerkle/dreichor-trading/journal"
	"github.com/ceerkle/dreichor-trading/ledger"
	"github.com/ceerkle/dreichor-trading/market"
	"github.com/ceerkle/dreichor-trading/memory"
	"github.com/ceerkle/dreichor-trading/risk"
	"github.com/ceerkle/dreichor-trading/strategy"
)

var (
	ErrLogicalTime     = errors.New("decision logical time differs from tick logical time")
	ErrMissingExecutor = errors.New("no executor registered for plane")
	ErrPersistence     = errors.New("persistence failed")
)

// Observer is told about every completed tick.
type Observer interface {
	Observe(Result)
}

// Deps are the collaborators of an Engine. Events and Snapshots are optional.
type Deps struct {
	Executors           broker.Executors
	Events              journal.EventStore
	Snapshots           journal.SnapshotStore
	SnapshotOnExecution bool
	Observer            Observer
	Log                 *logrus.Entry
}

type Engine struct {
	deps Deps
	log  *logrus.Entry
}

func New(deps Deps) *Engine {
	l := deps.Log
	if l == nil {
		l = logrus.WithField("component", "engine")
	}
	return &Engine{deps: deps, log: l}
}

// Input is everything one tick reads.
type Input struct {
	LogicalTime  market.LogicalTime
	InstanceID   market.UUID
	Plane        broker.Plane
	Gates        risk.Gates
	Decision     market.Decision
	Lifecycle    strategy.Lifecycle
	Attention    strategy.AttentionDecision
	Pool         strategy.ParameterPool
	TargetMarket *market.MarketID
	Ledger       ledger.State
	Memory       memory.State
	Feedback     *journal.FeedbackInput
}

// Result is everything one tick produced. Outcome and Snapshot are nil
// when nothing was executed or written.
type Result struct {
	DecisionID market.UUID
	Decision   market.Decision
	Proposal   strategy.Proposal
	Verdict    risk.Verdict
	Outcome    *broker.Outcome
	Deviation  ledger.Deviation
	Ledger     ledger.State
	Memory     memory.State
	Feedback   *journal.FeedbackRecord
	Events     []journal.Event
	Snapshot   *journal.LedgerSnapshot
}

// Intent returns the proposed order intent, if one was created.
func (r Result) Intent() (market.OrderIntent, bool) {
	if i, ok := r.Proposal.(strategy.Intent); ok {
		return i.OrderIntent, true
	}
	return market.OrderIntent{}, false
}

func (r Result) Executed() bool { return r.Outcome != nil }

// Tick runs one tick. Any error aborts the tick; persistence is attempted
// only after every pure step has succeeded.
func (e *Engine) Tick(ctx context.Context, in Input) (Result, error) {
	t := in.LogicalTime
	exec, err := e.check(in)
	if err != nil {
		return Result{}, err
	}

	decisionID := DecisionID(in.InstanceID, in.Decision)
	log := e.log.WithFields(logrus.Fields{"t": t, "decision": decisionID, "plane": in.Plane})

	events := []journal.Event{journal.DecisionEvaluated{
		Header:             journal.NewHeader(AuditID(journal.TypeDecisionEvaluated, decisionID, "", t), journal.TypeDecisionEvaluated, t),
		DecisionID:         decisionID,
		StrategyInstanceID: in.InstanceID,
		DecisionClass:      in.Decision.Class,
	}}

	proposal := strategy.CreateOrderIntent(strategy.IntentInput{
		InstanceID:   in.InstanceID,
		Lifecycle:    in.Lifecycle,
		Attention:    in.Attention,
		Pool:         in.Pool,
		TargetMarket: in.TargetMarket,
		Gates:        in.Gates.IntentGates(),
		Now:          t,
	})
	switch p := proposal.(type) {
	case strategy.Intent:
		events = append(events, journal.OrderIntentCreated{
			Header:        journal.NewHeader(AuditID(journal.TypeOrderIntentCreated, decisionID, string(p.ID), t), journal.TypeOrderIntentCreated, t),
			DecisionID:    decisionID,
			OrderIntentID: p.ID,
			Side:          p.Side,
			MarketID:      p.MarketID,
		})
		log.WithFields(logrus.Fields{"side": p.Side, "market": p.MarketID}).Debug("order intent created")
	case strategy.NoIntent:
		events = append(events, journal.OrderIntentSkipped{
			Header:     journal.NewHeader(AuditID(journal.TypeOrderIntentSkipped, decisionID, string(p.Reason), t), journal.TypeOrderIntentSkipped, t),
			DecisionID: decisionID,
			Reason:     p.Reason.ReasonCode(),
		})
		log.WithField("reason", p.Reason).Debug("order intent skipped")
	default:
		return Result{}, fmt.Errorf("unexpected proposal %T", proposal)
	}

	verdict, err := risk.Evaluate(risk.Input{
		Proposed: proposal,
		Ledger:   in.Ledger,
		Plane:    in.Plane,
		Gates:    in.Gates,
		Now:      t,
	})
	if err != nil {
		return Result{}, err
	}
	events = append(events, journal.SafetyEvaluated{
		Header:     journal.NewHeader(AuditID(journal.TypeSafetyEvaluated, decisionID, string(verdict.Type), t), journal.TypeSafetyEvaluated, t),
		DecisionID: decisionID,
		Result:     verdict,
	})
	log.WithField("verdict", verdict.Type).Debug("safety evaluated")

	res := Result{
		DecisionID: decisionID,
		Decision:   in.Decision,
		Proposal:   proposal,
		Verdict:    verdict,
		Deviation:  ledger.DeviationNone,
		Ledger:     in.Ledger,
	}

	if intent, ok := res.Intent(); ok && verdict.Type == risk.Allow {
		out := exec.Execute(intent, t)
		res.Outcome = &out
		events = append(events,
			journal.ExecutionAttempted{
				Header:      journal.NewHeader(AuditID(journal.TypeExecutionAttempted, decisionID, string(out.ExecutionID), t), journal.TypeExecutionAttempted, t),
				DecisionID:  decisionID,
				ExecutionID: out.ExecutionID,
				Plane:       out.Plane,
			},
			journal.ExecutionOutcomeRecorded{
				Header:      journal.NewHeader(AuditID(journal.TypeExecutionOutcomeRecorded, decisionID, string(out.ExecutionID)+"|"+string(out.Status), t), journal.TypeExecutionOutcomeRecorded, t),
				DecisionID:  decisionID,
				ExecutionID: out.ExecutionID,
				Status:      out.Status,
			},
		)
		log.WithFields(logrus.Fields{"execution": out.ExecutionID, "status": out.Status}).Debug("executed")

		upd, err := ledger.Apply(in.Ledger, out)
		if err != nil {
			return Result{}, err
		}
		res.Ledger = upd.Next
		res.Deviation = upd.Deviation
		events = append(events, journal.LedgerUpdated{
			Header:     journal.NewHeader(AuditID(journal.TypeLedgerUpdated, decisionID, string(out.ExecutionID), t), journal.TypeLedgerUpdated, t),
			DecisionID: decisionID,
			Plane:      out.Plane,
			MarketID:   out.MarketID,
		})
	}

	// Every pipeline event carries the decision id.
	mem, err := memory.Fold(in.Memory, events)
	if err != nil {
		return Result{}, err
	}

	if in.Feedback != nil {
		rec, err := journal.RecordFeedback(*in.Feedback, t)
		if err != nil {
			return Result{}, err
		}
		// Replay folds the same event; both skip decisions memory has no entry for.
		if mem, err = memory.Fold(mem, []journal.Event{rec.Event}); err != nil {
			return Result{}, err
		}
		res.Feedback = &rec.Record
		events = append(events, rec.Event)
	}
	res.Memory = mem
	res.Events = events

	if err := e.persist(ctx, &res); err != nil {
		return Result{}, err
	}
	if e.deps.Observer != nil {
		e.deps.Observer.Observe(res)
	}
	log.WithField("events", len(events)).Debug("tick complete")
	return res, nil
}

// check enforces the structural preconditions of a tick.
func (e *Engine) check(in Input) (broker.Executor, error) {
	if in.Decision.LogicalTime != in.LogicalTime {
		return nil, fmt.Errorf("%w: decision at %s, tick at %s", ErrLogicalTime, in.Decision.LogicalTime, in.LogicalTime)
	}
	if _, err := market.ParseUUID(string(in.InstanceID)); err != nil {
		return nil, fmt.Errorf("strategy instance id: %w", err)
	}
	if in.Ledger.Plane != in.Plane {
		return nil, fmt.Errorf("%w: tick plane %s, ledger plane %s", ledger.ErrPlaneMismatch, in.Plane, in.Ledger.Plane)
	}
	if err := strategy.CheckInvariants(in.Lifecycle); err != nil {
		return nil, err
	}
	exec, ok := e.deps.Executors[in.Plane]
	if !ok || exec == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingExecutor, in.Plane)
	}
	if exec.Plane() != in.Plane {
		return nil, fmt.Errorf("%w: executor for %s reports %s", ledger.ErrPlaneMismatch, in.Plane, exec.Plane())
	}
	return exec, nil
}

func (e *Engine) persist(ctx context.Context, res *Result) error {
	if e.deps.Events != nil {
		for _, ev := range res.Events {
			if err := e.deps.Events.Append(ctx, ev); err != nil {
				return fmt.Errorf("%w: append %s %s: %w", ErrPersistence, ev.Base().Type, ev.Base().ID, err)
			}
		}
	}
	if e.deps.SnapshotOnExecution && e.deps.Snapshots != nil && res.Outcome != nil {
		snap := journal.NewLedgerSnapshot(res.Ledger, res.Decision.LogicalTime)
		if err := e.deps.Snapshots.Write(ctx, snap); err != nil {
			return fmt.Errorf("%w: write snapshot %s: %w", ErrPersistence, snap.SnapshotID, err)
		}
		res.Snapshot = &snap
	}
	return nil
}
