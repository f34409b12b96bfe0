// Package scenario drives a strategy instance through a scripted sequence of
// ticks, threading lifecycle, ledger and decision memory from one tick to
// the next.
package scenario

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ceerkle/dreichor-trading/broker"
	"github.com/ceerkle/dreichor-trading/engine"
	"github.com/ceerkle/dreichor-trading/journal"
	"github.com/ceerkle/dreichor-trading/ledger"
	"github.com/ceerkle/dreichor-trading/market"
	"github.com/ceerkle/dreichor-trading/memory"
	"github.com/ceerkle/dreichor-trading/replay"
	"github.com/ceerkle/dreichor-trading/strategy"
)

var log = logrus.WithField("component", "scenario")

// Config fixes the identity and rules of the instance being driven.
type Config struct {
	InstanceID    market.UUID
	DecisionClass market.DecisionClass
	Plane         broker.Plane
	Lifecycle     strategy.LifecycleConfig
	Pool          strategy.ParameterPool
}

// Runner owns the state of one instance between ticks. It is not safe for
// concurrent use.
type Runner struct {
	cfg    Config
	engine *engine.Engine

	Lifecycle strategy.Lifecycle
	Ledger    ledger.State
	Memory    memory.State
}

func NewRunner(cfg Config, eng *engine.Engine) *Runner {
	return &Runner{
		cfg:       cfg,
		engine:    eng,
		Lifecycle: strategy.NewLifecycle(cfg.Lifecycle),
		Ledger:    ledger.New(cfg.Plane),
		Memory:    memory.Empty(),
	}
}

// Restore rebuilds memory and ledger from persisted logs. The lifecycle is
// not persisted: it resumes in Holding when the ledger has an open position
// and in Idle otherwise.
func (r *Runner) Restore(ctx context.Context, events journal.EventStore, snaps journal.SnapshotStore) (replay.State, error) {
	st, err := replay.Restore(ctx, events, snaps, r.cfg.Plane)
	if err != nil {
		return replay.State{}, err
	}
	r.Memory = st.Memory
	r.Ledger = st.Ledger
	r.Lifecycle = resumeLifecycle(r.cfg.Lifecycle, st)
	return st, nil
}

// resumeLifecycle holds the first open ledger position. EnteredAt is the
// snapshot time, never earlier than the real entry.
func resumeLifecycle(cfg strategy.LifecycleConfig, st replay.State) strategy.Lifecycle {
	l := strategy.NewLifecycle(cfg)
	if st.Snapshot == nil {
		return l
	}
	for _, id := range st.Ledger.MarketIDs() {
		p := st.Ledger.Positions[id]
		if !p.IsOpen {
			continue
		}
		l.State = strategy.Holding{
			Position: market.Position{
				ID:               string(p.LastExecutionID),
				MarketID:         p.MarketID,
				Size:             p.Quantity,
				EntryExecutionID: p.LastExecutionID,
			},
			EnteredAt: st.Snapshot.LogicalTime,
		}
		log.WithFields(logrus.Fields{"market": p.MarketID, "entered": st.Snapshot.LogicalTime}).Info("resuming open position")
		break
	}
	return l
}

// Step is the record of one executed row.
type Step struct {
	Row    Row
	Before strategy.StateTag
	After  strategy.StateTag
	Result engine.Result
}

// Step runs one row: advance time, tick, then feed the tick's outcome back
// into the lifecycle. On error the runner state is left as it was.
func (r *Runner) Step(ctx context.Context, row Row) (Step, error) {
	t := row.Time
	before := r.Lifecycle.State.Tag()

	l, err := strategy.Transition(r.Lifecycle, strategy.LogicalTimeAdvanced{Now: t})
	if err != nil {
		return Step{}, err
	}
	switch l.State.(type) {
	case strategy.Idle, strategy.ReentryEligibility:
		if l, err = strategy.Transition(l, strategy.MetaTriggerEvaluation{}); err != nil {
			return Step{}, err
		}
	}

	decision := market.Decision{Class: r.cfg.DecisionClass, ReasonCodes: row.Reasons, LogicalTime: t}
	in := engine.Input{
		LogicalTime:  t,
		InstanceID:   r.cfg.InstanceID,
		Plane:        r.cfg.Plane,
		Gates:        row.Gates,
		Decision:     decision,
		Lifecycle:    l,
		Attention:    strategy.DecideAttention(row.Attention),
		Pool:         r.cfg.Pool,
		TargetMarket: row.Market,
		Ledger:       r.Ledger,
		Memory:       r.Memory,
	}
	if row.Feedback != nil {
		in.Feedback = &journal.FeedbackInput{
			Category: *row.Feedback,
			Target:   journal.DecisionTarget(engine.DecisionID(r.cfg.InstanceID, decision)),
		}
	}

	res, err := r.engine.Tick(ctx, in)
	if err != nil {
		return Step{}, fmt.Errorf("tick %s: %w", t, err)
	}

	next, err := followUp(l, res, row, t)
	if err != nil {
		return Step{}, fmt.Errorf("tick %s: %w", t, err)
	}

	r.Lifecycle = next
	r.Ledger = res.Ledger
	r.Memory = res.Memory

	log.WithFields(logrus.Fields{
		"t":       t,
		"from":    before,
		"to":      next.State.Tag(),
		"verdict": res.Verdict.Type,
	}).Debug("step")
	return Step{Row: row, Before: before, After: next.State.Tag(), Result: res}, nil
}

// followUp applies the lifecycle events implied by a tick result.
func followUp(l strategy.Lifecycle, res engine.Result, row Row, t market.LogicalTime) (strategy.Lifecycle, error) {
	intent, hasIntent := res.Intent()
	filled := res.Outcome != nil && res.Outcome.Status == broker.Filled

	switch l.State.(type) {
	case strategy.Evaluation:
		if !hasIntent || intent.Side != market.Buy {
			return strategy.Transition(l, strategy.EvaluationNoAction{})
		}
		entry, err := strategy.Transition(l, strategy.EvaluationBuyIntentCreated{BuyIntentID: intent.ID})
		if err != nil {
			return l, err
		}
		if !filled {
			return strategy.Transition(entry, strategy.BuyExecutionFailed{})
		}
		pos := market.Position{
			ID:               string(res.Outcome.ExecutionID),
			MarketID:         res.Outcome.MarketID,
			Size:             res.Outcome.FilledQuantity,
			EntryExecutionID: res.Outcome.ExecutionID,
		}
		return strategy.Transition(entry, strategy.BuyExecutionSucceeded{Position: pos, Now: t})

	case strategy.Holding:
		if !hasIntent || intent.Side != market.Sell {
			return l, nil
		}
		var ev strategy.Event = strategy.RequestRotationExit{SellIntentID: intent.ID, Now: t}
		if row.Gates.ForceSell {
			ev = strategy.RequestSafetyExit{SellIntentID: intent.ID}
		}
		exit, err := strategy.Transition(l, ev)
		if err != nil {
			return l, err
		}
		if _, ok := exit.State.(strategy.Exit); !ok {
			return exit, nil
		}
		if !filled {
			return strategy.Transition(exit, strategy.SellExecutionFailed{})
		}
		return strategy.Transition(exit, strategy.SellExecutionSucceeded{Now: t})
	}
	return l, nil
}

// Run executes rows in order and stops at the first error.
func (r *Runner) Run(ctx context.Context, rows []Row) ([]Step, error) {
	steps := make([]Step, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return steps, err
		}
		s, err := r.Step(ctx, row)
		if err != nil {
			return steps, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}
