package broker

import "github.com/ceerkle/dreichor-trading/market"

// PaperExecutor simulates a venue that fills every intent in full.
type PaperExecutor struct{}

func (PaperExecutor) Plane() Plane { return Paper }

func (PaperExecutor) Execute(intent market.OrderIntent, t market.LogicalTime) Outcome {
	return fill(Paper, intent, t)
}
