package broker

import "github.com/ceerkle/dreichor-trading/market"

// LiveExecutor stands in for a real exchange connection. It performs no I/O
// and fills deterministically, exactly like the paper plane; a real
// connection replaces only this type.
type LiveExecutor struct{}

func (LiveExecutor) Plane() Plane { return Live }

func (LiveExecutor) Execute(intent market.OrderIntent, t market.LogicalTime) Outcome {
	return fill(Live, intent, t)
}
