package market

import (
	"fmt"
	"strings"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(s)) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("%w: side %q", ErrInvalidValue, s)
}

// OrderIntent is a proposed, not yet executed, allocation order.
type OrderIntent struct {
	ID         UUID     `json:"id"`
	Side       Side     `json:"side"`
	MarketID   MarketID `json:"marketId"`
	Allocation Decimal  `json:"allocation"`
}

// Position is the single open holding of a strategy instance.
// ID and EntryExecutionID both name the filled buy that opened it.
type Position struct {
	ID               string   `json:"id"`
	MarketID         MarketID `json:"marketId"`
	Size             Decimal  `json:"size"`
	EntryExecutionID UUID     `json:"entryExecutionId"`
}

// Decision is the upstream evaluation a tick is audited against.
type Decision struct {
	Class       DecisionClass `json:"decisionClass"`
	ReasonCodes []ReasonCode  `json:"reasonCodes"`
	LogicalTime LogicalTime   `json:"logicalTime"`
}

// JoinedReasons renders the reason codes comma separated, in order.
func (d Decision) JoinedReasons() string {
	parts := make([]string, len(d.ReasonCodes))
	for i, c := range d.ReasonCodes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}
