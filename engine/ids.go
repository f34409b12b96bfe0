package engine

import (
	"strings"

	"github.com/ceerkle/dreichor-trading/internal/id"
	"github.com/ceerkle/dreichor-trading/journal"
	"github.com/ceerkle/dreichor-trading/market"
)

// DecisionID derives the id of a decision from the instance, its class,
// its time and its reason codes in order.
func DecisionID(instance market.UUID, d market.Decision) market.UUID {
	payload := strings.Join([]string{
		string(instance),
		string(d.Class),
		d.LogicalTime.String(),
		d.JoinedReasons(),
	}, "|")
	return id.Meta(id.NamespaceDecision, payload)
}

// AuditID derives an audit event id from its type, decision, an optional
// discriminator and the logical time.
func AuditID(typ journal.EventType, decision market.UUID, discriminator string, t market.LogicalTime) market.UUID {
	parts := []string{string(typ), string(decision)}
	if discriminator != "" {
		parts = append(parts, discriminator)
	}
	parts = append(parts, "t="+t.String())
	return id.Meta(id.NamespaceAudit, strings.Join(parts, "|"))
}
