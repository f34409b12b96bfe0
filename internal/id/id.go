// Package id derives every identifier in the system from its inputs.
//
// An id is two 64-bit FNV-1a sums, the second taken over the input prefixed
// with a per-site salt, laid out as a canonical UUID. Salts are part of each
// site's contract: changing one changes every id it has ever produced.
package id

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/google/uuid"

	"github.com/ceerkle/dreichor-trading/market"
)

const (
	SaltOrderIntent = "salt:step5|"
	SaltExecution   = "salt:step6|"
	SaltFeedback    = "salt:step10|"
	SaltMeta        = "salt:meta-v1|"
)

// Namespaces for Meta derivations.
const (
	NamespaceDecision = "DECISION_ID_V1"
	NamespaceAudit    = "AUDIT_EVENT_V1"
	NamespaceSnapshot = "SHADOW_LEDGER_SNAPSHOT_V1"
)

func sum64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// Derive returns the salted double FNV-1a id of input.
func Derive(salt, input string) market.UUID {
	var b uuid.UUID
	binary.BigEndian.PutUint64(b[:8], sum64(input))
	binary.BigEndian.PutUint64(b[8:], sum64(salt+input))
	return market.UUID(b.String())
}

// OrderIntent derives an intent id from the plain concatenation of its inputs.
func OrderIntent(instance market.UUID, m market.MarketID, side market.Side, t market.LogicalTime) market.UUID {
	return Derive(SaltOrderIntent, string(instance)+string(m)+string(side)+t.String())
}

// Execution derives an execution id from (intent, plane, time) only.
func Execution(intent market.UUID, plane string, t market.LogicalTime) market.UUID {
	return Derive(SaltExecution, string(intent)+"|"+plane+"|"+t.String())
}

// Feedback derives a feedback id. target is the serialized feedback target.
func Feedback(category, target string, t market.LogicalTime) market.UUID {
	return Derive(SaltFeedback, category+"|"+target+"|"+t.String())
}

// Meta derives ids for decisions, audit facts and snapshots.
func Meta(namespace, payload string) market.UUID {
	return Derive(SaltMeta, namespace+"|"+payload)
}
