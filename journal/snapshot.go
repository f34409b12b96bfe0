package journal

import (
	"encoding/json"
	"fmt"

	"github.com/ceerkle/dreichor-trading/broker"
	"github.com/ceerkle/dreichor-trading/internal/id"
	"github.com/ceerkle/dreichor-trading/ledger"
	"github.com/ceerkle/dreichor-trading/market"
)

const SnapshotType = "SHADOW_LEDGER_SNAPSHOT"

// LedgerSnapshot is a full point-in-time copy of one plane's ledger.
type LedgerSnapshot struct {
	SnapshotID  market.UUID                         `json:"snapshotId"`
	Type        string                              `json:"type"`
	Version     int                                 `json:"version"`
	LogicalTime market.LogicalTime                  `json:"logicalTime"`
	Plane       broker.Plane                        `json:"plane"`
	Positions   map[market.MarketID]ledger.Position `json:"positions"`
}

// SnapshotID derives the id from plane, time and the canonical positions.
func SnapshotID(s ledger.State, t market.LogicalTime) market.UUID {
	payload := fmt.Sprintf("plane=%s|t=%s|pos=%s", s.Plane, t, s.Canonical())
	return id.Meta(id.NamespaceSnapshot, payload)
}

func NewLedgerSnapshot(s ledger.State, t market.LogicalTime) LedgerSnapshot {
	positions := make(map[market.MarketID]ledger.Position, len(s.Positions))
	for k, v := range s.Positions {
		positions[k] = v
	}
	return LedgerSnapshot{
		SnapshotID:  SnapshotID(s, t),
		Type:        SnapshotType,
		Version:     Version,
		LogicalTime: t,
		Plane:       s.Plane,
		Positions:   positions,
	}
}

// Ledger rebuilds the ledger state held by the snapshot.
func (s LedgerSnapshot) Ledger() ledger.State {
	st := ledger.New(s.Plane)
	for k, v := range s.Positions {
		st.Positions[k] = v
	}
	return st
}

func EncodeSnapshot(s LedgerSnapshot) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSnapshot(data []byte) (LedgerSnapshot, error) {
	var s LedgerSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return LedgerSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if s.Type != SnapshotType {
		return LedgerSnapshot{}, fmt.Errorf("%w: snapshot type %q", ErrMalformedRecord, s.Type)
	}
	if s.Version != Version {
		return LedgerSnapshot{}, fmt.Errorf("%w: snapshot %s has version %d", ErrMalformedRecord, s.SnapshotID, s.Version)
	}
	if _, err := broker.ParsePlane(string(s.Plane)); err != nil {
		return LedgerSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return s, nil
}
