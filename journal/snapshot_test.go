package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceerkle/dreichor-trading/broker"
	"github.com/ceerkle/dreichor-trading/internal/id"
	"github.com/ceerkle/dreichor-trading/ledger"
	"github.com/ceerkle/dreichor-trading/market"
)

func openLedger(t *testing.T) ledger.State {
	t.Helper()
	s, err := ledger.ApplyAll(ledger.New(broker.Paper), []broker.Outcome{{
		ExecutionID:    evID(40),
		OrderIntentID:  evID(20),
		Plane:          broker.Paper,
		Status:         broker.Filled,
		Side:           market.Buy,
		MarketID:       "BTCUSDT",
		FilledQuantity: "0.25",
	}})
	require.NoError(t, err)
	return s
}

func TestNewLedgerSnapshot(t *testing.T) {
	t.Parallel()

	s := openLedger(t)
	snap := NewLedgerSnapshot(s, 7)

	payload := "plane=PAPER|t=7|pos=" + s.Canonical()
	assert.Equal(t, id.Meta(id.NamespaceSnapshot, payload), snap.SnapshotID)
	assert.Equal(t, SnapshotType, snap.Type)
	assert.Equal(t, Version, snap.Version)
	assert.Equal(t, s, snap.Ledger())
	assert.Equal(t, snap, NewLedgerSnapshot(s, 7))
	assert.NotEqual(t, snap.SnapshotID, NewLedgerSnapshot(s, 8).SnapshotID)
}

func TestSnapshotEncoding(t *testing.T) {
	t.Parallel()

	snap := NewLedgerSnapshot(openLedger(t), 7)
	data, err := EncodeSnapshot(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"SHADOW_LEDGER_SNAPSHOT"`)

	back, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, snap, back)

	_, err = DecodeSnapshot([]byte(`{"snapshotId":"e0000000-0000-0000-0000-000000000001","type":"OTHER","version":1,"plane":"PAPER"}`))
	assert.ErrorIs(t, err, ErrMalformedRecord)
	_, err = DecodeSnapshot([]byte(`{"snapshotId":"e0000000-0000-0000-0000-000000000001","type":"SHADOW_LEDGER_SNAPSHOT","version":1,"plane":"DEMO"}`))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}
