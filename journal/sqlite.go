package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores both the audit log and the snapshot log in one database.
// Rows are read back in insertion (seq) order, never by time or id.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	log.WithField("path", path).Debug("opened sqlite journal")
	return &SQLite{db: db}, nil
}

func (j *SQLite) Append(ctx context.Context, e Event) error {
	payload, err := EncodeEvent(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.Base().ID, err)
	}
	h := e.Base()
	ref, _ := DecisionRef(e)
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO audit_events
		(id, type, logical_time, decision_id, payload)
		VALUES (?, ?, ?, ?, ?)`,
		string(h.ID), string(h.Type), int64(h.LogicalTime), string(ref), string(payload),
	)
	return err
}

func (j *SQLite) ReadAll(ctx context.Context) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT seq, payload FROM audit_events ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			seq     int64
			payload string
		)
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, err
		}
		e, err := DecodeEvent([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("audit_events seq %d: %w", seq, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EventsForDecision returns the events referring to decision, in log order.
func (j *SQLite) EventsForDecision(ctx context.Context, decision string) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT payload FROM audit_events
		WHERE decision_id = ?
		ORDER BY seq ASC`, decision)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		e, err := DecodeEvent([]byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *SQLite) Write(ctx context.Context, s LedgerSnapshot) error {
	payload, err := EncodeSnapshot(s)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", s.SnapshotID, err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO ledger_snapshots
		(snapshot_id, plane, logical_time, payload)
		VALUES (?, ?, ?, ?)`,
		string(s.SnapshotID), string(s.Plane), int64(s.LogicalTime), string(payload),
	)
	return err
}

func (j *SQLite) ReadLatest(ctx context.Context) (LedgerSnapshot, bool, error) {
	var payload string
	err := j.db.QueryRowContext(ctx, `
		SELECT payload FROM ledger_snapshots
		ORDER BY seq DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return LedgerSnapshot{}, false, nil
	}
	if err != nil {
		return LedgerSnapshot{}, false, err
	}
	s, err := DecodeSnapshot([]byte(payload))
	if err != nil {
		return LedgerSnapshot{}, false, err
	}
	return s, true, nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
