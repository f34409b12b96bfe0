// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL,
	type TEXT NOT NULL,
	logical_time INTEGER NOT NULL,
	decision_id TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_snapshots (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	snapshot_id TEXT NOT NULL,
	plane TEXT NOT NULL,
	logical_time INTEGER NOT NULL,
	payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_decision ON audit_events(decision_id);
`
