package sqlite

import "database/sql"

// schema sets up the snapshot cache. Amounts are TEXT so decimals round-trip exactly.
// Record tables are keyed by position to keep upstream order.
const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id TEXT PRIMARY KEY,
    fetched_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_expenses (
    snapshot_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    id TEXT NOT NULL,
    description TEXT NOT NULL,
    category TEXT NOT NULL,
    date TEXT NOT NULL,
    payer_name TEXT NOT NULL,
    amount TEXT NOT NULL,
    amount_error TEXT,
    PRIMARY KEY (snapshot_id, position),
    FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS snapshot_expense_participants (
    snapshot_id TEXT NOT NULL,
    expense_position INTEGER NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    PRIMARY KEY (snapshot_id, expense_position, position),
    FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS snapshot_settlements (
    snapshot_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    id TEXT NOT NULL,
    payer_name TEXT NOT NULL,
    receiver_name TEXT NOT NULL,
    amount TEXT NOT NULL,
    amount_error TEXT,
    date TEXT NOT NULL,
    note TEXT,
    PRIMARY KEY (snapshot_id, position),
    FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_snapshots_fetched_at ON snapshots(fetched_at);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
