package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// The UNIQUE constraints on payments.transaction_id, payment_records
// (group_id, user_id, round) and payouts (group_id, round) are the storage
// backstops for duplicate events and double payouts.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_by TEXT NOT NULL,
    amount INTEGER NOT NULL,
    total_members INTEGER NOT NULL,
    current_round INTEGER NOT NULL,
    total_rounds INTEGER NOT NULL,
    payout_order TEXT NOT NULL,
    count_policy_kind TEXT NOT NULL DEFAULT 'strict',
    count_policy_value INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    frequency TEXT NOT NULL,
    start_date INTEGER NOT NULL,
    version INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
    group_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    payment_status TEXT NOT NULL,
    last_payment_ref TEXT NOT NULL DEFAULT '',
    has_received_payout INTEGER NOT NULL DEFAULT 0,
    payout_round INTEGER NOT NULL DEFAULT 0,
    joined_at INTEGER NOT NULL,
    PRIMARY KEY (group_id, user_id),
    UNIQUE (group_id, position),
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS payments (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL UNIQUE,
    group_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    round INTEGER NOT NULL,
    amount INTEGER NOT NULL,
    method TEXT NOT NULL,
    source TEXT NOT NULL,
    status TEXT NOT NULL,
    gateway_payload TEXT,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (group_id) REFERENCES groups(id)
);

CREATE TABLE IF NOT EXISTS payment_records (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    round INTEGER NOT NULL,
    amount INTEGER NOT NULL,
    status TEXT NOT NULL,
    due_date INTEGER NOT NULL,
    paid_at INTEGER NOT NULL DEFAULT 0,
    is_late INTEGER NOT NULL DEFAULT 0,
    days_late INTEGER NOT NULL DEFAULT 0,
    payment_id TEXT NOT NULL DEFAULT '',
    UNIQUE (group_id, user_id, round),
    FOREIGN KEY (group_id) REFERENCES groups(id)
);

CREATE TABLE IF NOT EXISTS payouts (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    round INTEGER NOT NULL,
    recipient_id TEXT NOT NULL,
    amount INTEGER NOT NULL,
    status TEXT NOT NULL,
    processed_by TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    UNIQUE (group_id, round),
    FOREIGN KEY (group_id) REFERENCES groups(id)
);

CREATE INDEX IF NOT EXISTS idx_group_members_group_id ON group_members(group_id);
CREATE INDEX IF NOT EXISTS idx_payments_group_id ON payments(group_id);
CREATE INDEX IF NOT EXISTS idx_payment_records_group_round ON payment_records(group_id, round);
CREATE INDEX IF NOT EXISTS idx_payouts_group_id ON payouts(group_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
