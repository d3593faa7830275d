package database

// SQL migrations for the client storage database.
// All migrations use IF NOT EXISTS to be idempotent.

// migrationClientStorage holds the durable key/value client state (token, user).
const migrationClientStorage = `
CREATE TABLE IF NOT EXISTS client_storage (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    encrypted INTEGER DEFAULT 0,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// migrationFetchLog records the outcome of every view fetch for diagnostics.
const migrationFetchLog = `
CREATE TABLE IF NOT EXISTS fetch_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    view TEXT NOT NULL,
    status TEXT NOT NULL,
    records INTEGER DEFAULT 0,
    error_message TEXT,
    started_at DATETIME NOT NULL,
    completed_at DATETIME,
    duration_ms INTEGER
);
`

const migrationIndexes = `
CREATE INDEX IF NOT EXISTS idx_fetch_log_view ON fetch_log(view);
CREATE INDEX IF NOT EXISTS idx_fetch_log_started ON fetch_log(started_at);
`
