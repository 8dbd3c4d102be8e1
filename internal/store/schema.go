package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    file_path            TEXT PRIMARY KEY,
    session_id           TEXT NOT NULL,
    agent                TEXT NOT NULL,
    cwd                  TEXT,
    title                TEXT,
    model                TEXT,
    started_at           TEXT,
    ended_at             TEXT,
    turns                INTEGER NOT NULL,
    input_tokens         INTEGER NOT NULL,
    output_tokens        INTEGER NOT NULL,
    cache_read_tokens    INTEGER NOT NULL,
    cache_write_tokens   INTEGER NOT NULL,
    cost_usd             REAL NOT NULL,
    payload              TEXT NOT NULL,
    mtime_ns             INTEGER NOT NULL,
    size_bytes           INTEGER NOT NULL,
    parsed_at            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS findings (
    file_path            TEXT NOT NULL REFERENCES sessions(file_path) ON DELETE CASCADE,
    seq                  INTEGER NOT NULL,
    kind                 TEXT NOT NULL,
    evidence             TEXT NOT NULL,
    wasted_tokens        INTEGER NOT NULL,
    wasted_cost_usd      REAL NOT NULL,
    confidence           REAL NOT NULL,
    message              TEXT NOT NULL,
    PRIMARY KEY (file_path, seq)
);

CREATE TABLE IF NOT EXISTS capture_runs (
    id                   TEXT PRIMARY KEY,
    agent                TEXT NOT NULL,
    started_at           TEXT NOT NULL,
    finished_at          TEXT,
    sessions_found       INTEGER NOT NULL DEFAULT 0,
    sessions_parsed      INTEGER NOT NULL DEFAULT 0,
    sessions_failed      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sessions_session_id ON sessions(session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_agent ON sessions(agent);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
`
