// Package store provides the SQLite-backed cache for parsed sessions and
// their findings.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/0xKoda/tracekit/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Cache is the on-disk analysis cache. Sessions are keyed by source file
// path and invalidated when the file's mtime or size changes.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// FileInfo holds the tracked mtime and size for a source file.
type FileInfo struct {
	MtimeNs   int64
	SizeBytes int64
}

// TrackedFiles returns a map of file_path -> FileInfo for every cached
// session, used to decide which files need re-parsing.
func (c *Cache) TrackedFiles() (map[string]FileInfo, error) {
	rows, err := c.db.Query("SELECT file_path, mtime_ns, size_bytes FROM sessions")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]FileInfo)
	for rows.Next() {
		var path string
		var fi FileInfo
		if err := rows.Scan(&path, &fi.MtimeNs, &fi.SizeBytes); err != nil {
			return nil, err
		}
		result[path] = fi
	}
	return result, rows.Err()
}

// Save stores a parsed session, its findings, and the source file identity
// in one transaction.
func (c *Cache) Save(s *model.Session, findings []model.Finding, mtimeNs, sizeBytes int64) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", s.ID, err)
	}

	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.Exec(`INSERT OR REPLACE INTO sessions
		(file_path, session_id, agent, cwd, title, model, started_at, ended_at,
		 turns, input_tokens, output_tokens, cache_read_tokens, cache_write_tokens,
		 cost_usd, payload, mtime_ns, size_bytes, parsed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Path, s.ID, string(s.Agent), s.CWD, s.Title, s.Model,
		timeText(s.StartedAt), timeText(s.EndedAt),
		len(s.Turns), s.Usage.Input, s.Usage.Output, s.Usage.CacheRead, s.Usage.CacheWrite,
		s.CostUSD, string(payload), mtimeNs, sizeBytes, now,
	)
	if err != nil {
		return err
	}

	// REPLACE already cascades old findings away; the delete keeps the
	// invariant explicit.
	if _, err := tx.Exec("DELETE FROM findings WHERE file_path = ?", s.Path); err != nil {
		return err
	}
	for i, f := range findings {
		evidence, err := json.Marshal(f.EvidenceTurns)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO findings
			(file_path, seq, kind, evidence, wasted_tokens, wasted_cost_usd, confidence, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.Path, i, string(f.Kind), string(evidence),
			f.WastedTokens, f.WastedCostUSD, f.Confidence, f.Message,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Lookup returns the cached session and findings for a source file. ok is
// false when the file is unknown or its recorded identity no longer matches.
func (c *Cache) Lookup(path string, mtimeNs, sizeBytes int64) (*model.Session, []model.Finding, bool, error) {
	var payload string
	var gotMtime, gotSize int64
	err := c.db.QueryRow("SELECT payload, mtime_ns, size_bytes FROM sessions WHERE file_path = ?", path).
		Scan(&payload, &gotMtime, &gotSize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	if gotMtime != mtimeNs || gotSize != sizeBytes {
		return nil, nil, false, nil
	}

	var s model.Session
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return nil, nil, false, fmt.Errorf("decoding cached session %s: %w", path, err)
	}

	rows, err := c.db.Query(`SELECT kind, evidence, wasted_tokens, wasted_cost_usd, confidence, message
		FROM findings WHERE file_path = ? ORDER BY seq`, path)
	if err != nil {
		return nil, nil, false, err
	}
	defer func() { _ = rows.Close() }()

	var findings []model.Finding
	for rows.Next() {
		var f model.Finding
		var kind, evidence string
		if err := rows.Scan(&kind, &evidence, &f.WastedTokens, &f.WastedCostUSD, &f.Confidence, &f.Message); err != nil {
			return nil, nil, false, err
		}
		f.Kind = model.FindingKind(kind)
		f.SessionID = s.ID
		if err := json.Unmarshal([]byte(evidence), &f.EvidenceTurns); err != nil {
			return nil, nil, false, fmt.Errorf("decoding cached evidence for %s: %w", path, err)
		}
		findings = append(findings, f)
	}
	return &s, findings, true, rows.Err()
}

// Prune drops cached sessions whose source file is no longer present,
// returning how many were removed. Findings follow by cascade.
func (c *Cache) Prune(existing map[string]bool) (int, error) {
	rows, err := c.db.Query("SELECT file_path FROM sessions")
	if err != nil {
		return 0, err
	}
	var stale []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			_ = rows.Close()
			return 0, err
		}
		if !existing[path] {
			stale = append(stale, path)
		}
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	for _, path := range stale {
		if _, err := tx.Exec("DELETE FROM sessions WHERE file_path = ?", path); err != nil {
			return 0, err
		}
	}
	return len(stale), tx.Commit()
}

// SessionCount returns the number of cached sessions.
func (c *Cache) SessionCount() (int, error) {
	var count int
	err := c.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count)
	return count, err
}

// CaptureRun records one capture invocation.
type CaptureRun struct {
	ID         string
	Agent      string
	StartedAt  time.Time
	FinishedAt time.Time
	Found      int
	Parsed     int
	Failed     int
}

// SaveRun upserts a capture run record.
func (c *Cache) SaveRun(run CaptureRun) error {
	_, err := c.db.Exec(`INSERT OR REPLACE INTO capture_runs
		(id, agent, started_at, finished_at, sessions_found, sessions_parsed, sessions_failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Agent, run.StartedAt.UTC().Format(time.RFC3339), timeText(run.FinishedAt),
		run.Found, run.Parsed, run.Failed,
	)
	return err
}

// LastRun returns the most recent capture run, if any.
func (c *Cache) LastRun() (CaptureRun, bool, error) {
	var run CaptureRun
	var started, finished string
	err := c.db.QueryRow(`SELECT id, agent, started_at, finished_at,
		sessions_found, sessions_parsed, sessions_failed
		FROM capture_runs ORDER BY started_at DESC, id DESC LIMIT 1`).
		Scan(&run.ID, &run.Agent, &started, &finished, &run.Found, &run.Parsed, &run.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return CaptureRun{}, false, nil
	}
	if err != nil {
		return CaptureRun{}, false, err
	}
	run.StartedAt, _ = time.Parse(time.RFC3339, started)
	if finished != "" {
		run.FinishedAt, _ = time.Parse(time.RFC3339, finished)
	}
	return run, true, nil
}

func timeText(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
