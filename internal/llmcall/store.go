package llmcall

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed call journal.
type SQLiteStore struct {
	db *sql.DB
}

// QueryFilter specifies filters for listing calls.
type QueryFilter struct {
	JobID   string
	RunID   string
	Unit    *int
	Success *bool
	Limit   int
	Offset  int
}

// NewSQLiteStore opens (or creates) the journal at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err = db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err = s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS llm_calls (
			id            TEXT PRIMARY KEY,
			timestamp     DATETIME NOT NULL,
			latency_ms    INTEGER NOT NULL DEFAULT 0,
			job_id        TEXT NOT NULL,
			run_id        TEXT NOT NULL DEFAULT '',
			unit          INTEGER NOT NULL,
			attempt       INTEGER NOT NULL,
			prompt_key    TEXT NOT NULL DEFAULT '',
			prompt_hash   TEXT NOT NULL DEFAULT '',
			provider      TEXT NOT NULL DEFAULT '',
			model         TEXT NOT NULL DEFAULT '',
			proxy         TEXT NOT NULL DEFAULT '',
			input_tokens  INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			response_len  INTEGER NOT NULL DEFAULT 0,
			success       INTEGER NOT NULL,
			error         TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_llm_calls_job       ON llm_calls(job_id, unit, attempt);
		CREATE INDEX IF NOT EXISTS idx_llm_calls_timestamp ON llm_calls(timestamp);
	`)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record inserts a call.
func (s *SQLiteStore) Record(ctx context.Context, c *Call) error {
	if c == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO llm_calls
			(id, timestamp, latency_ms, job_id, run_id, unit, attempt, prompt_key, prompt_hash,
			 provider, model, proxy, input_tokens, output_tokens, response_len, success, error)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.Timestamp.UTC(), c.LatencyMs, c.JobID, c.RunID, c.Unit, c.Attempt,
		c.PromptKey, c.PromptHash, c.Provider, c.Model, c.Proxy,
		c.InputTokens, c.OutputTokens, c.ResponseLen, c.Success, c.Error,
	)
	if err != nil {
		return fmt.Errorf("record call %s: %w", c.ID, err)
	}
	return nil
}

// Get retrieves a single call by ID. Returns nil, nil when absent.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Call, error) {
	calls, err := s.query(ctx, "WHERE id = ?", []any{id}, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return nil, nil
	}
	return &calls[0], nil
}

// List retrieves calls matching the filter, oldest first.
func (s *SQLiteStore) List(ctx context.Context, filter QueryFilter) ([]Call, error) {
	var conds []string
	var args []any
	if filter.JobID != "" {
		conds = append(conds, "job_id = ?")
		args = append(args, filter.JobID)
	}
	if filter.RunID != "" {
		conds = append(conds, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Unit != nil {
		conds = append(conds, "unit = ?")
		args = append(args, *filter.Unit)
	}
	if filter.Success != nil {
		conds = append(conds, "success = ?")
		args = append(args, *filter.Success)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	return s.query(ctx, where, args, filter.Limit, filter.Offset)
}

// DeleteJob removes every call recorded for a job.
func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM llm_calls WHERE job_id = ?`, jobID)
	if err != nil {
		return 0, fmt.Errorf("delete calls for job %s: %w", jobID, err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) query(ctx context.Context, where string, args []any, limit, offset int) ([]Call, error) {
	q := `
		SELECT id, timestamp, latency_ms, job_id, run_id, unit, attempt, prompt_key, prompt_hash,
		       provider, model, proxy, input_tokens, output_tokens, response_len, success, error
		FROM llm_calls ` + where + ` ORDER BY timestamp ASC, unit ASC, attempt ASC`
	if limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		var c Call
		var ts time.Time
		if err := rows.Scan(
			&c.ID, &ts, &c.LatencyMs, &c.JobID, &c.RunID, &c.Unit, &c.Attempt,
			&c.PromptKey, &c.PromptHash, &c.Provider, &c.Model, &c.Proxy,
			&c.InputTokens, &c.OutputTokens, &c.ResponseLen, &c.Success, &c.Error,
		); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		c.Timestamp = ts
		calls = append(calls, c)
	}
	return calls, rows.Err()
}
