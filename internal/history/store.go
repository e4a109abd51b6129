// Package history persists harness runs and their case outcomes in SQLite
// so regressions can be traced across template revisions.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/templatecheck/internal/models"
)

// ErrRunNotFound is returned when no run matches an id or id prefix.
var ErrRunNotFound = errors.New("run not found")

// maxStoredOutput bounds the output tail stored per failed case.
const maxStoredOutput = 16 * 1024

// RunRecord is one stored harness run.
type RunRecord struct {
	ID        string
	Revision  string
	StartedAt time.Time
	Duration  time.Duration
	Total     int
	Passed    int
	Failed    int
}

// CaseRecord is one stored case outcome.
type CaseRecord struct {
	ID        int64
	RunID     string
	Position  int
	Template  string
	Kind      models.CaseKind
	Passed    bool
	Message   string
	Output    string
	Duration  time.Duration
	StartedAt time.Time
}

// Label returns the display name of the case, e.g. "minimal (dev)".
func (c CaseRecord) Label() string {
	return fmt.Sprintf("%s (%s)", c.Template, c.Kind)
}

// CaseStats aggregates outcomes of one template phase across runs.
type CaseStats struct {
	Template   string
	Kind       models.CaseKind
	Runs       int
	Failures   int
	LastFailed time.Time // zero if it never failed
}

// PassRate returns the fraction of passing runs, 0 when there are none.
func (s CaseStats) PassRate() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.Runs-s.Failures) / float64(s.Runs)
}

// Store manages the SQLite run history.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the history database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	// busy_timeout must be set first so later statements wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// execWithRetry retries statements that fail with "database is locked".
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores run and all of its cases atomically.
func (s *Store) RecordRun(ctx context.Context, run *models.RunResult) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if run.RunID == "" {
		return fmt.Errorf("run id cannot be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, revision, started_at, duration_ms, total, passed, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Revision, run.StartedAt.UTC(), run.Duration.Milliseconds(),
		run.Total, run.Passed, run.Failed,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO case_results
		(run_id, position, template, kind, passed, message, output, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare case insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range run.Cases {
		output := ""
		if !c.Passed {
			output = tail(c.Output, maxStoredOutput)
		}
		_, err := stmt.ExecContext(ctx,
			run.RunID, i, c.Template.Name, string(c.Kind), c.Passed,
			c.Message, output, c.Duration.Milliseconds(), c.StartedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert case %s: %w", c.Label(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT id, revision, started_at, duration_ms, total, passed, failed
		FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// GetRun finds a run by full id or unique id prefix.
func (s *Store) GetRun(ctx context.Context, idOrPrefix string) (*RunRecord, error) {
	if idOrPrefix == "" {
		return nil, ErrRunNotFound
	}
	pattern := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(idOrPrefix) + "%"

	rows, err := s.db.QueryContext(ctx, `SELECT id, revision, started_at, duration_ms, total, passed, failed
		FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\'
		ORDER BY (id = ?) DESC LIMIT 2`, idOrPrefix, pattern, idOrPrefix)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	var found []*RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, idOrPrefix)
	case found[0].ID == idOrPrefix || len(found) == 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", idOrPrefix)
	}
}

// GetCases returns the cases of a run in their original order.
func (s *Store) GetCases(ctx context.Context, runID string) ([]CaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, position, template, kind, passed, message, output, duration_ms, started_at
		FROM case_results WHERE run_id = ? ORDER BY position ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var cases []CaseRecord
	for rows.Next() {
		var (
			c          CaseRecord
			kind       string
			message    sql.NullString
			output     sql.NullString
			durationMs int64
			startedAt  sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.RunID, &c.Position, &c.Template, &kind, &c.Passed,
			&message, &output, &durationMs, &startedAt); err != nil {
			return nil, fmt.Errorf("scan case row: %w", err)
		}
		c.Kind = models.CaseKind(kind)
		c.Message = message.String
		c.Output = output.String
		c.Duration = time.Duration(durationMs) * time.Millisecond
		if startedAt.Valid {
			c.StartedAt = startedAt.Time
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case rows: %w", err)
	}
	return cases, nil
}

// GetCaseStats aggregates every stored case by template and phase.
func (s *Store) GetCaseStats(ctx context.Context) ([]CaseStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT c.template, c.kind, COUNT(*),
			SUM(CASE WHEN c.passed THEN 0 ELSE 1 END),
			MAX(CASE WHEN c.passed THEN NULL ELSE r.started_at END)
		FROM case_results c JOIN runs r ON r.id = c.run_id
		GROUP BY c.template, c.kind
		ORDER BY c.template ASC, MIN(c.position) ASC`)
	if err != nil {
		return nil, fmt.Errorf("query case stats: %w", err)
	}
	defer rows.Close()

	var stats []CaseStats
	for rows.Next() {
		var (
			st         CaseStats
			kind       string
			lastFailed sql.NullString
		)
		if err := rows.Scan(&st.Template, &kind, &st.Runs, &st.Failures, &lastFailed); err != nil {
			return nil, fmt.Errorf("scan case stats: %w", err)
		}
		st.Kind = models.CaseKind(kind)
		if lastFailed.Valid {
			st.LastFailed = parseTimestamp(lastFailed.String)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case stats: %w", err)
	}
	return stats, nil
}

// DeleteRunsBefore removes runs (and their cases) started before cutoff.
func (s *Store) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM case_results WHERE run_id IN
		(SELECT id FROM runs WHERE started_at < ?)`, cutoff.UTC()); err != nil {
		return 0, fmt.Errorf("delete old cases: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var (
		r          RunRecord
		durationMs int64
	)
	if err := row.Scan(&r.ID, &r.Revision, &r.StartedAt, &durationMs, &r.Total, &r.Passed, &r.Failed); err != nil {
		return nil, fmt.Errorf("scan run row: %w", err)
	}
	r.Duration = time.Duration(durationMs) * time.Millisecond
	return &r, nil
}

// parseTimestamp parses the formats go-sqlite3 writes for time.Time values.
// Aggregates lose the column type, so they come back as plain text.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
