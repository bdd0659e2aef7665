// Package fetchlog records upstream fetch attempts in a SQLite database.
package fetchlog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/headline-dev/headline/pkg/models"
)

// Logger writes and queries fetch entries.
type Logger struct {
	db            *sql.DB
	retentionDays int
	done          chan struct{}
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// timeLayout is how created_at is stored: sortable text that SQLite date() understands.
const timeLayout = "2006-01-02 15:04:05.000"

// New opens the fetch log database and creates the schema.
// Entries older than retentionDays are removed hourly; 0 keeps everything.
func New(dbPath string, retentionDays int) (*Logger, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open fetch log db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate fetch log db: %w", err)
	}

	l := &Logger{
		db:            db,
		retentionDays: retentionDays,
		done:          make(chan struct{}),
	}

	if retentionDays > 0 {
		l.wg.Add(1)
		go l.retentionLoop()
	}

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS fetch_log (
		id          TEXT PRIMARY KEY,
		category    TEXT NOT NULL,
		country     TEXT NOT NULL DEFAULT '',
		outcome     TEXT NOT NULL,
		status_code INTEGER NOT NULL DEFAULT 0,
		records     INTEGER NOT NULL DEFAULT 0,
		latency_ms  INTEGER NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_fetch_created ON fetch_log(created_at)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_fetch_category ON fetch_log(category)`)
	return err
}

// Record inserts a fetch entry, assigning an ID and timestamp when missing.
func (l *Logger) Record(ctx context.Context, entry models.FetchEntry) error {
	if l == nil || l.db == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO fetch_log
		(id, category, country, outcome, status_code, records, latency_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Category, entry.Country, string(entry.Outcome),
		entry.StatusCode, entry.Records, entry.LatencyMs, entry.Error, entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record fetch: %w", err)
	}
	return nil
}

// Query returns fetch entries matching opts, newest first.
func (l *Logger) Query(ctx context.Context, opts models.FetchQueryOpts) ([]models.FetchEntry, error) {
	q := `SELECT id, category, country, outcome, status_code, records, latency_ms, error, created_at
		FROM fetch_log WHERE 1=1`
	var args []any

	if opts.Category != "" {
		q += " AND category = ?"
		args = append(args, opts.Category)
	}
	if opts.Outcome != "" {
		q += " AND outcome = ?"
		args = append(args, string(opts.Outcome))
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since.UTC().Format(timeLayout))
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query fetch log: %w", err)
	}
	defer rows.Close()

	var entries []models.FetchEntry
	for rows.Next() {
		var (
			e         models.FetchEntry
			outcome   string
			createdAt string
		)
		if err := rows.Scan(
			&e.ID, &e.Category, &e.Country, &outcome, &e.StatusCode,
			&e.Records, &e.LatencyMs, &e.Error, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan fetch row: %w", err)
		}
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		e.Outcome = models.FetchOutcome(outcome)
		e.CreatedAt = t
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns attempt counts grouped by category, outcome and day.
func (l *Logger) Stats(ctx context.Context) ([]models.FetchStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT category, outcome, date(created_at) AS day, count(*) AS cnt
		 FROM fetch_log GROUP BY category, outcome, day ORDER BY day DESC, category, outcome`)
	if err != nil {
		return nil, fmt.Errorf("fetch log stats: %w", err)
	}
	defer rows.Close()

	var stats []models.FetchStat
	for rows.Next() {
		var (
			s       models.FetchStat
			outcome string
			day     sql.NullString
		)
		if err := rows.Scan(&s.Category, &outcome, &day, &s.Count); err != nil {
			return nil, fmt.Errorf("scan fetch stat: %w", err)
		}
		s.Outcome = models.FetchOutcome(outcome)
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes entries older than the retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -l.retentionDays)
	res, err := l.db.ExecContext(ctx, `DELETE FROM fetch_log WHERE created_at < ?`, cutoff.Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("fetch log cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		l.wg.Wait()
		err = l.db.Close()
	})
	return err
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			_, _ = l.Cleanup(context.Background())
		}
	}
}
