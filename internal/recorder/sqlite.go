package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/desaga/py-support-resistance-finder/internal/model"
)

// SQLiteRecorder persists level runs to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the API read history while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS level_runs (
			id                TEXT PRIMARY KEY,
			timestamp         INTEGER NOT NULL,
			symbol            TEXT NOT NULL,
			period            TEXT NOT NULL,
			window_size       INTEGER NOT NULL,
			relative_distance REAL NOT NULL,
			source            TEXT,
			bars              INTEGER,
			last_close        REAL,
			trigger_name      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol_ts ON level_runs(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS levels (
			run_id   TEXT NOT NULL REFERENCES level_runs(id) ON DELETE CASCADE,
			kind     TEXT NOT NULL,
			position INTEGER NOT NULL,
			price    REAL NOT NULL,
			PRIMARY KEY (run_id, kind, position)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(snap *RunSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO level_runs
		(id, timestamp, symbol, period, window_size, relative_distance, source, bars, last_close, trigger_name)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		snap.ID, snap.CreatedAt.Unix(), snap.Symbol, string(snap.Period),
		snap.Window, snap.RelativeDistance, snap.Source, snap.Bars, snap.LastClose, snap.Trigger,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO levels (run_id, kind, position, price) VALUES (?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare levels: %w", err)
	}
	defer stmt.Close()

	for kind, values := range map[model.LevelKind][]float64{
		model.Support:    snap.Support,
		model.Resistance: snap.Resistance,
	} {
		for i, v := range values {
			if _, err := stmt.Exec(snap.ID, string(kind), i, v); err != nil {
				return fmt.Errorf("insert %s level: %w", kind, err)
			}
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecentRuns(ctx context.Context, symbol string, limit int) ([]RunSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT
		id, timestamp, symbol, period, window_size, relative_distance, source, bars, last_close, trigger_name
		FROM level_runs
		WHERE (? = '' OR symbol = ?)
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?`, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSnapshot{}
	for rows.Next() {
		var (
			s      RunSnapshot
			ts     int64
			period string
		)
		if err := rows.Scan(&s.ID, &ts, &s.Symbol, &period, &s.Window, &s.RelativeDistance,
			&s.Source, &s.Bars, &s.LastClose, &s.Trigger); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.Period = model.Period(period)
		s.CreatedAt = time.Unix(ts, 0).UTC()
		s.Support = []float64{}
		s.Resistance = []float64{}
		runs = append(runs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if err := r.loadLevels(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (r *SQLiteRecorder) loadLevels(ctx context.Context, s *RunSnapshot) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, price FROM levels WHERE run_id = ? ORDER BY kind, position`, s.ID)
	if err != nil {
		return fmt.Errorf("query levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind  string
			price float64
		)
		if err := rows.Scan(&kind, &price); err != nil {
			return fmt.Errorf("scan level: %w", err)
		}
		switch model.LevelKind(kind) {
		case model.Support:
			s.Support = append(s.Support, price)
		case model.Resistance:
			s.Resistance = append(s.Resistance, price)
		}
	}
	return rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
