package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/interval-research/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// A single connection serializes writers so one interval batch can never
// interleave with another.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS service_intervals (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id            INTEGER NOT NULL,
	car_id             INTEGER NOT NULL,
	service_item       TEXT NOT NULL,
	interval_miles     INTEGER,
	interval_months    INTEGER,
	priority           TEXT NOT NULL DEFAULT 'medium',
	cost_estimate_low  REAL,
	cost_estimate_high REAL,
	notes              TEXT NOT NULL DEFAULT '',
	source             TEXT NOT NULL DEFAULT 'user_entered',
	is_active          INTEGER NOT NULL DEFAULT 1,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_service_intervals_car ON service_intervals(user_id, car_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_service_intervals_active_item
	ON service_intervals(car_id, lower(service_item)) WHERE is_active = 1;

CREATE TABLE IF NOT EXISTS research_logs (
	id              TEXT PRIMARY KEY,
	user_id         INTEGER NOT NULL DEFAULT 0,
	car_id          INTEGER NOT NULL DEFAULT 0,
	make            TEXT NOT NULL,
	model           TEXT NOT NULL,
	year            INTEGER NOT NULL,
	engine_type     TEXT NOT NULL DEFAULT '',
	sources_checked TEXT NOT NULL DEFAULT '[]',
	intervals_found INTEGER NOT NULL DEFAULT 0,
	success_rate    REAL NOT NULL DEFAULT 0,
	confidence      INTEGER NOT NULL DEFAULT 0,
	cache_hit       INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_research_logs_created_at ON research_logs(created_at);
CREATE INDEX IF NOT EXISTS idx_research_logs_make ON research_logs(make);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const sqliteIntervalColumns = `id, user_id, car_id, service_item, interval_miles, interval_months, priority,
	cost_estimate_low, cost_estimate_high, notes, source, is_active, created_at, updated_at`

func (s *SQLiteStore) ActiveIntervals(ctx context.Context, userID, carID int64) ([]model.ServiceInterval, error) {
	return sqliteActiveIntervals(ctx, s.db, userID, carID)
}

func sqliteActiveIntervals(ctx context.Context, q sqlQuerier, userID, carID int64) ([]model.ServiceInterval, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+sqliteIntervalColumns+` FROM service_intervals
		 WHERE user_id = ? AND car_id = ? AND is_active = 1
		 ORDER BY id`,
		userID, carID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list active intervals for car %d", carID)
	}
	defer rows.Close()

	var out []model.ServiceInterval
	for rows.Next() {
		iv, err := scanInterval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *iv)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list active intervals iterate")
}

func (s *SQLiteStore) GetInterval(ctx context.Context, userID, id int64) (*model.ServiceInterval, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteIntervalColumns+` FROM service_intervals WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	iv, err := scanInterval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: interval %d", id)
	}
	return iv, err
}

func (s *SQLiteStore) DeactivateInterval(ctx context.Context, userID, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE service_intervals SET is_active = 0, updated_at = ? WHERE id = ? AND user_id = ? AND is_active = 1`,
		time.Now().UTC(), id, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: deactivate interval %d", id)
	}
	return checkRowsAffected(res, "interval", id)
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx IntervalTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) ActiveIntervals(ctx context.Context, userID, carID int64) ([]model.ServiceInterval, error) {
	return sqliteActiveIntervals(ctx, t.tx, userID, carID)
}

func (t *sqliteTx) InsertInterval(ctx context.Context, iv *model.ServiceInterval) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO service_intervals (user_id, car_id, service_item, interval_miles, interval_months, priority,
			cost_estimate_low, cost_estimate_high, notes, source, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		iv.UserID, iv.CarID, iv.ServiceItem, iv.IntervalMiles, iv.IntervalMonths, string(iv.Priority),
		iv.CostEstimateLow, iv.CostEstimateHigh, iv.Notes, iv.Source, iv.IsActive, iv.CreatedAt, iv.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert interval %q", iv.ServiceItem)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: last insert id")
	}
	iv.ID = id
	return nil
}

func (t *sqliteTx) UpdateInterval(ctx context.Context, iv *model.ServiceInterval) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE service_intervals SET service_item = ?, interval_miles = ?, interval_months = ?, priority = ?,
			cost_estimate_low = ?, cost_estimate_high = ?, notes = ?, source = ?, updated_at = ?
		 WHERE id = ?`,
		iv.ServiceItem, iv.IntervalMiles, iv.IntervalMonths, string(iv.Priority),
		iv.CostEstimateLow, iv.CostEstimateHigh, iv.Notes, iv.Source, iv.UpdatedAt, iv.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update interval %d", iv.ID)
	}
	return checkRowsAffected(res, "interval", iv.ID)
}

func (s *SQLiteStore) SaveResearchLog(ctx context.Context, log *model.ResearchLog) error {
	sources, err := json.Marshal(nonNil(log.SourcesChecked))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sources checked")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO research_logs (id, user_id, car_id, make, model, year, engine_type, sources_checked,
			intervals_found, success_rate, confidence, cache_hit, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.UserID, log.CarID, log.Make, log.Model, log.Year, string(log.EngineType), string(sources),
		log.IntervalsFound, log.SuccessRate, log.Confidence, log.CacheHit, log.Error, log.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert research log %s", log.ID)
}

func (s *SQLiteStore) ListResearchLogs(ctx context.Context, filter LogFilter) ([]model.ResearchLog, error) {
	query := `SELECT id, user_id, car_id, make, model, year, engine_type, sources_checked, intervals_found,
		success_rate, confidence, cache_hit, error, created_at FROM research_logs WHERE 1=1`
	var args []any

	if filter.Make != "" {
		query += ` AND lower(make) = lower(?)`
		args = append(args, filter.Make)
	}
	if filter.UserID != 0 {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.OnlyFailed {
		query += ` AND error != ''`
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list research logs")
	}
	defer rows.Close()

	var logs []model.ResearchLog
	for rows.Next() {
		var l model.ResearchLog
		var engine, sources string
		if err := rows.Scan(&l.ID, &l.UserID, &l.CarID, &l.Make, &l.Model, &l.Year, &engine, &sources,
			&l.IntervalsFound, &l.SuccessRate, &l.Confidence, &l.CacheHit, &l.Error, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan research log")
		}
		l.EngineType = model.EngineType(engine)
		if err := json.Unmarshal([]byte(sources), &l.SourcesChecked); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal sources for log %s", l.ID)
		}
		logs = append(logs, l)
	}
	return logs, eris.Wrap(rows.Err(), "sqlite: list research logs iterate")
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %d", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanInterval(row scannable) (*model.ServiceInterval, error) {
	var iv model.ServiceInterval
	var priority string
	err := row.Scan(&iv.ID, &iv.UserID, &iv.CarID, &iv.ServiceItem, &iv.IntervalMiles, &iv.IntervalMonths,
		&priority, &iv.CostEstimateLow, &iv.CostEstimateHigh, &iv.Notes, &iv.Source, &iv.IsActive,
		&iv.CreatedAt, &iv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "scan interval")
	}
	iv.Priority = model.Priority(priority)
	return &iv, nil
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
