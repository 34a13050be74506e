package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/interval-research/internal/db"
	"github.com/sells-group/interval-research/internal/model"
	"github.com/sells-group/interval-research/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool, retrying the
// initial ping on transient failures.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig, backoff resilience.Backoff) (*PostgresStore, error) {
	pool, err := db.Open(ctx, connString, poolCfg, backoff)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS service_intervals (
	id                 BIGSERIAL PRIMARY KEY,
	user_id            BIGINT NOT NULL,
	car_id             BIGINT NOT NULL,
	service_item       TEXT NOT NULL,
	interval_miles     INTEGER,
	interval_months    INTEGER,
	priority           TEXT NOT NULL DEFAULT 'medium',
	cost_estimate_low  DOUBLE PRECISION,
	cost_estimate_high DOUBLE PRECISION,
	notes              TEXT NOT NULL DEFAULT '',
	source             TEXT NOT NULL DEFAULT 'user_entered',
	is_active          BOOLEAN NOT NULL DEFAULT true,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_service_intervals_car ON service_intervals(user_id, car_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_service_intervals_active_item
	ON service_intervals(car_id, lower(service_item)) WHERE is_active;

CREATE TABLE IF NOT EXISTS research_logs (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id         BIGINT NOT NULL DEFAULT 0,
	car_id          BIGINT NOT NULL DEFAULT 0,
	make            TEXT NOT NULL,
	model           TEXT NOT NULL,
	year            INTEGER NOT NULL,
	engine_type     TEXT NOT NULL DEFAULT '',
	sources_checked JSONB NOT NULL DEFAULT '[]',
	intervals_found INTEGER NOT NULL DEFAULT 0,
	success_rate    DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence      INTEGER NOT NULL DEFAULT 0,
	cache_hit       BOOLEAN NOT NULL DEFAULT false,
	error           TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_research_logs_created_at ON research_logs(created_at);
CREATE INDEX IF NOT EXISTS idx_research_logs_make ON research_logs(lower(make));
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// pgQuerier is satisfied by both db.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const pgIntervalColumns = `id, user_id, car_id, service_item, interval_miles, interval_months, priority,
	cost_estimate_low, cost_estimate_high, notes, source, is_active, created_at, updated_at`

func (s *PostgresStore) ActiveIntervals(ctx context.Context, userID, carID int64) ([]model.ServiceInterval, error) {
	return pgActiveIntervals(ctx, s.pool, userID, carID, false)
}

func pgActiveIntervals(ctx context.Context, q pgQuerier, userID, carID int64, lock bool) ([]model.ServiceInterval, error) {
	query := `SELECT ` + pgIntervalColumns + ` FROM service_intervals
		WHERE user_id = $1 AND car_id = $2 AND is_active ORDER BY id`
	if lock {
		query += ` FOR UPDATE`
	}

	rows, err := q.Query(ctx, query, userID, carID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list active intervals for car %d", carID)
	}
	defer rows.Close()

	var out []model.ServiceInterval
	for rows.Next() {
		iv, err := scanPgInterval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *iv)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list active intervals iterate")
}

func (s *PostgresStore) GetInterval(ctx context.Context, userID, id int64) (*model.ServiceInterval, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgIntervalColumns+` FROM service_intervals WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	iv, err := scanPgInterval(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: interval %d", id)
	}
	return iv, err
}

func (s *PostgresStore) DeactivateInterval(ctx context.Context, userID, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE service_intervals SET is_active = false, updated_at = $1 WHERE id = $2 AND user_id = $3 AND is_active`,
		time.Now().UTC(), id, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: deactivate interval %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "interval %d", id)
	}
	return nil
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx IntervalTx) error) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

// ActiveIntervals takes row locks on the snapshot so a concurrent batch for
// the same car waits until this one commits.
func (t *pgTx) ActiveIntervals(ctx context.Context, userID, carID int64) ([]model.ServiceInterval, error) {
	return pgActiveIntervals(ctx, t.tx, userID, carID, true)
}

func (t *pgTx) InsertInterval(ctx context.Context, iv *model.ServiceInterval) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO service_intervals (user_id, car_id, service_item, interval_miles, interval_months, priority,
			cost_estimate_low, cost_estimate_high, notes, source, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`,
		iv.UserID, iv.CarID, iv.ServiceItem, iv.IntervalMiles, iv.IntervalMonths, string(iv.Priority),
		iv.CostEstimateLow, iv.CostEstimateHigh, iv.Notes, iv.Source, iv.IsActive, iv.CreatedAt, iv.UpdatedAt,
	).Scan(&iv.ID)
	return eris.Wrapf(err, "postgres: insert interval %q", iv.ServiceItem)
}

func (t *pgTx) UpdateInterval(ctx context.Context, iv *model.ServiceInterval) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE service_intervals SET service_item = $1, interval_miles = $2, interval_months = $3, priority = $4,
			cost_estimate_low = $5, cost_estimate_high = $6, notes = $7, source = $8, updated_at = $9
		 WHERE id = $10`,
		iv.ServiceItem, iv.IntervalMiles, iv.IntervalMonths, string(iv.Priority),
		iv.CostEstimateLow, iv.CostEstimateHigh, iv.Notes, iv.Source, iv.UpdatedAt, iv.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update interval %d", iv.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "interval %d", iv.ID)
	}
	return nil
}

func (s *PostgresStore) SaveResearchLog(ctx context.Context, log *model.ResearchLog) error {
	sources, err := json.Marshal(nonNil(log.SourcesChecked))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sources checked")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO research_logs (id, user_id, car_id, make, model, year, engine_type, sources_checked,
			intervals_found, success_rate, confidence, cache_hit, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		log.ID, log.UserID, log.CarID, log.Make, log.Model, log.Year, string(log.EngineType), sources,
		log.IntervalsFound, log.SuccessRate, log.Confidence, log.CacheHit, log.Error, log.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert research log %s", log.ID)
}

func (s *PostgresStore) ListResearchLogs(ctx context.Context, filter LogFilter) ([]model.ResearchLog, error) {
	query := `SELECT id, user_id, car_id, make, model, year, engine_type, sources_checked, intervals_found,
		success_rate, confidence, cache_hit, error, created_at FROM research_logs WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Make != "" {
		query += ` AND lower(make) = lower(` + arg(filter.Make) + `)`
	}
	if filter.UserID != 0 {
		query += ` AND user_id = ` + arg(filter.UserID)
	}
	if filter.OnlyFailed {
		query += ` AND error <> ''`
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ` + arg(filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC, id LIMIT ` + arg(listLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list research logs")
	}
	defer rows.Close()

	var logs []model.ResearchLog
	for rows.Next() {
		var l model.ResearchLog
		var engine string
		var sources []byte
		if err := rows.Scan(&l.ID, &l.UserID, &l.CarID, &l.Make, &l.Model, &l.Year, &engine, &sources,
			&l.IntervalsFound, &l.SuccessRate, &l.Confidence, &l.CacheHit, &l.Error, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan research log")
		}
		l.EngineType = model.EngineType(engine)
		if err := json.Unmarshal(sources, &l.SourcesChecked); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal sources for log %s", l.ID)
		}
		logs = append(logs, l)
	}
	return logs, eris.Wrap(rows.Err(), "postgres: list research logs iterate")
}

func scanPgInterval(row pgx.Row) (*model.ServiceInterval, error) {
	var iv model.ServiceInterval
	var priority string
	err := row.Scan(&iv.ID, &iv.UserID, &iv.CarID, &iv.ServiceItem, &iv.IntervalMiles, &iv.IntervalMonths,
		&priority, &iv.CostEstimateLow, &iv.CostEstimateHigh, &iv.Notes, &iv.Source, &iv.IsActive,
		&iv.CreatedAt, &iv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan interval")
	}
	iv.Priority = model.Priority(priority)
	return &iv, nil
}
