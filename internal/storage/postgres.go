package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pausee/internal/config"
	"pausee/internal/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS paused_campaigns (
	campaign_id       TEXT PRIMARY KEY,
	campaign_name     TEXT NOT NULL DEFAULT '',
	installs_at_pause INTEGER NOT NULL,
	paused_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps the paused set in the paused_campaigns table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, cfg config.Config) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresFromPool(pool *pgxpool.Pool) *PostgresStore { return &PostgresStore{pool: pool} }

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create paused_campaigns: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) Load(ctx context.Context) (engine.PausedSet, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT campaign_id, campaign_name, installs_at_pause
		FROM paused_campaigns
		ORDER BY campaign_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query paused campaigns: %w", err)
	}
	defer rows.Close()

	set := engine.PausedSet{}
	for rows.Next() {
		var r engine.PausedRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.InstallsAtPause); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if r.ID == "" || r.InstallsAtPause < 0 {
			return nil, &CorruptError{Source: "paused_campaigns", Err: fmt.Errorf("invalid row %q/%d", r.ID, r.InstallsAtPause)}
		}
		set[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// Save makes the table match set in one transaction. Rows already present keep
// their paused_at; only campaigns new to the set get the current time.
func (s *PostgresStore) Save(ctx context.Context, set engine.PausedSet) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records := set.Sorted()
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM paused_campaigns WHERE NOT (campaign_id = ANY($1))`, ids); err != nil {
		return fmt.Errorf("delete resumed campaigns: %w", err)
	}

	if len(records) > 0 {
		batch := &pgx.Batch{}
		for _, r := range records {
			batch.Queue(`
				INSERT INTO paused_campaigns (campaign_id, campaign_name, installs_at_pause)
				VALUES ($1, $2, $3)
				ON CONFLICT (campaign_id) DO UPDATE
				SET campaign_name = EXCLUDED.campaign_name,
				    installs_at_pause = EXCLUDED.installs_at_pause
			`, r.ID, r.Name, r.InstallsAtPause)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert paused campaigns: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) PgxPool() *pgxpool.Pool {
	if s.pool == nil {
		panic(errors.New("pgx pool is nil"))
	}
	return s.pool
}
