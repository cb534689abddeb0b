package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations contains all database migrations in order.
// Each migration has a version key and SQL to execute.
var migrations = []struct {
	Version string
	SQL     string
}{
	{
		Version: "000001_create_users",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id            UUID         PRIMARY KEY,
				username      VARCHAR(150) NOT NULL UNIQUE,
				email         VARCHAR(255) NOT NULL DEFAULT '',
				password_hash VARCHAR(255) NOT NULL,
				created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE TABLE IF NOT EXISTS auth_tokens (
				key        VARCHAR(64) PRIMARY KEY,
				user_id    UUID        NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_auth_tokens_user_id ON auth_tokens(user_id);
		`,
	},
	{
		Version: "000002_create_datasets",
		SQL: `
			CREATE TABLE IF NOT EXISTS datasets (
				id                UUID             PRIMARY KEY,
				owner_id          UUID             REFERENCES users(id) ON DELETE CASCADE,
				filename          VARCHAR(255)     NOT NULL,
				uploaded_at       TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
				archive_size      BIGINT           NOT NULL DEFAULT 0,
				pdf_export_count  INTEGER          NOT NULL DEFAULT 0,
				total_count       INTEGER          NOT NULL,
				avg_flowrate      DOUBLE PRECISION NOT NULL,
				min_flowrate      DOUBLE PRECISION NOT NULL,
				max_flowrate      DOUBLE PRECISION NOT NULL,
				avg_pressure      DOUBLE PRECISION NOT NULL,
				min_pressure      DOUBLE PRECISION NOT NULL,
				max_pressure      DOUBLE PRECISION NOT NULL,
				avg_temperature   DOUBLE PRECISION NOT NULL,
				min_temperature   DOUBLE PRECISION NOT NULL,
				max_temperature   DOUBLE PRECISION NOT NULL,
				type_distribution JSONB            NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_datasets_owner_uploaded
				ON datasets(owner_id, uploaded_at DESC);
		`,
	},
	{
		Version: "000003_create_equipment_records",
		SQL: `
			CREATE TABLE IF NOT EXISTS equipment_records (
				id             BIGSERIAL        PRIMARY KEY,
				dataset_id     UUID             NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
				position       INTEGER          NOT NULL,
				name           VARCHAR(255)     NOT NULL,
				equipment_type VARCHAR(255)     NOT NULL,
				flowrate       DOUBLE PRECISION NOT NULL,
				pressure       DOUBLE PRECISION NOT NULL,
				temperature    DOUBLE PRECISION NOT NULL,
				UNIQUE (dataset_id, position)
			);
			CREATE INDEX IF NOT EXISTS idx_equipment_records_dataset_id
				ON equipment_records(dataset_id);
		`,
	},
}

// DB wraps a pgxpool connection pool and provides health checks and migrations.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("connected to database")
	return &DB{Pool: pool}, nil
}

// RunMigrations applies all pending database migrations in order.
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err := db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status for %s: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.Pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}

		slog.Info("applied migration", "version", m.Version)
	}

	return nil
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
