package db

import (
	"context"
	"fmt"
	"time"

	"property_game/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect открывает пул соединений и накатывает схему
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("database connected", "max_conns", cfg.MaxConns)
	return pool, nil
}

// Migrate создает таблицы, если их еще нет
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS maps (
			id                BIGSERIAL PRIMARY KEY,
			name              TEXT NOT NULL,
			salary            BIGINT NOT NULL DEFAULT 0,
			rating_lo         DOUBLE PRECISION NOT NULL DEFAULT 1,
			rating_hi         DOUBLE PRECISION NOT NULL DEFAULT 1,
			cases             JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS lobbies (
			id                BIGSERIAL PRIMARY KEY,
			map_id            BIGINT NOT NULL REFERENCES maps(id),
			turns_left        INTEGER NOT NULL CHECK (turns_left >= 0),
			turn_interval_ms  BIGINT NOT NULL CHECK (turn_interval_ms > 0),
			start_at          TIMESTAMPTZ NOT NULL,
			ended_at          TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lobbies_running ON lobbies(id) WHERE turns_left > 0`,
		`CREATE TABLE IF NOT EXISTS players (
			id                BIGSERIAL PRIMARY KEY,
			lobby_id          BIGINT NOT NULL REFERENCES lobbies(id),
			user_id           BIGINT NOT NULL,
			rating            DOUBLE PRECISION NOT NULL DEFAULT 0,
			balance           BIGINT NOT NULL DEFAULT 0,
			position          INTEGER NOT NULL DEFAULT 0,
			bonuses           TEXT[] NOT NULL DEFAULT '{}',
			movement_done     BOOLEAN NOT NULL DEFAULT FALSE,
			action_done       BOOLEAN NOT NULL DEFAULT FALSE,
			eliminated        BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE (lobby_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS houses (
			lobby_id          BIGINT NOT NULL REFERENCES lobbies(id),
			position          INTEGER NOT NULL,
			owner_id          BIGINT NOT NULL DEFAULT 0,
			next_owner_id     BIGINT NOT NULL DEFAULT 0,
			level             INTEGER NOT NULL DEFAULT 0 CHECK (level BETWEEN 0 AND 3),
			auction_amount    BIGINT NOT NULL DEFAULT 0,
			state             TEXT NOT NULL DEFAULT 'free',
			defects           INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (lobby_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id                UUID PRIMARY KEY,
			lobby_id          BIGINT NOT NULL,
			amount            BIGINT NOT NULL,
			from_account      BIGINT NOT NULL,
			to_account        BIGINT NOT NULL,
			type              TEXT NOT NULL,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			seq               BIGSERIAL
		)`,
		// записи одной области делят created_at, порядок вставки держит seq
		`ALTER TABLE transactions ADD COLUMN IF NOT EXISTS seq BIGSERIAL`,
		`DROP INDEX IF EXISTS idx_transactions_lobby`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_lobby_seq ON transactions(lobby_id, created_at DESC, seq DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
