package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"property_game/internal/domain"
	"property_game/internal/logger"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder пишет итоги партий в SQLite
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLiteRecorder открывает или создает базу и накатывает схему
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite не любит параллельных писателей
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Component("recorder").Info("история партий открыта", "path", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS game_results (
			lobby_id  INTEGER PRIMARY KEY,
			ended_at  INTEGER NOT NULL,
			players   INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS game_result_entries (
			lobby_id  INTEGER NOT NULL,
			rank      INTEGER NOT NULL,
			player_id INTEGER NOT NULL,
			user_id   INTEGER NOT NULL,
			balance   INTEGER NOT NULL,
			invested  INTEGER NOT NULL,
			net_worth INTEGER NOT NULL,
			PRIMARY KEY (lobby_id, rank)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_result_entries_user ON game_result_entries(user_id)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordLeaderboard сохраняет итог; повторная запись того же лобби заменяет его
func (r *SQLiteRecorder) RecordLeaderboard(ctx context.Context, lb *domain.Leaderboard) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM game_result_entries WHERE lobby_id = ?`, lb.LobbyID); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO game_results (lobby_id, ended_at, players) VALUES (?, ?, ?)`,
		lb.LobbyID, lb.EndedAt.UnixMilli(), len(lb.Entries))
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	for _, e := range lb.Entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO game_result_entries (lobby_id, rank, player_id, user_id, balance, invested, net_worth)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			lb.LobbyID, e.Rank, e.PlayerID, e.UserID, e.Balance, e.Invested, e.NetWorth)
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) Leaderboard(ctx context.Context, lobbyID int64) (*domain.Leaderboard, error) {
	var endedAt int64
	err := r.db.QueryRowContext(ctx, `SELECT ended_at FROM game_results WHERE lobby_id = ?`, lobbyID).Scan(&endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("итог лобби %d: %w", lobbyID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT rank, player_id, user_id, balance, invested, net_worth
		 FROM game_result_entries WHERE lobby_id = ? ORDER BY rank`, lobbyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lb := &domain.Leaderboard{LobbyID: lobbyID, EndedAt: time.UnixMilli(endedAt).UTC()}
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.Rank, &e.PlayerID, &e.UserID, &e.Balance, &e.Invested, &e.NetWorth); err != nil {
			return nil, err
		}
		lb.Entries = append(lb.Entries, e)
	}
	return lb, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
