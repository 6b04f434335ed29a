package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"property_game/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	_ Store = (*PostgresStore)(nil)
	_ Tx    = (*pgTx)(nil)
)

// общий интерфейс пула и транзакции pgx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore реализует Store поверх pgxpool
type PostgresStore struct {
	pgReader
	db *pgxpool.Pool
}

// NewPostgresStore создает хранилище на существующем пуле
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pgReader: pgReader{q: db}, db: db}
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{pgReader: pgReader{q: tx, lock: " FOR UPDATE"}}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrTransactionFailed, err)
	}
	return nil
}

func (s *PostgresStore) CreateLobby(ctx context.Context, l *domain.Lobby) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO lobbies (map_id, turns_left, turn_interval_ms, start_at, ended_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, l.MapID, l.TurnsLeft, l.TurnInterval.Milliseconds(), l.StartAt, l.EndedAt).Scan(&l.ID)
}

func (s *PostgresStore) CreatePlayer(ctx context.Context, p *domain.Player) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO players (lobby_id, user_id, rating, balance, position, bonuses, movement_done, action_done, eliminated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, p.LobbyID, p.UserID, p.Rating, p.Balance, p.Position, bonusStrings(p.Bonuses),
		p.MovementDone, p.ActionDone, p.Eliminated).Scan(&p.ID)
}

func (s *PostgresStore) CreateHouse(ctx context.Context, h *domain.House) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO houses (lobby_id, position, owner_id, next_owner_id, level, auction_amount, state, defects)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, h.LobbyID, h.Position, h.OwnerID, h.NextOwnerID, h.Level, h.AuctionAmount, string(h.State), h.Defects)
	return err
}

// SaveMap вставляет карту или перезаписывает ее по id
func (s *PostgresStore) SaveMap(ctx context.Context, b *domain.Board) error {
	casesJSON, err := json.Marshal(b.Cases)
	if err != nil {
		return fmt.Errorf("marshal cases: %w", err)
	}
	if b.ID == 0 {
		return s.db.QueryRow(ctx, `
			INSERT INTO maps (name, salary, rating_lo, rating_hi, cases)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, b.Name, b.Salary, b.RatingMultiplier.Lo, b.RatingMultiplier.Hi, casesJSON).Scan(&b.ID)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO maps (id, name, salary, rating_lo, rating_hi, cases)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, salary = EXCLUDED.salary,
			rating_lo = EXCLUDED.rating_lo, rating_hi = EXCLUDED.rating_hi, cases = EXCLUDED.cases
	`, b.ID, b.Name, b.Salary, b.RatingMultiplier.Lo, b.RatingMultiplier.Hi, casesJSON)
	return err
}

// чтения; внутри транзакции lock = " FOR UPDATE"
type pgReader struct {
	q    querier
	lock string
}

const lobbyColumns = `id, map_id, turns_left, turn_interval_ms, start_at, ended_at`

func scanLobby(row pgx.Row) (*domain.Lobby, error) {
	var l domain.Lobby
	var intervalMs int64
	if err := row.Scan(&l.ID, &l.MapID, &l.TurnsLeft, &intervalMs, &l.StartAt, &l.EndedAt); err != nil {
		return nil, err
	}
	l.TurnInterval = time.Duration(intervalMs) * time.Millisecond
	return &l, nil
}

func (r pgReader) GetLobby(ctx context.Context, id int64) (*domain.Lobby, error) {
	l, err := scanLobby(r.q.QueryRow(ctx, `SELECT `+lobbyColumns+` FROM lobbies WHERE id = $1`+r.lock, id))
	if err != nil {
		return nil, notFound(err, "лобби %d", id)
	}
	return l, nil
}

func (r pgReader) ListRunningLobbies(ctx context.Context) ([]*domain.Lobby, error) {
	rows, err := r.q.Query(ctx, `SELECT `+lobbyColumns+` FROM lobbies WHERE turns_left > 0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Lobby
	for rows.Next() {
		l, err := scanLobby(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const playerColumns = `id, lobby_id, user_id, rating, balance, position, bonuses, movement_done, action_done, eliminated`

func scanPlayer(row pgx.Row) (*domain.Player, error) {
	var p domain.Player
	var bonuses []string
	if err := row.Scan(&p.ID, &p.LobbyID, &p.UserID, &p.Rating, &p.Balance, &p.Position,
		&bonuses, &p.MovementDone, &p.ActionDone, &p.Eliminated); err != nil {
		return nil, err
	}
	for _, b := range bonuses {
		p.Bonuses = append(p.Bonuses, domain.BonusKind(b))
	}
	return &p, nil
}

func (r pgReader) GetPlayer(ctx context.Context, id int64) (*domain.Player, error) {
	p, err := scanPlayer(r.q.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`+r.lock, id))
	if err != nil {
		return nil, notFound(err, "игрок %d", id)
	}
	return p, nil
}

func (r pgReader) GetPlayerByUser(ctx context.Context, lobbyID, userID int64) (*domain.Player, error) {
	p, err := scanPlayer(r.q.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE lobby_id = $1 AND user_id = $2`+r.lock, lobbyID, userID))
	if err != nil {
		return nil, notFound(err, "пользователь %d в лобби %d", userID, lobbyID)
	}
	return p, nil
}

func (r pgReader) ListPlayers(ctx context.Context, lobbyID int64) ([]*domain.Player, error) {
	rows, err := r.q.Query(ctx, `SELECT `+playerColumns+` FROM players WHERE lobby_id = $1 ORDER BY id`+r.lock, lobbyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const houseColumns = `lobby_id, position, owner_id, next_owner_id, level, auction_amount, state, defects`

func scanHouse(row pgx.Row) (*domain.House, error) {
	var h domain.House
	var state string
	if err := row.Scan(&h.LobbyID, &h.Position, &h.OwnerID, &h.NextOwnerID, &h.Level,
		&h.AuctionAmount, &state, &h.Defects); err != nil {
		return nil, err
	}
	h.State = domain.HouseState(state)
	return &h, nil
}

func (r pgReader) GetHouse(ctx context.Context, lobbyID int64, position int) (*domain.House, error) {
	h, err := scanHouse(r.q.QueryRow(ctx,
		`SELECT `+houseColumns+` FROM houses WHERE lobby_id = $1 AND position = $2`+r.lock, lobbyID, position))
	if err != nil {
		return nil, notFound(err, "дом %d в лобби %d", position, lobbyID)
	}
	return h, nil
}

func (r pgReader) ListHouses(ctx context.Context, lobbyID int64) ([]*domain.House, error) {
	rows, err := r.q.Query(ctx, `SELECT `+houseColumns+` FROM houses WHERE lobby_id = $1 ORDER BY position`+r.lock, lobbyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.House
	for rows.Next() {
		h, err := scanHouse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// карты неизменяемы, блокировка не нужна
func (r pgReader) GetMap(ctx context.Context, id int64) (*domain.Board, error) {
	var b domain.Board
	var casesJSON []byte
	err := r.q.QueryRow(ctx, `
		SELECT id, name, salary, rating_lo, rating_hi, cases FROM maps WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Salary, &b.RatingMultiplier.Lo, &b.RatingMultiplier.Hi, &casesJSON)
	if err != nil {
		return nil, notFound(err, "карта %d", id)
	}
	if err := json.Unmarshal(casesJSON, &b.Cases); err != nil {
		return nil, fmt.Errorf("карта %d: cases: %w", id, err)
	}
	return &b, nil
}

func (r pgReader) ListTransactions(ctx context.Context, lobbyID int64, account domain.AccountID, limit int) ([]*domain.TransactionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.Query(ctx, `
		SELECT id::text, lobby_id, amount, from_account, to_account, type, created_at
		FROM transactions
		WHERE lobby_id = $1 AND (from_account = $2 OR to_account = $2)
		ORDER BY created_at DESC, seq DESC
		LIMIT $3
	`, lobbyID, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		var txType string
		if err := rows.Scan(&rec.ID, &rec.LobbyID, &rec.Amount, &rec.From, &rec.To, &txType, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Type = domain.TransactionType(txType)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

type pgTx struct {
	pgReader
}

func (t *pgTx) UpdateLobby(ctx context.Context, l *domain.Lobby) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE lobbies SET turns_left = $2, turn_interval_ms = $3, start_at = $4, ended_at = $5
		WHERE id = $1
	`, l.ID, l.TurnsLeft, l.TurnInterval.Milliseconds(), l.StartAt, l.EndedAt)
	return affected(tag, err, "лобби %d", l.ID)
}

func (t *pgTx) UpdatePlayer(ctx context.Context, p *domain.Player) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE players
		SET balance = $2, position = $3, bonuses = $4, movement_done = $5, action_done = $6, eliminated = $7
		WHERE id = $1
	`, p.ID, p.Balance, p.Position, bonusStrings(p.Bonuses), p.MovementDone, p.ActionDone, p.Eliminated)
	return affected(tag, err, "игрок %d", p.ID)
}

func (t *pgTx) UpdateHouse(ctx context.Context, h *domain.House) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE houses
		SET owner_id = $3, next_owner_id = $4, level = $5, auction_amount = $6, state = $7, defects = $8
		WHERE lobby_id = $1 AND position = $2
	`, h.LobbyID, h.Position, h.OwnerID, h.NextOwnerID, h.Level, h.AuctionAmount, string(h.State), h.Defects)
	return affected(tag, err, "дом %d в лобби %d", h.Position, h.LobbyID)
}

// конкурентная вставка ждет на первичном ключе и ничего не перезаписывает
func (t *pgTx) EnsureHouse(ctx context.Context, h *domain.House) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO houses (lobby_id, position, owner_id, next_owner_id, level, auction_amount, state, defects)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (lobby_id, position) DO NOTHING
	`, h.LobbyID, h.Position, h.OwnerID, h.NextOwnerID, h.Level, h.AuctionAmount, string(h.State), h.Defects)
	return err
}

func (t *pgTx) AppendTransaction(ctx context.Context, rec *domain.TransactionRecord) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO transactions (id, lobby_id, amount, from_account, to_account, type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.LobbyID, rec.Amount, rec.From, rec.To, string(rec.Type), rec.CreatedAt)
	return err
}

func bonusStrings(bonuses []domain.BonusKind) []string {
	out := make([]string, 0, len(bonuses))
	for _, b := range bonuses {
		out = append(out, string(b))
	}
	return out
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, domain.ErrNotFound)...)
	}
	return err
}

func affected(tag pgconn.CommandTag, err error, format string, args ...any) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf(format+": %w", append(args, domain.ErrNotFound)...)
	}
	return nil
}
