package repository

import (
	"context"

	"property_game/internal/domain"
)

// операции чтения, общие для хранилища и транзакции
type Reader interface {
	GetLobby(ctx context.Context, id int64) (*domain.Lobby, error)
	ListRunningLobbies(ctx context.Context) ([]*domain.Lobby, error)

	GetPlayer(ctx context.Context, id int64) (*domain.Player, error)
	GetPlayerByUser(ctx context.Context, lobbyID, userID int64) (*domain.Player, error)
	ListPlayers(ctx context.Context, lobbyID int64) ([]*domain.Player, error)

	GetHouse(ctx context.Context, lobbyID int64, position int) (*domain.House, error)
	ListHouses(ctx context.Context, lobbyID int64) ([]*domain.House, error)

	GetMap(ctx context.Context, id int64) (*domain.Board, error)

	// переводы, где account - отправитель или получатель, новые первыми
	ListTransactions(ctx context.Context, lobbyID int64, account domain.AccountID, limit int) ([]*domain.TransactionRecord, error)
}

// атомарная область: чтения блокируют записи до коммита
type Tx interface {
	Reader

	UpdateLobby(ctx context.Context, l *domain.Lobby) error
	UpdatePlayer(ctx context.Context, p *domain.Player) error
	UpdateHouse(ctx context.Context, h *domain.House) error
	// EnsureHouse создает строку дома, если ее еще нет; существующую не трогает
	EnsureHouse(ctx context.Context, h *domain.House) error
	AppendTransaction(ctx context.Context, rec *domain.TransactionRecord) error
}

// непрозрачное хранилище записей лобби, игроков, домов и карт
type Store interface {
	Reader

	CreateLobby(ctx context.Context, l *domain.Lobby) error
	CreatePlayer(ctx context.Context, p *domain.Player) error
	CreateHouse(ctx context.Context, h *domain.House) error
	SaveMap(ctx context.Context, b *domain.Board) error

	// выполняет fn в одной транзакции: все изменения применяются или откатываются
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Close()
}
