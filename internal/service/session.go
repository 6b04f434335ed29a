package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"property_game/internal/domain"
	"property_game/internal/repository"
)

// событие, отложенное до коммита
type outboxItem struct {
	playerID  int64
	broadcast bool
	event     domain.Event
}

// Scope - единица работы над одним лобби внутри транзакции хранилища.
// Игроки и дома загружаются один раз и отдаются одним и тем же указателем,
// поэтому все движки видят изменения друг друга; при коммите сохраняется
// все загруженное, события публикуются только после успешного коммита.
type Scope struct {
	tx           repository.Tx
	Lobby        *domain.Lobby
	Board        *domain.Board
	now          time.Time
	lobbyChanged bool
	players      map[int64]*domain.Player
	houses       map[int]*domain.House
	outbox       []outboxItem
}

func newScope(tx repository.Tx, lobby *domain.Lobby, board *domain.Board, now time.Time) *Scope {
	return &Scope{
		tx:      tx,
		Lobby:   lobby,
		Board:   board,
		now:     now,
		players: make(map[int64]*domain.Player),
		houses:  make(map[int]*domain.House),
	}
}

// Now - время открытия области
func (s *Scope) Now() time.Time {
	return s.now
}

// Player возвращает игрока этого лобби
func (s *Scope) Player(ctx context.Context, id int64) (*domain.Player, error) {
	if p, ok := s.players[id]; ok {
		return p, nil
	}
	p, err := s.tx.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.LobbyID != s.Lobby.ID {
		return nil, fmt.Errorf("игрок %d не в лобби %d: %w", id, s.Lobby.ID, domain.ErrInvalidState)
	}
	s.players[id] = p
	return p, nil
}

// Players возвращает всех игроков лобби по возрастанию id
func (s *Scope) Players(ctx context.Context) ([]*domain.Player, error) {
	loaded, err := s.tx.ListPlayers(ctx, s.Lobby.ID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Player, 0, len(loaded))
	for _, p := range loaded {
		if cached, ok := s.players[p.ID]; ok {
			p = cached
		} else {
			s.players[p.ID] = p
		}
		out = append(out, p)
	}
	return out, nil
}

// House возвращает дом на клетке position
func (s *Scope) House(ctx context.Context, position int) (*domain.House, error) {
	if h, ok := s.houses[position]; ok {
		return h, nil
	}
	h, err := s.tx.GetHouse(ctx, s.Lobby.ID, position)
	if errors.Is(err, domain.ErrNotFound) {
		h, err = s.materializeHouse(ctx, position)
	}
	if err != nil {
		return nil, err
	}
	s.houses[position] = h
	return h, nil
}

// строки дома нет, пока его никто не трогал: на клетке-доме
// заводим свободный дом банка нулевого уровня
func (s *Scope) materializeHouse(ctx context.Context, position int) (*domain.House, error) {
	c, err := s.Board.Case(position)
	if err != nil {
		return nil, err
	}
	if c.Type != domain.CaseHouse {
		return nil, fmt.Errorf("дом %d в лобби %d: %w", position, s.Lobby.ID, domain.ErrNotFound)
	}
	err = s.tx.EnsureHouse(ctx, &domain.House{
		LobbyID:  s.Lobby.ID,
		Position: position,
		OwnerID:  domain.BankAccount,
		State:    domain.HouseFree,
	})
	if err != nil {
		return nil, fmt.Errorf("create house %d: %w", position, err)
	}
	return s.tx.GetHouse(ctx, s.Lobby.ID, position)
}

// Houses возвращает все дома лобби по возрастанию позиции
func (s *Scope) Houses(ctx context.Context) ([]*domain.House, error) {
	loaded, err := s.tx.ListHouses(ctx, s.Lobby.ID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.House, 0, len(loaded))
	for _, h := range loaded {
		if cached, ok := s.houses[h.Position]; ok {
			h = cached
		} else {
			s.houses[h.Position] = h
		}
		out = append(out, h)
	}
	return out, nil
}

// MarkLobbyChanged помечает лобби для сохранения
func (s *Scope) MarkLobbyChanged() {
	s.lobbyChanged = true
}

// Record дописывает запись в журнал в рамках транзакции
func (s *Scope) Record(ctx context.Context, rec *domain.TransactionRecord) error {
	return s.tx.AppendTransaction(ctx, rec)
}

// Notify ставит событие игроку в очередь до коммита
func (s *Scope) Notify(playerID int64, ev domain.Event) {
	ev.LobbyID = s.Lobby.ID
	if ev.PlayerID == 0 {
		ev.PlayerID = playerID
	}
	s.outbox = append(s.outbox, outboxItem{playerID: playerID, event: ev})
}

// Broadcast ставит событие всему лобби в очередь до коммита
func (s *Scope) Broadcast(ev domain.Event) {
	ev.LobbyID = s.Lobby.ID
	s.outbox = append(s.outbox, outboxItem{broadcast: true, event: ev})
}

func (s *Scope) flush(ctx context.Context) error {
	if s.lobbyChanged {
		if err := s.tx.UpdateLobby(ctx, s.Lobby); err != nil {
			return fmt.Errorf("save lobby: %w", err)
		}
	}

	ids := make([]int64, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := s.tx.UpdatePlayer(ctx, s.players[id]); err != nil {
			return fmt.Errorf("save player: %w", err)
		}
	}

	positions := make([]int, 0, len(s.houses))
	for pos := range s.houses {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	for _, pos := range positions {
		if err := s.tx.UpdateHouse(ctx, s.houses[pos]); err != nil {
			return fmt.Errorf("save house: %w", err)
		}
	}
	return nil
}

func (s *Scope) publish(n Notifier) {
	for _, item := range s.outbox {
		if item.broadcast {
			n.BroadcastToLobby(item.event.LobbyID, item.event)
		} else {
			n.SendToPlayer(item.playerID, item.event)
		}
	}
}

// Coordinator открывает атомарную область над лобби, его картой и игроками
type Coordinator struct {
	store    repository.Store
	notifier Notifier
	now      func() time.Time
}

// NewCoordinator создает координатор; notifier может быть nil
func NewCoordinator(store repository.Store, notifier Notifier) *Coordinator {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Coordinator{store: store, notifier: notifier, now: time.Now}
}

// Run выполняет fn в одной транзакции; при ошибке ничего не сохраняется и не публикуется
func (c *Coordinator) Run(ctx context.Context, lobbyID int64, fn func(ctx context.Context, s *Scope) error) error {
	var scope *Scope
	err := c.store.InTx(ctx, func(tx repository.Tx) error {
		lobby, err := tx.GetLobby(ctx, lobbyID)
		if err != nil {
			return err
		}
		board, err := tx.GetMap(ctx, lobby.MapID)
		if err != nil {
			return err
		}

		scope = newScope(tx, lobby, board, c.now())
		if err := fn(ctx, scope); err != nil {
			return err
		}
		return scope.flush(ctx)
	})
	if err != nil {
		return err
	}

	scope.publish(c.notifier)
	return nil
}
