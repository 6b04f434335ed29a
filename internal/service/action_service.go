package service

import (
	"context"
	"errors"
	"fmt"

	"property_game/internal/domain"
	"property_game/internal/metrics"
	"property_game/internal/repository"
)

// результат Move
type MoveResult struct {
	Path   *Path          `json:"path"`
	Player *domain.Player `json:"player"`
}

// результат Act
type ActResult struct {
	Resolution *Resolution    `json:"resolution"`
	Player     *domain.Player `json:"player"`
}

// результат операций с домом
type HouseResult struct {
	House  *domain.House  `json:"house"`
	Player *domain.Player `json:"player"`
}

// ActionService - действия игрока вне таймера
type ActionService struct {
	store       repository.Store
	coordinator *Coordinator
	serializer  *ExecutionSerializer
	ledger      *Ledger
	movement    *MovementEngine
	resolver    *ActionResolver
}

func NewActionService(
	store repository.Store,
	coordinator *Coordinator,
	serializer *ExecutionSerializer,
	ledger *Ledger,
	movement *MovementEngine,
	resolver *ActionResolver,
) *ActionService {
	return &ActionService{
		store:       store,
		coordinator: coordinator,
		serializer:  serializer,
		ledger:      ledger,
		movement:    movement,
		resolver:    resolver,
	}
}

// run находит игрока, занимает его слот и выполняет fn в атомарной области
func (a *ActionService) run(ctx context.Context, action string, lobbyID, userID int64, fn func(ctx context.Context, s *Scope, p *domain.Player) error) (err error) {
	defer func() {
		metrics.PlayerActions.WithLabelValues(action, outcome(err)).Inc()
	}()

	p, err := a.store.GetPlayerByUser(ctx, lobbyID, userID)
	if err != nil {
		return err
	}

	return a.serializer.Do(ctx, p.ID, func() error {
		return a.coordinator.Run(ctx, lobbyID, func(ctx context.Context, s *Scope) error {
			if !s.Lobby.IsRunning() {
				return fmt.Errorf("лобби %d завершено: %w", lobbyID, domain.ErrInvalidState)
			}
			player, err := s.Player(ctx, p.ID)
			if err != nil {
				return err
			}
			if player.Eliminated {
				return fmt.Errorf("игрок %d выбыл: %w", player.ID, domain.ErrInvalidState)
			}
			return fn(ctx, s, player)
		})
	})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	}
	return "error"
}

// Move бросает кубики и передвигает игрока; один раз за ход
func (a *ActionService) Move(ctx context.Context, lobbyID, userID int64) (*MoveResult, error) {
	var res *MoveResult
	err := a.run(ctx, "move", lobbyID, userID, func(ctx context.Context, s *Scope, p *domain.Player) error {
		if p.MovementDone {
			return fmt.Errorf("игрок %d уже ходил: %w", p.ID, domain.ErrInvalidState)
		}
		path, err := a.movement.GeneratePath(ctx, s, a.movement.GenerateDice(p), p)
		if err != nil {
			return err
		}
		p.MovementDone = true
		res = &MoveResult{Path: path, Player: p.Clone()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Act выполняет обязательное действие клетки; нехватка денег откатывает все
func (a *ActionService) Act(ctx context.Context, lobbyID, userID int64) (*ActResult, error) {
	var res *ActResult
	err := a.run(ctx, "act", lobbyID, userID, func(ctx context.Context, s *Scope, p *domain.Player) error {
		if !p.MovementDone {
			return fmt.Errorf("игрок %d еще не ходил: %w", p.ID, domain.ErrInvalidState)
		}
		if p.ActionDone {
			return fmt.Errorf("игрок %d уже выполнил действие: %w", p.ID, domain.ErrInvalidState)
		}
		resolution, err := a.resolver.Resolve(ctx, s, p, false)
		if err != nil {
			return err
		}
		res = &ActResult{Resolution: resolution, Player: p.Clone()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Bid ставит на свободный или выставленный на продажу дом
func (a *ActionService) Bid(ctx context.Context, lobbyID, userID int64, position int, amount int64) (*HouseResult, error) {
	return a.houseOp(ctx, "bid", lobbyID, userID, position, func(ctx context.Context, s *Scope, p *domain.Player, h *domain.House) error {
		if h.State == domain.HouseOwned {
			return fmt.Errorf("дом %d не продается: %w", position, domain.ErrInvalidState)
		}
		if h.OwnerID == p.ID {
			return fmt.Errorf("дом %d уже принадлежит игроку: %w", position, domain.ErrInvalidState)
		}
		base, err := s.Board.Price(position, h.Level)
		if err != nil {
			return err
		}
		if amount < base || amount <= h.AuctionAmount {
			return fmt.Errorf("ставка %d ниже допустимой: %w", amount, domain.ErrInvalidState)
		}
		if p.Balance < amount {
			metrics.InsufficientFunds.Inc()
			return fmt.Errorf("ставка %d при балансе %d: %w", amount, p.Balance, domain.ErrInsufficientFunds)
		}
		h.NextOwnerID = p.ID
		h.AuctionAmount = amount
		return nil
	})
}

// Upgrade повышает уровень своего дома за цену следующего уровня
func (a *ActionService) Upgrade(ctx context.Context, lobbyID, userID int64, position int) (*HouseResult, error) {
	return a.houseOp(ctx, "upgrade", lobbyID, userID, position, func(ctx context.Context, s *Scope, p *domain.Player, h *domain.House) error {
		if h.OwnerID != p.ID || h.State != domain.HouseOwned {
			return fmt.Errorf("дом %d не принадлежит игроку: %w", position, domain.ErrInvalidState)
		}
		if h.Level >= domain.MaxHouseLevel {
			return fmt.Errorf("дом %d на максимальном уровне: %w", position, domain.ErrInvalidState)
		}
		cost, err := s.Board.Price(position, h.Level+1)
		if err != nil {
			return err
		}
		_, err = a.ledger.Transfer(ctx, s, TransferRequest{
			Amount:   cost,
			From:     p.ID,
			To:       domain.BankAccount,
			Type:     domain.TransactionUpgrade,
			Announce: true,
		})
		if err != nil {
			return err
		}
		h.Level++
		return nil
	})
}

// Sell выставляет свой дом на продажу до конца цикла
func (a *ActionService) Sell(ctx context.Context, lobbyID, userID int64, position int) (*HouseResult, error) {
	return a.houseOp(ctx, "sell", lobbyID, userID, position, func(ctx context.Context, s *Scope, p *domain.Player, h *domain.House) error {
		if h.OwnerID != p.ID || h.State != domain.HouseOwned {
			return fmt.Errorf("дом %d не принадлежит игроку: %w", position, domain.ErrInvalidState)
		}
		h.State = domain.HouseForSale
		return nil
	})
}

func (a *ActionService) houseOp(ctx context.Context, action string, lobbyID, userID int64, position int, fn func(ctx context.Context, s *Scope, p *domain.Player, h *domain.House) error) (*HouseResult, error) {
	var res *HouseResult
	err := a.run(ctx, action, lobbyID, userID, func(ctx context.Context, s *Scope, p *domain.Player) error {
		h, err := s.House(ctx, position)
		if err != nil {
			return err
		}
		if err := fn(ctx, s, p, h); err != nil {
			return err
		}
		s.Broadcast(houseChanged(h))
		cp := *h
		res = &HouseResult{House: &cp, Player: p.Clone()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Standings - текущая таблица лобби без блокировок
func (a *ActionService) Standings(ctx context.Context, lobbyID int64) ([]domain.LeaderboardEntry, error) {
	lobby, err := a.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	board, err := a.store.GetMap(ctx, lobby.MapID)
	if err != nil {
		return nil, err
	}
	players, err := a.store.ListPlayers(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	houses, err := a.store.ListHouses(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	return ComputeLeaderboard(players, houses, board)
}

// Transactions - последние переводы игрока
func (a *ActionService) Transactions(ctx context.Context, lobbyID, userID int64, limit int) ([]*domain.TransactionRecord, error) {
	p, err := a.store.GetPlayerByUser(ctx, lobbyID, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return a.store.ListTransactions(ctx, lobbyID, p.ID, limit)
}
