package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"property_game/internal/domain"
	"property_game/internal/logger"
	"property_game/internal/metrics"
	"property_game/internal/repository"
)

// сохраняет итог партии во внешнюю историю
type LeaderboardRecorder interface {
	RecordLeaderboard(ctx context.Context, lb *domain.Leaderboard) error
}

// состав лобби изменился между снятием списка и блокировкой
var errRosterChanged = errors.New("состав лобби изменился")

const rosterAttempts = 3

// итог одного хода лобби
type TurnResult struct {
	LobbyID     int64               `json:"lobby_id"`
	TurnsLeft   int                 `json:"turns_left"`
	Eliminated  []int64             `json:"eliminated,omitempty"`
	Settled     []int               `json:"settled,omitempty"`
	Leaderboard *domain.Leaderboard `json:"leaderboard,omitempty"`
}

// TurnService продвигает лобби на один ход по таймеру
type TurnService struct {
	store       repository.Store
	coordinator *Coordinator
	serializer  *ExecutionSerializer
	movement    *MovementEngine
	resolver    *ActionResolver
	auction     *AuctionSettlement
	recorder    LeaderboardRecorder
}

func NewTurnService(
	store repository.Store,
	coordinator *Coordinator,
	serializer *ExecutionSerializer,
	movement *MovementEngine,
	resolver *ActionResolver,
	auction *AuctionSettlement,
	recorder LeaderboardRecorder,
) *TurnService {
	return &TurnService{
		store:       store,
		coordinator: coordinator,
		serializer:  serializer,
		movement:    movement,
		resolver:    resolver,
		auction:     auction,
		recorder:    recorder,
	}
}

// AdvanceLobby выполняет один ход лобби атомарно, удерживая слоты всех его игроков
func (t *TurnService) AdvanceLobby(ctx context.Context, lobbyID int64) (*TurnResult, error) {
	started := time.Now()
	defer func() { metrics.TurnDuration.Observe(time.Since(started).Seconds()) }()

	var (
		result *TurnResult
		err    error
	)
	for attempt := 0; attempt < rosterAttempts; attempt++ {
		result, err = t.advanceOnce(ctx, lobbyID)
		if !errors.Is(err, errRosterChanged) {
			break
		}
	}
	if errors.Is(err, errRosterChanged) {
		err = fmt.Errorf("лобби %d, попыток %d: %w: %w", lobbyID, rosterAttempts, domain.ErrTransactionFailed, err)
	}
	if err != nil {
		metrics.TurnsAdvanced.WithLabelValues("error").Inc()
		return nil, err
	}

	if result.Leaderboard == nil {
		metrics.TurnsAdvanced.WithLabelValues("ok").Inc()
		return result, nil
	}

	metrics.TurnsAdvanced.WithLabelValues("ended").Inc()
	if t.recorder != nil {
		if err := t.recorder.RecordLeaderboard(ctx, result.Leaderboard); err != nil {
			// итог уже зафиксирован в хранилище, история не критична
			logger.Lobby("turns", lobbyID).Error("не удалось сохранить итог партии", "error", err)
		}
	}
	return result, nil
}

func (t *TurnService) advanceOnce(ctx context.Context, lobbyID int64) (*TurnResult, error) {
	roster, err := t.store.ListPlayers(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(roster))
	locked := make(map[int64]bool, len(roster))
	for _, p := range roster {
		ids = append(ids, p.ID)
		locked[p.ID] = true
	}

	var result *TurnResult
	err = t.serializer.DoAll(ctx, ids, func() error {
		return t.coordinator.Run(ctx, lobbyID, func(ctx context.Context, s *Scope) error {
			r, err := t.advance(ctx, s, locked)
			result = r
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (t *TurnService) advance(ctx context.Context, s *Scope, locked map[int64]bool) (*TurnResult, error) {
	if !s.Lobby.IsRunning() {
		return nil, fmt.Errorf("лобби %d уже завершено: %w", s.Lobby.ID, domain.ErrInvalidState)
	}

	players, err := s.Players(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range players {
		if !locked[p.ID] {
			return nil, errRosterChanged
		}
	}

	log := logger.Lobby("turns", s.Lobby.ID)
	for _, p := range players {
		if p.Eliminated {
			continue
		}
		if !p.MovementDone {
			dice := t.movement.GenerateDice(p)
			path, err := t.movement.GeneratePath(ctx, s, dice, p)
			if err != nil {
				return nil, fmt.Errorf("move player %d: %w", p.ID, err)
			}
			log.Debug("ход игрока", "player", p.ID, "dice", dice, "to", p.Position, "salary", path.Salary)
			if _, err := t.resolver.Resolve(ctx, s, p, true); err != nil {
				return nil, fmt.Errorf("resolve player %d: %w", p.ID, err)
			}
		} else if !p.ActionDone {
			if _, err := t.resolver.Resolve(ctx, s, p, true); err != nil {
				return nil, fmt.Errorf("resolve player %d: %w", p.ID, err)
			}
		}
		p.ResetTurn()
	}

	settled, err := t.auction.Settle(ctx, s)
	if err != nil {
		return nil, err
	}

	result := &TurnResult{LobbyID: s.Lobby.ID}
	for _, h := range settled {
		result.Settled = append(result.Settled, h.Position)
	}

	for _, p := range players {
		if p.Eliminated || p.Balance >= 0 {
			continue
		}
		p.Eliminated = true
		p.Balance = 0
		result.Eliminated = append(result.Eliminated, p.ID)
		metrics.Eliminations.Inc()
		s.Notify(p.ID, domain.Event{Type: domain.EventPlayerEliminated, PlayerID: p.ID})
		log.Info("игрок выбыл", "player", p.ID)
	}

	s.Lobby.TurnsLeft--
	s.MarkLobbyChanged()
	result.TurnsLeft = s.Lobby.TurnsLeft
	s.Broadcast(domain.Event{
		Type:    domain.EventTurnEnded,
		Payload: map[string]any{"turns_left": s.Lobby.TurnsLeft},
	})

	if s.Lobby.TurnsLeft > 0 {
		return result, nil
	}

	endedAt := s.Now()
	s.Lobby.EndedAt = &endedAt

	houses, err := s.Houses(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := ComputeLeaderboard(players, houses, s.Board)
	if err != nil {
		return nil, err
	}
	result.Leaderboard = &domain.Leaderboard{LobbyID: s.Lobby.ID, EndedAt: endedAt, Entries: entries}
	s.Broadcast(domain.Event{Type: domain.EventGameEnded, Payload: result.Leaderboard})
	log.Info("партия завершена", "players", len(entries))
	return result, nil
}
