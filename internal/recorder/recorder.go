package recorder

import (
	"context"

	"property_game/internal/domain"
)

// Recorder хранит итоги завершенных партий
type Recorder interface {
	RecordLeaderboard(ctx context.Context, lb *domain.Leaderboard) error
	// Leaderboard возвращает сохраненный итог лобби или domain.ErrNotFound
	Leaderboard(ctx context.Context, lobbyID int64) (*domain.Leaderboard, error)
	Close() error
}
