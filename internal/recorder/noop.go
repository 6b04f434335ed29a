package recorder

import (
	"context"
	"fmt"

	"property_game/internal/domain"
)

// NoopRecorder используется, когда история не настроена
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordLeaderboard(context.Context, *domain.Leaderboard) error { return nil }
func (n *NoopRecorder) Close() error                                               { return nil }

func (n *NoopRecorder) Leaderboard(_ context.Context, lobbyID int64) (*domain.Leaderboard, error) {
	return nil, fmt.Errorf("итог лобби %d: %w", lobbyID, domain.ErrNotFound)
}
