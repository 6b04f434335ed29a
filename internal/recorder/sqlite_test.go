package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"property_game/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRecorder_RoundTrip(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	endedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	lb := &domain.Leaderboard{
		LobbyID: 7,
		EndedAt: endedAt,
		Entries: []domain.LeaderboardEntry{
			{Rank: 1, PlayerID: 2, UserID: 20, Balance: 48000, NetWorth: 48000},
			{Rank: 2, PlayerID: 1, UserID: 10, Balance: 2000, Invested: 1000, NetWorth: 3000},
		},
	}
	require.NoError(t, r.RecordLeaderboard(ctx, lb))

	got, err := r.Leaderboard(ctx, 7)
	require.NoError(t, err)
	assert.True(t, got.EndedAt.Equal(endedAt))
	assert.Equal(t, lb.Entries, got.Entries)

	// повторная запись заменяет итог
	lb.Entries = lb.Entries[:1]
	require.NoError(t, r.RecordLeaderboard(ctx, lb))
	got, err = r.Leaderboard(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, got.Entries, 1)
}

func TestSQLiteRecorder_NotFound(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Leaderboard(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNoopRecorder(t *testing.T) {
	r := NewNoopRecorder()
	require.NoError(t, r.RecordLeaderboard(context.Background(), &domain.Leaderboard{}))
	_, err := r.Leaderboard(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
