package service

import (
	"sort"

	"property_game/internal/domain"
)

// ComputeLeaderboard: капитал = баланс + вложения в дома (цены уровней ниже текущего).
// Порядок по убыванию капитала, равные остаются в исходном порядке.
func ComputeLeaderboard(players []*domain.Player, houses []*domain.House, board *domain.Board) ([]domain.LeaderboardEntry, error) {
	invested := make(map[int64]int64, len(players))
	for _, h := range houses {
		if h.IsFree() {
			continue
		}
		v, err := board.Invested(h.Position, h.Level)
		if err != nil {
			return nil, err
		}
		invested[h.OwnerID] += v
	}

	entries := make([]domain.LeaderboardEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID: p.ID,
			UserID:   p.UserID,
			Balance:  p.Balance,
			Invested: invested[p.ID],
			NetWorth: p.Balance + invested[p.ID],
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].NetWorth > entries[j].NetWorth
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
