package domain

import "time"

// строка итоговой таблицы
type LeaderboardEntry struct {
	Rank     int   `json:"rank"`
	PlayerID int64 `json:"player_id"`
	UserID   int64 `json:"user_id"`
	Balance  int64 `json:"balance"`
	Invested int64 `json:"invested"`
	NetWorth int64 `json:"net_worth"`
}

// итог партии
type Leaderboard struct {
	LobbyID int64              `json:"lobby_id"`
	EndedAt time.Time          `json:"ended_at"`
	Entries []LeaderboardEntry `json:"entries"`
}
