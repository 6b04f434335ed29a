package domain

// тип исходящего события
type EventType string

const (
	EventBalanceChanged    EventType = "balance_changed"
	EventHouseStateChanged EventType = "house_state_changed"
	EventPlayerEliminated  EventType = "player_eliminated"
	EventTurnEnded         EventType = "turn_ended"
	EventGameEnded         EventType = "game_ended"
)

// событие для игрока или всего лобби
type Event struct {
	Type     EventType `json:"type"`
	LobbyID  int64     `json:"lobby_id"`
	PlayerID int64     `json:"player_id,omitempty"`
	Payload  any       `json:"payload,omitempty"`
}
