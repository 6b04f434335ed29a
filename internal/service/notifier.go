package service

import "property_game/internal/domain"

// канал доставки событий: соединение игрока или все подписчики лобби
type Notifier interface {
	SendToPlayer(playerID int64, ev domain.Event)
	BroadcastToLobby(lobbyID int64, ev domain.Event)
}

// NoopNotifier ничего не отправляет
type NoopNotifier struct{}

func (NoopNotifier) SendToPlayer(int64, domain.Event)     {}
func (NoopNotifier) BroadcastToLobby(int64, domain.Event) {}
