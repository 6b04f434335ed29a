package ws

import (
	"encoding/json"
	"sync"

	"property_game/internal/domain"
	"property_game/internal/logger"
	"property_game/internal/metrics"
)

// Hub - реестр соединений: игрок -> соединение, лобби -> подписчики.
// Создается один раз на процесс и передается явно.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]*Client
	lobbies map[int64]map[int64]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64]*Client),
		lobbies: make(map[int64]map[int64]*Client),
	}
}

// Register подключает клиента; прежнее соединение игрока закрывается
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[c.PlayerID]; ok {
		logger.Component("ws").Debug("замена соединения игрока", "player", c.PlayerID)
		h.dropLocked(old)
	}

	h.clients[c.PlayerID] = c
	subs, ok := h.lobbies[c.LobbyID]
	if !ok {
		subs = make(map[int64]*Client)
		h.lobbies[c.LobbyID] = subs
	}
	subs[c.PlayerID] = c
	metrics.Connections.Inc()
}

// Unregister отключает клиента, если он еще текущий для игрока
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.PlayerID]; ok && cur == c {
		h.dropLocked(c)
	}
}

// вызывать под h.mu.Lock
func (h *Hub) dropLocked(c *Client) {
	delete(h.clients, c.PlayerID)
	if subs, ok := h.lobbies[c.LobbyID]; ok {
		delete(subs, c.PlayerID)
		if len(subs) == 0 {
			delete(h.lobbies, c.LobbyID)
		}
	}
	c.closeSend()
	metrics.Connections.Dec()
}

// SendToPlayer отправляет событие соединению игрока, если оно есть
func (h *Hub) SendToPlayer(playerID int64, ev domain.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		logger.Component("ws").Error("не удалось сериализовать событие", "type", ev.Type, "error", err)
		return
	}
	h.DeliverToPlayer(playerID, msg)
}

// BroadcastToLobby отправляет событие всем подписчикам лобби
func (h *Hub) BroadcastToLobby(lobbyID int64, ev domain.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		logger.Component("ws").Error("не удалось сериализовать событие", "type", ev.Type, "error", err)
		return
	}
	h.DeliverToLobby(lobbyID, msg)
}

func (h *Hub) DeliverToPlayer(playerID int64, msg []byte) {
	var slow []*Client

	h.mu.RLock()
	if c, ok := h.clients[playerID]; ok && !c.trySend(msg) {
		slow = append(slow, c)
	}
	h.mu.RUnlock()

	h.dropSlow(slow)
}

func (h *Hub) DeliverToLobby(lobbyID int64, msg []byte) {
	var slow []*Client

	h.mu.RLock()
	for _, c := range h.lobbies[lobbyID] {
		if !c.trySend(msg) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	h.dropSlow(slow)
}

// клиент с заполненным буфером не успевает читать - отключаем
func (h *Hub) dropSlow(slow []*Client) {
	for _, c := range slow {
		logger.Component("ws").Warn("буфер клиента заполнен, отключаем", "player", c.PlayerID)
		h.Unregister(c)
	}
}

// Len - число активных соединений
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// LobbySize - число подписчиков лобби
func (h *Hub) LobbySize(lobbyID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lobbies[lobbyID])
}
