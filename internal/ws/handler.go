package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"property_game/internal/domain"
	"property_game/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// проверка токена игрока
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// поиск игрока лобби по пользователю
type PlayerLookup interface {
	GetPlayerByUser(ctx context.Context, lobbyID, userID int64) (*domain.Player, error)
}

// Handler поднимает websocket игрока: GET /ws?token=...&lobby=...
type Handler struct {
	hub      *Hub
	tokens   TokenVerifier
	players  PlayerLookup
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, tokens TokenVerifier, players PlayerLookup, allowedOrigin string) *Handler {
	return &Handler{
		hub:     hub,
		tokens:  tokens,
		players: players,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

func (h *Handler) Handle(c *gin.Context) {
	userID, err := h.tokens.Verify(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "неверный токен"})
		return
	}

	lobbyID, err := strconv.ParseInt(c.Query("lobby"), 10, 64)
	if err != nil || lobbyID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный id лобби"})
		return
	}

	player, err := h.players.GetPlayerByUser(c.Request.Context(), lobbyID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "игрок не найден в лобби"})
		return
	}
	if err != nil {
		logger.Component("ws").Error("поиск игрока", "lobby", lobbyID, "user", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// ответ уже записан апгрейдером
		logger.Component("ws").Warn("ошибка обновления ws", "error", err)
		return
	}

	client := NewClient(player.ID, lobbyID, conn, h.hub)
	go client.Run()
}
