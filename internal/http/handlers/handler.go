package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"property_game/internal/domain"
	"property_game/internal/http/middleware"
	"property_game/internal/logger"
	"property_game/internal/service"

	"github.com/gin-gonic/gin"
)

// живые действия игрока
type Actions interface {
	Move(ctx context.Context, lobbyID, userID int64) (*service.MoveResult, error)
	Act(ctx context.Context, lobbyID, userID int64) (*service.ActResult, error)
	Bid(ctx context.Context, lobbyID, userID int64, position int, amount int64) (*service.HouseResult, error)
	Upgrade(ctx context.Context, lobbyID, userID int64, position int) (*service.HouseResult, error)
	Sell(ctx context.Context, lobbyID, userID int64, position int) (*service.HouseResult, error)
	Standings(ctx context.Context, lobbyID int64) ([]domain.LeaderboardEntry, error)
	Transactions(ctx context.Context, lobbyID, userID int64, limit int) ([]*domain.TransactionRecord, error)
}

// сохраненные итоги партий
type History interface {
	Leaderboard(ctx context.Context, lobbyID int64) (*domain.Leaderboard, error)
}

type Handler struct {
	Actions Actions
	History History
}

func NewHandler(actions Actions, history History) *Handler {
	return &Handler{Actions: actions, History: history}
}

func getUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// lobbyAndUser разбирает :id и пользователя; при ошибке ответ уже записан
func lobbyAndUser(c *gin.Context) (lobbyID, userID int64, ok bool) {
	userID, ok = getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return 0, 0, false
	}
	lobbyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || lobbyID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lobby id"})
		return 0, 0, false
	}
	return lobbyID, userID, true
}

// ошибки ядра -> HTTP
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrInsufficientFunds):
		c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient funds"})
	case errors.Is(err, domain.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid state", "details": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "busy, try again"})
	default:
		logger.Component("http").Error("ошибка обработки запроса", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// бросок кубиков и перемещение
func (h *Handler) Move(c *gin.Context) {
	lobbyID, userID, ok := lobbyAndUser(c)
	if !ok {
		return
	}
	res, err := h.Actions.Move(c.Request.Context(), lobbyID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// обязательное действие клетки
func (h *Handler) Act(c *gin.Context) {
	lobbyID, userID, ok := lobbyAndUser(c)
	if !ok {
		return
	}
	res, err := h.Actions.Act(c.Request.Context(), lobbyID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// последние переводы игрока
func (h *Handler) Transactions(c *gin.Context) {
	lobbyID, userID, ok := lobbyAndUser(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	txs, err := h.Actions.Transactions(c.Request.Context(), lobbyID, userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}
