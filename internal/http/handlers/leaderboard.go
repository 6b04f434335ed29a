package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func lobbyParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lobby id"})
		return 0, false
	}
	return id, true
}

// текущая таблица лобби
func (h *Handler) Standings(c *gin.Context) {
	lobbyID, ok := lobbyParam(c)
	if !ok {
		return
	}
	entries, err := h.Actions.Standings(c.Request.Context(), lobbyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lobby_id": lobbyID, "standings": entries})
}

// итог завершенной партии из истории
func (h *Handler) Result(c *gin.Context) {
	lobbyID, ok := lobbyParam(c)
	if !ok {
		return
	}
	lb, err := h.History.Leaderboard(c.Request.Context(), lobbyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lb)
}
