package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func housePosition(c *gin.Context) (int, bool) {
	pos, err := strconv.Atoi(c.Param("pos"))
	if err != nil || pos < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid position"})
		return 0, false
	}
	return pos, true
}

// ставка на свободный или выставленный дом
func (h *Handler) Bid(c *gin.Context) {
	lobbyID, userID, ok := lobbyAndUser(c)
	if !ok {
		return
	}
	pos, ok := housePosition(c)
	if !ok {
		return
	}

	var req struct {
		Amount int64 `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	res, err := h.Actions.Bid(c.Request.Context(), lobbyID, userID, pos, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Upgrade(c *gin.Context) {
	lobbyID, userID, ok := lobbyAndUser(c)
	if !ok {
		return
	}
	pos, ok := housePosition(c)
	if !ok {
		return
	}
	res, err := h.Actions.Upgrade(c.Request.Context(), lobbyID, userID, pos)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Sell(c *gin.Context) {
	lobbyID, userID, ok := lobbyAndUser(c)
	if !ok {
		return
	}
	pos, ok := housePosition(c)
	if !ok {
		return
	}
	res, err := h.Actions.Sell(c.Request.Context(), lobbyID, userID, pos)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
