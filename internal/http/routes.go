package http

import (
	"net/http"
	"time"

	"property_game/internal/http/handlers"
	"property_game/internal/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// зависимости маршрутов
type Deps struct {
	Handler       *handlers.Handler
	WS            gin.HandlerFunc
	Tokens        middleware.TokenVerifier
	AllowedOrigin string
	ActionTimeout time.Duration
	Version       string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(middleware.CORS(d.AllowedOrigin))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": d.Version})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if d.WS != nil {
		r.GET("/ws", d.WS)
	}

	api := r.Group("/api/lobbies/:id", middleware.Auth(d.Tokens), middleware.Timeout(d.ActionTimeout))
	{
		api.POST("/move", d.Handler.Move)
		api.POST("/action", d.Handler.Act)
		api.GET("/transactions", d.Handler.Transactions)
		api.GET("/standings", d.Handler.Standings)
		api.GET("/result", d.Handler.Result)

		api.POST("/houses/:pos/bid", d.Handler.Bid)
		api.POST("/houses/:pos/upgrade", d.Handler.Upgrade)
		api.POST("/houses/:pos/sell", d.Handler.Sell)
	}
}
