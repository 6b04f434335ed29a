package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"property_game/internal/board"
	"property_game/internal/config"
	"property_game/internal/db"
	httpServer "property_game/internal/http"
	"property_game/internal/http/handlers"
	"property_game/internal/logger"
	"property_game/internal/recorder"
	"property_game/internal/repository"
	"property_game/internal/scheduler"
	"property_game/internal/service"
	"property_game/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Version устанавливается при сборке
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", "error", err)
	}
	logger.Init(cfg.LogLevel, cfg.JSONLogs())
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// хранилище: postgres в проде, память для локального запуска
	var store repository.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database", "error", err)
		}
		store = repository.NewPostgresStore(pool)
	} else {
		log.Warn("DATABASE_URL не задан - состояние хранится в памяти")
		store = repository.NewMemoryStore()
	}
	defer store.Close()

	if cfg.MapsDir != "" {
		n, err := board.Seed(ctx, store, cfg.MapsDir)
		if err != nil {
			logger.Fatal("seed maps", "dir", cfg.MapsDir, "error", err)
		}
		log.Info("карты загружены", "count", n, "dir", cfg.MapsDir)
	}

	hub := ws.NewHub()
	var notifier service.Notifier = hub
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis url", "error", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		fanout := ws.NewRedisFanout(rdb, cfg.RedisChannel, hub)
		// до подписки события идут только локальным соединениям
		go fanout.Run(ctx)
		notifier = fanout
		log.Info("события рассылаются через redis", "channel", cfg.RedisChannel)
	}

	var history recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.HistoryDBPath != "" {
		r, err := recorder.NewSQLiteRecorder(cfg.HistoryDBPath)
		if err != nil {
			logger.Fatal("history db", "error", err)
		}
		history = r
	}
	defer history.Close()

	ledger := service.NewLedger()
	serializer := service.NewExecutionSerializer()
	coordinator := service.NewCoordinator(store, notifier)
	movement := service.NewMovementEngine(ledger, nil)
	resolver := service.NewActionResolver(ledger, nil)
	turns := service.NewTurnService(
		store, coordinator, serializer, movement, resolver,
		service.NewAuctionSettlement(ledger), history,
	)
	actions := service.NewActionService(store, coordinator, serializer, ledger, movement, resolver)
	tokens := service.NewTokenVerifier(cfg.JWTSecret)

	sched := scheduler.New(store, turns, scheduler.Options{
		ResyncInterval: cfg.LobbyResync,
		TurnTimeout:    cfg.TurnTimeout,
	})
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("scheduler", "error", err)
	}

	r := gin.Default()
	httpServer.RegisterRoutes(r, httpServer.Deps{
		Handler:       handlers.NewHandler(actions, history),
		WS:            ws.NewHandler(hub, tokens, store, cfg.AllowedOrigin).Handle,
		Tokens:        tokens,
		AllowedOrigin: cfg.AllowedOrigin,
		ActionTimeout: cfg.ActionTimeout,
		Version:       Version,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		log.Info("server started", "port", cfg.AppPort, "version", Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	// ждем идущие ходы, чтобы не оборвать транзакции
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn("не дождались завершения ходов")
	}

	log.Info("server exited")
}
