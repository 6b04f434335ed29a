package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsAdvanced считает срабатывания таймеров лобби по исходу
	TurnsAdvanced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_turns_advanced_total",
		Help: "Turn advancements per outcome (ok, ended, error).",
	}, []string{"result"})

	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_turn_duration_seconds",
		Help:    "Time spent advancing one lobby, including lock waits.",
		Buckets: prometheus.DefBuckets,
	})

	ScheduledLobbies = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_scheduled_lobbies",
		Help: "Lobbies with an installed turn timer.",
	})

	Transfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_transfers_total",
		Help: "Ledger transfers per transaction type.",
	}, []string{"type"})

	TransferVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_transfer_volume_total",
		Help: "Sum of transferred amounts per transaction type.",
	}, []string{"type"})

	InsufficientFunds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_insufficient_funds_total",
		Help: "Rejected unforced transfers.",
	})

	Eliminations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_players_eliminated_total",
		Help: "Players eliminated for a negative balance.",
	})

	SerializerWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_player_lock_wait_seconds",
		Help:    "Time a request waited for the per-player execution slot.",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
	})

	PlayerActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_player_actions_total",
		Help: "Live player actions per action and outcome.",
	}, []string{"action", "result"})

	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_ws_connections",
		Help: "Open websocket connections.",
	})
)
