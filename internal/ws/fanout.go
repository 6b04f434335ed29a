package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"property_game/internal/domain"
	"property_game/internal/logger"

	"github.com/redis/go-redis/v9"
)

// сообщение в канале redis
type envelope struct {
	PlayerID  int64           `json:"player_id,omitempty"`
	LobbyID   int64           `json:"lobby_id,omitempty"`
	Broadcast bool            `json:"broadcast,omitempty"`
	Event     json.RawMessage `json:"event"`
}

// RedisFanout рассылает события через pub/sub, чтобы их получили
// соединения на всех экземплярах сервиса, включая этот
type RedisFanout struct {
	client  *redis.Client
	channel string
	hub     *Hub

	// пока подписки нет, опубликованное никто не доставит
	subscribed atomic.Bool
	minRetry   time.Duration
	maxRetry   time.Duration
}

func NewRedisFanout(client *redis.Client, channel string, hub *Hub) *RedisFanout {
	return &RedisFanout{
		client:   client,
		channel:  channel,
		hub:      hub,
		minRetry: time.Second,
		maxRetry: 30 * time.Second,
	}
}

// Subscribed сообщает, слушает ли экземпляр канал
func (f *RedisFanout) Subscribed() bool {
	return f.subscribed.Load()
}

func (f *RedisFanout) SendToPlayer(playerID int64, ev domain.Event) {
	f.publish(envelope{PlayerID: playerID}, ev)
}

func (f *RedisFanout) BroadcastToLobby(lobbyID int64, ev domain.Event) {
	f.publish(envelope{LobbyID: lobbyID, Broadcast: true}, ev)
}

func (f *RedisFanout) publish(env envelope, ev domain.Event) {
	log := logger.Component("fanout")

	if !f.subscribed.Load() {
		f.deliverEvent(env, ev)
		return
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		log.Error("не удалось сериализовать событие", "type", ev.Type, "error", err)
		return
	}
	env.Event = raw
	data, err := json.Marshal(env)
	if err != nil {
		log.Error("не удалось сериализовать конверт", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		// redis недоступен - доставляем хотя бы своим соединениям
		log.Warn("publish не удался, локальная доставка", "error", err)
		f.deliver(env)
	}
}

// Run слушает канал до отмены ctx, переподписываясь с нарастающей паузой.
// Без подписки события доставляются только локальным соединениям.
func (f *RedisFanout) Run(ctx context.Context) {
	log := logger.Component("fanout")
	delay := f.minRetry

	for {
		listened, err := f.listen(ctx)
		f.subscribed.Store(false)
		if ctx.Err() != nil {
			return
		}
		if listened {
			delay = f.minRetry
		}
		log.Warn("подписка потеряна, повтор", "channel", f.channel, "in", delay, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, f.maxRetry)
	}
}

// listen возвращает true, если подписка успела установиться
func (f *RedisFanout) listen(ctx context.Context) (bool, error) {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return false, fmt.Errorf("subscribe %s: %w", f.channel, err)
	}
	f.subscribed.Store(true)
	logger.Component("fanout").Info("подписка на события", "channel", f.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return true, fmt.Errorf("канал %s закрыт", f.channel)
			}
			f.dispatch([]byte(msg.Payload))
		}
	}
}

func (f *RedisFanout) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.Component("fanout").Warn("битое сообщение в канале", "error", err)
		return
	}
	f.deliver(env)
}

func (f *RedisFanout) deliverEvent(env envelope, ev domain.Event) {
	if env.Broadcast {
		f.hub.BroadcastToLobby(env.LobbyID, ev)
		return
	}
	f.hub.SendToPlayer(env.PlayerID, ev)
}

func (f *RedisFanout) deliver(env envelope) {
	if env.Broadcast {
		f.hub.DeliverToLobby(env.LobbyID, env.Event)
		return
	}
	f.hub.DeliverToPlayer(env.PlayerID, env.Event)
}
