package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"property_game/internal/domain"
	"property_game/internal/repository"
	"property_game/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// клиент без сетевого соединения
func fakeClient(hub *Hub, playerID, lobbyID int64) *Client {
	return NewClient(playerID, lobbyID, nil, hub)
}

func recv(t *testing.T, c *Client) domain.Event {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		require.True(t, ok, "канал закрыт")
		var ev domain.Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatalf("сообщение не пришло")
	}
	return domain.Event{}
}

func TestHub_SendToPlayer(t *testing.T) {
	hub := NewHub()
	a := fakeClient(hub, 1, 10)
	b := fakeClient(hub, 2, 10)
	hub.Register(a)
	hub.Register(b)

	hub.SendToPlayer(1, domain.Event{Type: domain.EventBalanceChanged, PlayerID: 1})

	ev := recv(t, a)
	assert.Equal(t, domain.EventBalanceChanged, ev.Type)
	assert.Empty(t, b.Send, "другой игрок не должен получить событие")

	// нет соединения - событие просто теряется
	hub.SendToPlayer(99, domain.Event{Type: domain.EventBalanceChanged})
}

func TestHub_BroadcastOnlyToLobby(t *testing.T) {
	hub := NewHub()
	a := fakeClient(hub, 1, 10)
	b := fakeClient(hub, 2, 10)
	other := fakeClient(hub, 3, 20)
	for _, c := range []*Client{a, b, other} {
		hub.Register(c)
	}
	assert.Equal(t, 2, hub.LobbySize(10))

	hub.BroadcastToLobby(10, domain.Event{Type: domain.EventTurnEnded, LobbyID: 10})

	assert.Equal(t, domain.EventTurnEnded, recv(t, a).Type)
	assert.Equal(t, domain.EventTurnEnded, recv(t, b).Type)
	assert.Empty(t, other.Send)
}

func TestHub_ReplaceConnection(t *testing.T) {
	hub := NewHub()
	first := fakeClient(hub, 1, 10)
	second := fakeClient(hub, 1, 10)
	hub.Register(first)
	hub.Register(second)

	_, ok := <-first.Send
	assert.False(t, ok, "старое соединение должно закрыться")
	assert.Equal(t, 1, hub.Len())

	// старый клиент не может снять новый
	hub.Unregister(first)
	assert.Equal(t, 1, hub.Len())

	hub.Unregister(second)
	assert.Equal(t, 0, hub.Len())
	assert.Equal(t, 0, hub.LobbySize(10))
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := NewHub()
	c := fakeClient(hub, 1, 10)
	hub.Register(c)

	for i := 0; i < sendBuffer+1; i++ {
		hub.SendToPlayer(1, domain.Event{Type: domain.EventBalanceChanged})
	}
	assert.Equal(t, 0, hub.Len(), "медленный клиент должен быть отключен")
}

func TestFanout_DispatchDeliversLocally(t *testing.T) {
	hub := NewHub()
	c := fakeClient(hub, 5, 10)
	hub.Register(c)
	f := NewRedisFanout(nil, "test", hub)

	f.dispatch([]byte(`{"lobby_id":10,"broadcast":true,"event":{"type":"turn_ended","lobby_id":10}}`))
	assert.Equal(t, domain.EventTurnEnded, recv(t, c).Type)

	f.dispatch([]byte(`{"player_id":5,"event":{"type":"player_eliminated","player_id":5}}`))
	assert.Equal(t, domain.EventPlayerEliminated, recv(t, c).Type)

	f.dispatch([]byte(`not json`))
	assert.Empty(t, c.Send)
}

func TestHandler_PushesEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := t.Context()

	store := repository.NewMemoryStore()
	lobby := &domain.Lobby{MapID: 1, TurnsLeft: 1, TurnInterval: time.Minute}
	require.NoError(t, store.CreateLobby(ctx, lobby))
	player := &domain.Player{LobbyID: lobby.ID, UserID: 77}
	require.NoError(t, store.CreatePlayer(ctx, player))

	hub := NewHub()
	tokens := service.NewTokenVerifier("secret")
	r := gin.New()
	r.GET("/ws", NewHandler(hub, tokens, store, "").Handle)
	srv := httptest.NewServer(r)
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	// без токена - 401
	_, resp, err := websocket.DefaultDialer.Dial(base+"?lobby=1", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := tokens.Issue(77, time.Hour)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(base+"?lobby=1&token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	hub.BroadcastToLobby(lobby.ID, domain.Event{Type: domain.EventTurnEnded, LobbyID: lobby.ID})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev domain.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domain.EventTurnEnded, ev.Type)
	assert.Equal(t, lobby.ID, ev.LobbyID)
}

func TestFanout_LocalDeliveryUntilSubscribed(t *testing.T) {
	hub := NewHub()
	c := fakeClient(hub, 5, 10)
	hub.Register(c)

	// недоступный redis: подписка не установится
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	f := NewRedisFanout(rdb, "test", hub)
	f.minRetry, f.maxRetry = 10*time.Millisecond, 20*time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	assert.False(t, f.Subscribed())

	f.BroadcastToLobby(10, domain.Event{Type: domain.EventTurnEnded})
	assert.Equal(t, domain.EventTurnEnded, recv(t, c).Type)
	f.SendToPlayer(5, domain.Event{Type: domain.EventBalanceChanged})
	assert.Equal(t, domain.EventBalanceChanged, recv(t, c).Type)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run не остановился после отмены")
	}
}
