package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"property_game/internal/domain"
	"property_game/internal/repository"
)

type sentEvent struct {
	playerID int64
	event    domain.Event
}

// запоминает все отправленные события
type recordingNotifier struct {
	mu        sync.Mutex
	direct    []sentEvent
	broadcast []domain.Event
}

func (n *recordingNotifier) SendToPlayer(playerID int64, ev domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.direct = append(n.direct, sentEvent{playerID, ev})
}

func (n *recordingNotifier) BroadcastToLobby(_ int64, ev domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcast = append(n.broadcast, ev)
}

func (n *recordingNotifier) broadcasts(t domain.EventType) []domain.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Event
	for _, ev := range n.broadcast {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (n *recordingNotifier) sentTo(playerID int64, t domain.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, s := range n.direct {
		if s.playerID == playerID && s.event.Type == t {
			count++
		}
	}
	return count
}

// всегда возвращает v по модулю n
type fixedRand struct {
	v int
}

func (r fixedRand) Intn(n int) int {
	return r.v % n
}

type fakeRecorder struct {
	mu    sync.Mutex
	saved []*domain.Leaderboard
}

func (r *fakeRecorder) RecordLeaderboard(_ context.Context, lb *domain.Leaderboard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, lb)
	return nil
}

// кольцевая карта из n клеток: i -> i+1; special переопределяет клетки
func ringBoard(n int, special map[int]domain.Case) *domain.Board {
	b := &domain.Board{
		Name:             "ring",
		Salary:           100,
		RatingMultiplier: domain.MultiplierRange{Lo: 1, Hi: 2},
	}
	for i := 0; i < n; i++ {
		c := domain.Case{Index: i, Type: domain.CaseTransit, Next: []int{(i + 1) % n}}
		if i == 0 {
			c.Type = domain.CaseStart
		}
		if s, ok := special[i]; ok {
			s.Index = i
			if len(s.Next) == 0 {
				s.Next = c.Next
			}
			c = s
		}
		b.Cases = append(b.Cases, c)
	}
	return b
}

func houseCase(prices, rents []int64) domain.Case {
	return domain.Case{Type: domain.CaseHouse, Prices: prices, Rents: rents}
}

type fixture struct {
	ctx         context.Context
	store       *repository.MemoryStore
	notifier    *recordingNotifier
	recorder    *fakeRecorder
	ledger      *Ledger
	movement    *MovementEngine
	resolver    *ActionResolver
	auction     *AuctionSettlement
	serializer  *ExecutionSerializer
	coordinator *Coordinator
	turns       *TurnService
	actions     *ActionService
	lobby       *domain.Lobby
	board       *domain.Board
}

// кубики по умолчанию всегда дают 1+1+1
func newFixture(t *testing.T, board *domain.Board, turns int) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()

	if err := store.SaveMap(ctx, board); err != nil {
		t.Fatalf("save map: %v", err)
	}
	lobby := &domain.Lobby{
		MapID:        board.ID,
		TurnsLeft:    turns,
		TurnInterval: time.Minute,
		StartAt:      time.Now().Add(-time.Hour),
	}
	if err := store.CreateLobby(ctx, lobby); err != nil {
		t.Fatalf("create lobby: %v", err)
	}

	f := &fixture{
		ctx:        ctx,
		store:      store,
		notifier:   &recordingNotifier{},
		recorder:   &fakeRecorder{},
		ledger:     NewLedger(),
		serializer: NewExecutionSerializer(),
		lobby:      lobby,
		board:      board,
	}
	f.movement = NewMovementEngine(f.ledger, fixedRand{0})
	f.resolver = NewActionResolver(f.ledger, nil)
	f.auction = NewAuctionSettlement(f.ledger)
	f.coordinator = NewCoordinator(store, f.notifier)
	f.turns = NewTurnService(store, f.coordinator, f.serializer, f.movement, f.resolver, f.auction, f.recorder)
	f.actions = NewActionService(store, f.coordinator, f.serializer, f.ledger, f.movement, f.resolver)
	return f
}

func (f *fixture) addPlayer(t *testing.T, userID, balance int64, position int) *domain.Player {
	t.Helper()
	p := &domain.Player{LobbyID: f.lobby.ID, UserID: userID, Balance: balance, Position: position}
	if err := f.store.CreatePlayer(f.ctx, p); err != nil {
		t.Fatalf("create player: %v", err)
	}
	return p
}

func (f *fixture) addHouse(t *testing.T, h domain.House) {
	t.Helper()
	h.LobbyID = f.lobby.ID
	if h.State == "" {
		h.State = domain.HouseFree
	}
	if err := f.store.CreateHouse(f.ctx, &h); err != nil {
		t.Fatalf("create house: %v", err)
	}
}

func (f *fixture) player(t *testing.T, id int64) *domain.Player {
	t.Helper()
	p, err := f.store.GetPlayer(f.ctx, id)
	if err != nil {
		t.Fatalf("get player %d: %v", id, err)
	}
	return p
}

func (f *fixture) house(t *testing.T, position int) *domain.House {
	t.Helper()
	h, err := f.store.GetHouse(f.ctx, f.lobby.ID, position)
	if err != nil {
		t.Fatalf("get house %d: %v", position, err)
	}
	return h
}

func (f *fixture) txCount(t *testing.T, account domain.AccountID) int {
	t.Helper()
	recs, err := f.store.ListTransactions(f.ctx, f.lobby.ID, account, 0)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	return len(recs)
}

// выполняет fn в области лобби
func (f *fixture) inScope(t *testing.T, fn func(ctx context.Context, s *Scope) error) error {
	t.Helper()
	return f.coordinator.Run(f.ctx, f.lobby.ID, fn)
}
