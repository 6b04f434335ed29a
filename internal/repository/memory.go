package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"property_game/internal/domain"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Tx    = (*memTx)(nil)
)

type houseKey struct {
	lobbyID  int64
	position int
}

type memState struct {
	lobbies      map[int64]*domain.Lobby
	players      map[int64]*domain.Player
	houses       map[houseKey]*domain.House
	maps         map[int64]*domain.Board
	transactions []*domain.TransactionRecord
	lobbySeq     int64
	playerSeq    int64
	mapSeq       int64
}

func newMemState() *memState {
	return &memState{
		lobbies: make(map[int64]*domain.Lobby),
		players: make(map[int64]*domain.Player),
		houses:  make(map[houseKey]*domain.House),
		maps:    make(map[int64]*domain.Board),
	}
}

// копия для транзакции; карты неизменяемы и не копируются
func (s *memState) clone() *memState {
	cp := newMemState()
	for id, l := range s.lobbies {
		cp.lobbies[id] = copyLobby(l)
	}
	for id, p := range s.players {
		cp.players[id] = p.Clone()
	}
	for k, h := range s.houses {
		hc := *h
		cp.houses[k] = &hc
	}
	for id, b := range s.maps {
		cp.maps[id] = b
	}
	cp.transactions = append([]*domain.TransactionRecord(nil), s.transactions...)
	cp.lobbySeq, cp.playerSeq, cp.mapSeq = s.lobbySeq, s.playerSeq, s.mapSeq
	return cp
}

func copyLobby(l *domain.Lobby) *domain.Lobby {
	cp := *l
	if l.EndedAt != nil {
		t := *l.EndedAt
		cp.EndedAt = &t
	}
	return &cp
}

// MemoryStore хранит все в памяти; транзакции сериализуются и
// применяются заменой снимка целиком
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

// NewMemoryStore создает пустое хранилище в памяти
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (s *MemoryStore) read(fn func(v memView) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(memView{st: s.state})
}

func (s *MemoryStore) GetLobby(ctx context.Context, id int64) (l *domain.Lobby, err error) {
	err = s.read(func(v memView) error { l, err = v.GetLobby(ctx, id); return err })
	return l, err
}

func (s *MemoryStore) ListRunningLobbies(ctx context.Context) (out []*domain.Lobby, err error) {
	err = s.read(func(v memView) error { out, err = v.ListRunningLobbies(ctx); return err })
	return out, err
}

func (s *MemoryStore) GetPlayer(ctx context.Context, id int64) (p *domain.Player, err error) {
	err = s.read(func(v memView) error { p, err = v.GetPlayer(ctx, id); return err })
	return p, err
}

func (s *MemoryStore) GetPlayerByUser(ctx context.Context, lobbyID, userID int64) (p *domain.Player, err error) {
	err = s.read(func(v memView) error { p, err = v.GetPlayerByUser(ctx, lobbyID, userID); return err })
	return p, err
}

func (s *MemoryStore) ListPlayers(ctx context.Context, lobbyID int64) (out []*domain.Player, err error) {
	err = s.read(func(v memView) error { out, err = v.ListPlayers(ctx, lobbyID); return err })
	return out, err
}

func (s *MemoryStore) GetHouse(ctx context.Context, lobbyID int64, position int) (h *domain.House, err error) {
	err = s.read(func(v memView) error { h, err = v.GetHouse(ctx, lobbyID, position); return err })
	return h, err
}

func (s *MemoryStore) ListHouses(ctx context.Context, lobbyID int64) (out []*domain.House, err error) {
	err = s.read(func(v memView) error { out, err = v.ListHouses(ctx, lobbyID); return err })
	return out, err
}

func (s *MemoryStore) GetMap(ctx context.Context, id int64) (b *domain.Board, err error) {
	err = s.read(func(v memView) error { b, err = v.GetMap(ctx, id); return err })
	return b, err
}

func (s *MemoryStore) ListTransactions(ctx context.Context, lobbyID int64, account domain.AccountID, limit int) (out []*domain.TransactionRecord, err error) {
	err = s.read(func(v memView) error { out, err = v.ListTransactions(ctx, lobbyID, account, limit); return err })
	return out, err
}

// CreateLobby присваивает id и сохраняет лобби
func (s *MemoryStore) CreateLobby(_ context.Context, l *domain.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.lobbySeq++
	l.ID = s.state.lobbySeq
	s.state.lobbies[l.ID] = copyLobby(l)
	return nil
}

// CreatePlayer присваивает id, начиная с 1: id 0 занят банком
func (s *MemoryStore) CreatePlayer(_ context.Context, p *domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.lobbies[p.LobbyID]; !ok {
		return fmt.Errorf("лобби %d: %w", p.LobbyID, domain.ErrNotFound)
	}
	s.state.playerSeq++
	p.ID = s.state.playerSeq
	s.state.players[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStore) CreateHouse(_ context.Context, h *domain.House) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.lobbies[h.LobbyID]; !ok {
		return fmt.Errorf("лобби %d: %w", h.LobbyID, domain.ErrNotFound)
	}
	hc := *h
	s.state.houses[houseKey{h.LobbyID, h.Position}] = &hc
	return nil
}

// SaveMap создает карту или заменяет существующую с тем же id
func (s *MemoryStore) SaveMap(_ context.Context, b *domain.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		s.state.mapSeq++
		b.ID = s.state.mapSeq
	} else if b.ID > s.state.mapSeq {
		s.state.mapSeq = b.ID
	}
	cp := *b
	cp.Cases = append([]domain.Case(nil), b.Cases...)
	s.state.maps[b.ID] = &cp
	return nil
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{memView{st: work}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransactionFailed, err)
	}
	s.state = work
	return nil
}

func (s *MemoryStore) Close() {}

// чтение из снимка; наружу отдаются копии
type memView struct {
	st *memState
}

func (v memView) GetLobby(_ context.Context, id int64) (*domain.Lobby, error) {
	l, ok := v.st.lobbies[id]
	if !ok {
		return nil, fmt.Errorf("лобби %d: %w", id, domain.ErrNotFound)
	}
	return copyLobby(l), nil
}

func (v memView) ListRunningLobbies(_ context.Context) ([]*domain.Lobby, error) {
	var out []*domain.Lobby
	for _, l := range v.st.lobbies {
		if l.IsRunning() {
			out = append(out, copyLobby(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v memView) GetPlayer(_ context.Context, id int64) (*domain.Player, error) {
	p, ok := v.st.players[id]
	if !ok {
		return nil, fmt.Errorf("игрок %d: %w", id, domain.ErrNotFound)
	}
	return p.Clone(), nil
}

func (v memView) GetPlayerByUser(_ context.Context, lobbyID, userID int64) (*domain.Player, error) {
	for _, p := range v.st.players {
		if p.LobbyID == lobbyID && p.UserID == userID {
			return p.Clone(), nil
		}
	}
	return nil, fmt.Errorf("пользователь %d в лобби %d: %w", userID, lobbyID, domain.ErrNotFound)
}

func (v memView) ListPlayers(_ context.Context, lobbyID int64) ([]*domain.Player, error) {
	var out []*domain.Player
	for _, p := range v.st.players {
		if p.LobbyID == lobbyID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v memView) GetHouse(_ context.Context, lobbyID int64, position int) (*domain.House, error) {
	h, ok := v.st.houses[houseKey{lobbyID, position}]
	if !ok {
		return nil, fmt.Errorf("дом %d в лобби %d: %w", position, lobbyID, domain.ErrNotFound)
	}
	hc := *h
	return &hc, nil
}

func (v memView) ListHouses(_ context.Context, lobbyID int64) ([]*domain.House, error) {
	var out []*domain.House
	for k, h := range v.st.houses {
		if k.lobbyID == lobbyID {
			hc := *h
			out = append(out, &hc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (v memView) GetMap(_ context.Context, id int64) (*domain.Board, error) {
	b, ok := v.st.maps[id]
	if !ok {
		return nil, fmt.Errorf("карта %d: %w", id, domain.ErrNotFound)
	}
	return b, nil
}

func (v memView) ListTransactions(_ context.Context, lobbyID int64, account domain.AccountID, limit int) ([]*domain.TransactionRecord, error) {
	var out []*domain.TransactionRecord
	for i := len(v.st.transactions) - 1; i >= 0; i-- {
		rec := v.st.transactions[i]
		if rec.LobbyID != lobbyID || (rec.From != account && rec.To != account) {
			continue
		}
		rc := *rec
		out = append(out, &rc)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type memTx struct {
	memView
}

func (t *memTx) UpdateLobby(_ context.Context, l *domain.Lobby) error {
	if _, ok := t.st.lobbies[l.ID]; !ok {
		return fmt.Errorf("лобби %d: %w", l.ID, domain.ErrNotFound)
	}
	t.st.lobbies[l.ID] = copyLobby(l)
	return nil
}

func (t *memTx) UpdatePlayer(_ context.Context, p *domain.Player) error {
	if _, ok := t.st.players[p.ID]; !ok {
		return fmt.Errorf("игрок %d: %w", p.ID, domain.ErrNotFound)
	}
	t.st.players[p.ID] = p.Clone()
	return nil
}

func (t *memTx) UpdateHouse(_ context.Context, h *domain.House) error {
	k := houseKey{h.LobbyID, h.Position}
	if _, ok := t.st.houses[k]; !ok {
		return fmt.Errorf("дом %d в лобби %d: %w", h.Position, h.LobbyID, domain.ErrNotFound)
	}
	hc := *h
	t.st.houses[k] = &hc
	return nil
}

func (t *memTx) EnsureHouse(_ context.Context, h *domain.House) error {
	k := houseKey{h.LobbyID, h.Position}
	if _, ok := t.st.houses[k]; ok {
		return nil
	}
	if _, ok := t.st.lobbies[h.LobbyID]; !ok {
		return fmt.Errorf("лобби %d: %w", h.LobbyID, domain.ErrNotFound)
	}
	hc := *h
	t.st.houses[k] = &hc
	return nil
}

func (t *memTx) AppendTransaction(_ context.Context, rec *domain.TransactionRecord) error {
	rc := *rec
	t.st.transactions = append(t.st.transactions, &rc)
	return nil
}
