package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"property_game/internal/domain"
)

func seedLobby(t *testing.T, s *MemoryStore) (*domain.Lobby, *domain.Player) {
	t.Helper()
	ctx := context.Background()

	l := &domain.Lobby{MapID: 1, TurnsLeft: 3, TurnInterval: time.Minute, StartAt: time.Now()}
	if err := s.CreateLobby(ctx, l); err != nil {
		t.Fatalf("создание лобби: %v", err)
	}
	p := &domain.Player{LobbyID: l.ID, UserID: 42, Balance: 1000}
	if err := s.CreatePlayer(ctx, p); err != nil {
		t.Fatalf("создание игрока: %v", err)
	}
	return l, p
}

func TestMemoryStore_PlayerIDsStartAfterBank(t *testing.T) {
	s := NewMemoryStore()
	_, p := seedLobby(t, s)
	if p.ID == domain.BankAccount {
		t.Fatalf("id игрока совпал со счетом банка")
	}
}

func TestMemoryStore_InTxCommits(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, p := seedLobby(t, s)

	err := s.InTx(ctx, func(tx Tx) error {
		got, err := tx.GetPlayer(ctx, p.ID)
		if err != nil {
			return err
		}
		got.Balance = 500
		if err := tx.UpdatePlayer(ctx, got); err != nil {
			return err
		}
		return tx.AppendTransaction(ctx, &domain.TransactionRecord{ID: "a", LobbyID: p.LobbyID, Amount: 500, From: p.ID, To: domain.BankAccount})
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	got, _ := s.GetPlayer(ctx, p.ID)
	if got.Balance != 500 {
		t.Fatalf("ожидался баланс 500, получили %d", got.Balance)
	}
	recs, _ := s.ListTransactions(ctx, p.LobbyID, p.ID, 10)
	if len(recs) != 1 {
		t.Fatalf("ожидалась 1 запись, получили %d", len(recs))
	}
}

func TestMemoryStore_InTxRollsBack(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, p := seedLobby(t, s)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx Tx) error {
		got, _ := tx.GetPlayer(ctx, p.ID)
		got.Balance = 1
		_ = tx.UpdatePlayer(ctx, got)
		_ = tx.AppendTransaction(ctx, &domain.TransactionRecord{ID: "b", LobbyID: p.LobbyID, From: p.ID})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ожидалась исходная ошибка, получили %v", err)
	}

	got, _ := s.GetPlayer(ctx, p.ID)
	if got.Balance != 1000 {
		t.Fatalf("после отката баланс изменился: %d", got.Balance)
	}
	recs, _ := s.ListTransactions(ctx, p.LobbyID, p.ID, 10)
	if len(recs) != 0 {
		t.Fatalf("после отката осталась запись журнала")
	}
}

func TestMemoryStore_ReadsReturnCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, p := seedLobby(t, s)

	got, _ := s.GetPlayer(ctx, p.ID)
	got.Balance = 0

	again, _ := s.GetPlayer(ctx, p.ID)
	if again.Balance != 1000 {
		t.Fatalf("изменение копии протекло в хранилище")
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetLobby(ctx, 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидался ErrNotFound, получили %v", err)
	}
	if err := s.CreatePlayer(ctx, &domain.Player{LobbyID: 99}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("игрок в несуществующем лобби: ожидался ErrNotFound, получили %v", err)
	}
	err := s.InTx(ctx, func(tx Tx) error {
		return tx.UpdateHouse(ctx, &domain.House{LobbyID: 1, Position: 3})
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("обновление несуществующего дома: ожидался ErrNotFound, получили %v", err)
	}
}

func TestMemoryStore_ListRunningLobbies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.CreateLobby(ctx, &domain.Lobby{TurnsLeft: 2})
	_ = s.CreateLobby(ctx, &domain.Lobby{TurnsLeft: 0})
	_ = s.CreateLobby(ctx, &domain.Lobby{TurnsLeft: 1})

	running, err := s.ListRunningLobbies(ctx)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(running) != 2 || running[0].ID != 1 || running[1].ID != 3 {
		t.Fatalf("ожидались лобби 1 и 3, получили %+v", running)
	}
}

func TestMemoryStore_EnsureHouseKeepsExisting(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	l, p := seedLobby(t, s)

	err := s.InTx(ctx, func(tx Tx) error {
		return tx.EnsureHouse(ctx, &domain.House{LobbyID: l.ID, Position: 3, State: domain.HouseFree})
	})
	if err != nil {
		t.Fatalf("создание дома: %v", err)
	}
	h, err := s.GetHouse(ctx, l.ID, 3)
	if err != nil || h.State != domain.HouseFree || h.OwnerID != domain.BankAccount {
		t.Fatalf("ожидали свободный дом, получили %+v, %v", h, err)
	}

	// повторный вызов не перезаписывает владельца
	err = s.InTx(ctx, func(tx Tx) error {
		owned := *h
		owned.OwnerID, owned.State = p.ID, domain.HouseOwned
		if err := tx.UpdateHouse(ctx, &owned); err != nil {
			return err
		}
		return tx.EnsureHouse(ctx, &domain.House{LobbyID: l.ID, Position: 3, State: domain.HouseFree})
	})
	if err != nil {
		t.Fatalf("обновление дома: %v", err)
	}
	if h, _ := s.GetHouse(ctx, l.ID, 3); h.OwnerID != p.ID {
		t.Fatalf("EnsureHouse перезаписал владельца: %+v", h)
	}

	err = s.InTx(ctx, func(tx Tx) error {
		return tx.EnsureHouse(ctx, &domain.House{LobbyID: 999, Position: 1})
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("неизвестное лобби: ожидали ErrNotFound, получили %v", err)
	}
}

func TestMemoryStore_TransactionsSameTimestampNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	l, p := seedLobby(t, s)

	at := time.Now()
	err := s.InTx(ctx, func(tx Tx) error {
		for i, typ := range []domain.TransactionType{domain.TransactionSalary, domain.TransactionRent, domain.TransactionTax} {
			rec := &domain.TransactionRecord{
				ID: string(typ), LobbyID: l.ID, Amount: int64(i + 1),
				From: domain.BankAccount, To: p.ID, Type: typ, CreatedAt: at,
			}
			if err := tx.AppendTransaction(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("запись переводов: %v", err)
	}

	got, err := s.ListTransactions(ctx, l.ID, p.ID, 2)
	if err != nil {
		t.Fatalf("чтение переводов: %v", err)
	}
	if len(got) != 2 || got[0].Type != domain.TransactionTax || got[1].Type != domain.TransactionRent {
		t.Fatalf("ожидали tax, rent по порядку вставки: %+v", got)
	}
}
