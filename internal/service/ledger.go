package service

import (
	"context"
	"fmt"

	"property_game/internal/domain"
	"property_game/internal/metrics"

	"github.com/google/uuid"
)

// параметры одного перевода
type TransferRequest struct {
	Amount   int64
	From     domain.AccountID
	To       domain.AccountID
	Type     domain.TransactionType
	Force    bool // разрешить уход отправителя в минус
	Announce bool // уведомить отправителя; получатель уведомляется всегда
}

// Ledger переводит деньги между игроками и банком
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Transfer списывает и зачисляет сумму как одно изменение и пишет запись журнала
func (l *Ledger) Transfer(ctx context.Context, s *Scope, req TransferRequest) (*domain.TransactionRecord, error) {
	if req.Amount < 0 {
		return nil, fmt.Errorf("отрицательная сумма %d: %w", req.Amount, domain.ErrInvalidState)
	}
	if req.From == req.To {
		return nil, fmt.Errorf("перевод самому себе (%d): %w", req.From, domain.ErrInvalidState)
	}

	var from, to *domain.Player
	var err error
	if !domain.IsBank(req.From) {
		if from, err = s.Player(ctx, req.From); err != nil {
			return nil, err
		}
	}
	if !domain.IsBank(req.To) {
		if to, err = s.Player(ctx, req.To); err != nil {
			return nil, err
		}
	}

	// банк платит без ограничений
	if from != nil && !req.Force && from.Balance < req.Amount {
		metrics.InsufficientFunds.Inc()
		return nil, fmt.Errorf("игрок %d: баланс %d, нужно %d: %w", from.ID, from.Balance, req.Amount, domain.ErrInsufficientFunds)
	}

	rec := &domain.TransactionRecord{
		ID:        uuid.NewString(),
		LobbyID:   s.Lobby.ID,
		Amount:    req.Amount,
		From:      req.From,
		To:        req.To,
		Type:      req.Type,
		CreatedAt: s.Now(),
	}
	if err := s.Record(ctx, rec); err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}

	if from != nil {
		from.Balance -= req.Amount
	}
	if to != nil {
		to.Balance += req.Amount
	}

	metrics.Transfers.WithLabelValues(string(req.Type)).Inc()
	metrics.TransferVolume.WithLabelValues(string(req.Type)).Add(float64(req.Amount))

	if from != nil && req.Announce {
		s.Notify(from.ID, balanceChanged(from, rec))
	}
	if to != nil {
		s.Notify(to.ID, balanceChanged(to, rec))
	}
	return rec, nil
}

func balanceChanged(p *domain.Player, rec *domain.TransactionRecord) domain.Event {
	return domain.Event{
		Type:     domain.EventBalanceChanged,
		PlayerID: p.ID,
		Payload: map[string]any{
			"balance":     p.Balance,
			"transaction": rec,
		},
	}
}
