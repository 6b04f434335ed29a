package service

import (
	"context"
	"fmt"

	"property_game/internal/domain"
)

// AuctionSettlement закрывает продажи домов в конце цикла
type AuctionSettlement struct {
	ledger *Ledger
}

func NewAuctionSettlement(ledger *Ledger) *AuctionSettlement {
	return &AuctionSettlement{ledger: ledger}
}

// Settle проходит по всем домам не в состоянии owned и возвращает закрытые
func (a *AuctionSettlement) Settle(ctx context.Context, s *Scope) ([]*domain.House, error) {
	houses, err := s.Houses(ctx)
	if err != nil {
		return nil, err
	}

	var settled []*domain.House
	for _, h := range houses {
		if h.State == domain.HouseOwned {
			continue
		}
		// свободный дом без покупателя: платить некому и некого
		if h.State == domain.HouseFree && domain.IsBank(h.NextOwnerID) {
			continue
		}
		if err := a.SettleHouse(ctx, s, h); err != nil {
			return nil, err
		}
		settled = append(settled, h)
	}
	return settled, nil
}

// SettleHouse передает дом покупателю по ставке или базовой цене уровня
func (a *AuctionSettlement) SettleHouse(ctx context.Context, s *Scope, h *domain.House) error {
	price := h.AuctionAmount
	if price == 0 {
		base, err := s.Board.Price(h.Position, h.Level)
		if err != nil {
			return err
		}
		price = base
	}

	// без покупателя или без владельца сторону сделки занимает банк
	payer, payee := h.NextOwnerID, h.OwnerID
	if payer != payee {
		_, err := a.ledger.Transfer(ctx, s, TransferRequest{
			Amount: price,
			From:   payer,
			To:     payee,
			Type:   domain.TransactionAuction,
			Force:  true,
		})
		if err != nil {
			return fmt.Errorf("settle house %d: %w", h.Position, err)
		}
	}

	h.OwnerID = h.NextOwnerID
	h.ClearAuction()
	if h.IsFree() {
		h.State = domain.HouseFree
	} else {
		h.State = domain.HouseOwned
	}

	s.Broadcast(houseChanged(h))
	return nil
}

func houseChanged(h *domain.House) domain.Event {
	cp := *h
	return domain.Event{
		Type:    domain.EventHouseStateChanged,
		Payload: &cp,
	}
}
