package service

import (
	"context"
	"fmt"

	"property_game/internal/domain"
)

// LoanPolicy решает, что происходит на клетке банка при активном займе.
// Условия займа задаются снаружи; без политики клетка ничего не делает.
type LoanPolicy interface {
	Settle(ctx context.Context, s *Scope, p *domain.Player, c *domain.Case, force bool) (*domain.TransactionRecord, error)
}

// итог обязательного действия
type Resolution struct {
	Position    int                       `json:"position"`
	CaseType    domain.CaseType           `json:"case_type"`
	Transaction *domain.TransactionRecord `json:"transaction,omitempty"`
}

// ActionResolver применяет последствие клетки, на которой стоит игрок
type ActionResolver struct {
	ledger *Ledger
	loans  LoanPolicy
}

func NewActionResolver(ledger *Ledger, loans LoanPolicy) *ActionResolver {
	return &ActionResolver{ledger: ledger, loans: loans}
}

// тип перевода для клеток с фиксированной суммой
var amountCases = map[domain.CaseType]domain.TransactionType{
	domain.CaseStart:   domain.TransactionStart,
	domain.CaseTransit: domain.TransactionTransit,
	domain.CaseCivic:   domain.TransactionCivic,
	domain.CaseChance:  domain.TransactionChance,
	domain.CaseTax:     domain.TransactionTax,
}

// Resolve выполняет действие клетки p.Position.
// При ошибке вызывающий откатывает область целиком.
func (r *ActionResolver) Resolve(ctx context.Context, s *Scope, p *domain.Player, force bool) (*Resolution, error) {
	c, err := s.Board.Case(p.Position)
	if err != nil {
		return nil, err
	}
	res := &Resolution{Position: p.Position, CaseType: c.Type}

	switch c.Type {
	case domain.CaseHouse:
		res.Transaction, err = r.chargeRent(ctx, s, p, force)
	case domain.CaseBank:
		if r.loans != nil && p.HasBonus(domain.BonusLoan) {
			res.Transaction, err = r.loans.Settle(ctx, s, p, c, force)
		}
	default:
		if txType, ok := amountCases[c.Type]; ok {
			res.Transaction, err = r.applyAmount(ctx, s, p, c.Amount, txType, force)
		}
	}
	if err != nil {
		return nil, err
	}

	p.ActionDone = true
	return res, nil
}

func (r *ActionResolver) chargeRent(ctx context.Context, s *Scope, p *domain.Player, force bool) (*domain.TransactionRecord, error) {
	house, err := s.House(ctx, p.Position)
	if err != nil {
		return nil, err
	}
	if house.OwnerID == p.ID {
		return nil, nil
	}

	rent, err := s.Board.Rent(p.Position, house.Level)
	if err != nil {
		return nil, err
	}
	if rent == 0 {
		return nil, nil
	}

	rec, err := r.ledger.Transfer(ctx, s, TransferRequest{
		Amount:   rent,
		From:     p.ID,
		To:       house.OwnerID, // свободный дом - платим банку
		Type:     domain.TransactionRent,
		Force:    force,
		Announce: true,
	})
	if err != nil {
		return nil, fmt.Errorf("rent for %d: %w", p.Position, err)
	}
	return rec, nil
}

// amount > 0 платит банк, amount < 0 платит игрок
func (r *ActionResolver) applyAmount(ctx context.Context, s *Scope, p *domain.Player, amount int64, txType domain.TransactionType, force bool) (*domain.TransactionRecord, error) {
	switch {
	case amount > 0:
		return r.ledger.Transfer(ctx, s, TransferRequest{
			Amount:   amount,
			From:     domain.BankAccount,
			To:       p.ID,
			Type:     txType,
			Force:    true,
			Announce: true,
		})
	case amount < 0:
		return r.ledger.Transfer(ctx, s, TransferRequest{
			Amount:   -amount,
			From:     p.ID,
			To:       domain.BankAccount,
			Type:     txType,
			Force:    force,
			Announce: true,
		})
	}
	return nil, nil
}
