package domain

import (
	"fmt"
	"math"
)

// тип клетки карты
type CaseType string

const (
	CaseStart   CaseType = "start"
	CaseHouse   CaseType = "house"
	CaseBank    CaseType = "bank"
	CaseTransit CaseType = "transit"
	CaseCivic   CaseType = "civic"
	CaseChance  CaseType = "chance"
	CaseTax     CaseType = "tax"
)

// количество уровней в таблицах цен и аренды
const LevelCount = MaxHouseLevel + 1

// клетка направленного графа карты
type Case struct {
	Index  int      `json:"index" yaml:"index"`
	Type   CaseType `json:"type" yaml:"type"`
	Next   []int    `json:"next" yaml:"next"`                         // 1 или 2 исходящих ребра
	Prices []int64  `json:"prices,omitempty" yaml:"prices,omitempty"` // по уровням, только для домов
	Rents  []int64  `json:"rents,omitempty" yaml:"rents,omitempty"`
	Amount int64    `json:"amount,omitempty" yaml:"amount,omitempty"` // >0 платит банк, <0 платит игрок
}

// IsFork сообщает, что из клетки два пути
func (c *Case) IsFork() bool {
	return len(c.Next) == 2
}

// диапазон множителя зарплаты по рейтингу
type MultiplierRange struct {
	Lo float64 `json:"lo" yaml:"lo"`
	Hi float64 `json:"hi" yaml:"hi"`
}

// неизменяемые справочные данные карты
type Board struct {
	ID               int64           `json:"id" yaml:"id"`
	Name             string          `json:"name" yaml:"name"`
	Salary           int64           `json:"salary" yaml:"salary"`
	RatingMultiplier MultiplierRange `json:"rating_multiplier" yaml:"rating_multiplier"`
	Cases            []Case          `json:"cases" yaml:"cases"`
}

// Case возвращает клетку по индексу
func (b *Board) Case(index int) (*Case, error) {
	if index < 0 || index >= len(b.Cases) {
		return nil, fmt.Errorf("клетка %d на карте %d: %w", index, b.ID, ErrNotFound)
	}
	return &b.Cases[index], nil
}

// Price возвращает цену дома на уровне level
func (b *Board) Price(position, level int) (int64, error) {
	c, err := b.Case(position)
	if err != nil {
		return 0, err
	}
	if c.Type != CaseHouse || level < 0 || level >= len(c.Prices) {
		return 0, fmt.Errorf("цена клетки %d уровня %d: %w", position, level, ErrNotFound)
	}
	return c.Prices[level], nil
}

// Rent возвращает аренду дома на уровне level
func (b *Board) Rent(position, level int) (int64, error) {
	c, err := b.Case(position)
	if err != nil {
		return 0, err
	}
	if c.Type != CaseHouse || level < 0 || level >= len(c.Rents) {
		return 0, fmt.Errorf("аренда клетки %d уровня %d: %w", position, level, ErrNotFound)
	}
	return c.Rents[level], nil
}

// Invested возвращает сумму цен уровней 0..level-1
func (b *Board) Invested(position, level int) (int64, error) {
	var total int64
	for l := 0; l < level; l++ {
		p, err := b.Price(position, l)
		if err != nil {
			return 0, err
		}
		total += p
	}
	return total, nil
}

// RatingMultiplicator линейно отображает рейтинг [0,5] на [Lo,Hi]
func (b *Board) RatingMultiplicator(rating float64) float64 {
	rating = math.Max(0, math.Min(5, rating))
	lo, hi := b.RatingMultiplier.Lo, b.RatingMultiplier.Hi
	return lo + (rating/5)*(hi-lo)
}

// Validate проверяет граф и таблицы карты
func (b *Board) Validate() error {
	if len(b.Cases) == 0 {
		return fmt.Errorf("карта %q: нет клеток", b.Name)
	}
	if b.RatingMultiplier.Hi < b.RatingMultiplier.Lo {
		return fmt.Errorf("карта %q: rating_multiplier.hi < lo", b.Name)
	}
	for i, c := range b.Cases {
		if c.Index != i {
			return fmt.Errorf("карта %q: клетка %d имеет индекс %d", b.Name, i, c.Index)
		}
		if len(c.Next) < 1 || len(c.Next) > 2 {
			return fmt.Errorf("карта %q: у клетки %d %d исходящих ребер", b.Name, i, len(c.Next))
		}
		for _, n := range c.Next {
			if n < 0 || n >= len(b.Cases) {
				return fmt.Errorf("карта %q: ребро %d -> %d вне карты", b.Name, i, n)
			}
		}
		if c.Type == CaseHouse && (len(c.Prices) != LevelCount || len(c.Rents) != LevelCount) {
			return fmt.Errorf("карта %q: у дома %d нужно %d цен и аренд", b.Name, i, LevelCount)
		}
	}
	return nil
}
