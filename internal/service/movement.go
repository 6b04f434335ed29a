package service

import (
	"context"
	"fmt"
	"math"

	"property_game/internal/domain"
)

// количество кубиков за ход
const diceCount = 3

// MovementEngine бросает кубики и ведет игрока по графу карты
type MovementEngine struct {
	ledger *Ledger
	rnd    Randomizer
}

// NewMovementEngine; rnd == nil - crypto/rand
func NewMovementEngine(ledger *Ledger, rnd Randomizer) *MovementEngine {
	if rnd == nil {
		rnd = NewSecureRand()
	}
	return &MovementEngine{ledger: ledger, rnd: rnd}
}

// результат перемещения
type Path struct {
	Dice   int   `json:"dice"`
	Cases  []int `json:"cases"`  // включая стартовую клетку
	Salary int64 `json:"salary"` // начислено на развилках
}

// GenerateDice - сумма трех кубиков с учетом бонусов игрока
func (m *MovementEngine) GenerateDice(p *domain.Player) int {
	sum := 0
	for i := 0; i < diceCount; i++ {
		sum += m.rnd.Intn(6) + 1
	}
	return ApplyBonuses(sum, p.Bonuses)
}

// ApplyBonuses применяет бонусы по порядку, округляя и обрезая до нуля после каждого
func ApplyBonuses(dice int, bonuses []domain.BonusKind) int {
	v := float64(dice)
	for _, b := range bonuses {
		switch b {
		case domain.BonusDouble:
			v *= 2
		case domain.BonusHalve:
			v /= 2
		case domain.BonusMinus2:
			v -= 2
		case domain.BonusPlus2:
			v += 2
		default:
			continue
		}
		v = math.Max(0, math.Round(v))
	}
	return int(v)
}

// Salary - одна выплата на развилке
func (m *MovementEngine) Salary(board *domain.Board, p *domain.Player) int64 {
	return int64(math.Round(float64(board.Salary) * board.RatingMultiplicator(p.Rating)))
}

// GeneratePath делает dice шагов от текущей позиции игрока.
// p должен быть получен из s, иначе начисления зарплаты не попадут в него.
func (m *MovementEngine) GeneratePath(ctx context.Context, s *Scope, dice int, p *domain.Player) (*Path, error) {
	if dice < 0 {
		return nil, fmt.Errorf("dice %d: %w", dice, domain.ErrInvalidState)
	}

	path := &Path{Dice: dice, Cases: make([]int, 0, dice+1)}
	pos := p.Position
	path.Cases = append(path.Cases, pos)

	for step := 0; step < dice; step++ {
		c, err := s.Board.Case(pos)
		if err != nil {
			return nil, err
		}

		next := c.Next[0]
		if c.IsFork() {
			pay := m.Salary(s.Board, p)
			if pay > 0 {
				_, err := m.ledger.Transfer(ctx, s, TransferRequest{
					Amount:   pay,
					From:     domain.BankAccount,
					To:       p.ID,
					Type:     domain.TransactionSalary,
					Force:    true,
					Announce: true,
				})
				if err != nil {
					return nil, fmt.Errorf("salary: %w", err)
				}
				path.Salary += pay
			}
			next = c.Next[m.rnd.Intn(len(c.Next))]
		}

		pos = next
		path.Cases = append(path.Cases, pos)
	}

	p.Position = pos
	return path, nil
}
