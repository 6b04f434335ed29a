package service

import (
	"context"
	"math/rand"
	"testing"

	"property_game/internal/domain"
)

// псевдослучайный источник с фиксированным зерном
type seededRand struct {
	r *rand.Rand
}

func (s seededRand) Intn(n int) int {
	return s.r.Intn(n)
}

func TestGenerateDice_Range(t *testing.T) {
	m := NewMovementEngine(NewLedger(), seededRand{rand.New(rand.NewSource(1))})
	p := &domain.Player{}

	for i := 0; i < 2000; i++ {
		d := m.GenerateDice(p)
		if d < 3 || d > 18 {
			t.Fatalf("кубики вне [3,18]: %d", d)
		}
	}
}

func TestGenerateDice_SecureRandRange(t *testing.T) {
	m := NewMovementEngine(NewLedger(), nil)
	for i := 0; i < 200; i++ {
		if d := m.GenerateDice(&domain.Player{}); d < 3 || d > 18 {
			t.Fatalf("кубики вне [3,18]: %d", d)
		}
	}
}

func TestGenerateDice_DoubleBonus(t *testing.T) {
	for v := 0; v < 6; v++ {
		m := NewMovementEngine(NewLedger(), fixedRand{v})
		base := m.GenerateDice(&domain.Player{})
		doubled := m.GenerateDice(&domain.Player{Bonuses: []domain.BonusKind{domain.BonusDouble}})
		if doubled != 2*base {
			t.Fatalf("double: ожидали %d, получили %d", 2*base, doubled)
		}
	}
}

func TestApplyBonuses(t *testing.T) {
	tests := []struct {
		name    string
		dice    int
		bonuses []domain.BonusKind
		want    int
	}{
		{"без бонусов", 7, nil, 7},
		{"половина округляется", 7, []domain.BonusKind{domain.BonusHalve}, 4},
		{"минус не уходит ниже нуля", 3, []domain.BonusKind{domain.BonusHalve, domain.BonusMinus2, domain.BonusMinus2}, 0},
		{"обрезка после каждого шага", 1, []domain.BonusKind{domain.BonusMinus2, domain.BonusPlus2}, 2},
		{"порядок важен", 5, []domain.BonusKind{domain.BonusPlus2, domain.BonusDouble}, 14},
		{"заем не влияет", 9, []domain.BonusKind{domain.BonusLoan}, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApplyBonuses(tt.dice, tt.bonuses); got != tt.want {
				t.Fatalf("ожидали %d, получили %d", tt.want, got)
			}
		})
	}
}

func TestGeneratePath_LengthAndPosition(t *testing.T) {
	board := ringBoard(7, map[int]domain.Case{
		2: {Type: domain.CaseTransit, Next: []int{3, 5}},
	})
	f := newFixture(t, board, 5)
	f.movement = NewMovementEngine(f.ledger, seededRand{rand.New(rand.NewSource(7))})
	p := f.addPlayer(t, 1, 0, 0)

	for d := 0; d <= 18; d++ {
		var path *Path
		err := f.inScope(t, func(ctx context.Context, s *Scope) error {
			sp, err := s.Player(ctx, p.ID)
			if err != nil {
				return err
			}
			path, err = f.movement.GeneratePath(ctx, s, d, sp)
			return err
		})
		if err != nil {
			t.Fatalf("путь %d: %v", d, err)
		}
		if len(path.Cases) != d+1 {
			t.Fatalf("длина пути: ожидали %d, получили %d", d+1, len(path.Cases))
		}
		if last := path.Cases[len(path.Cases)-1]; last != f.player(t, p.ID).Position {
			t.Fatalf("последняя клетка %d не совпадает с позицией игрока", last)
		}
	}
}

func TestGeneratePath_SalaryOnFork(t *testing.T) {
	board := ringBoard(6, map[int]domain.Case{
		1: {Type: domain.CaseTransit, Next: []int{2, 4}},
	})
	f := newFixture(t, board, 5)
	p := f.addPlayer(t, 1, 0, 0)

	// рейтинг 5 -> множитель hi = 2
	err := f.inScope(t, func(ctx context.Context, s *Scope) error {
		sp, err := s.Player(ctx, p.ID)
		if err != nil {
			return err
		}
		sp.Rating = 5
		path, err := f.movement.GeneratePath(ctx, s, 3, sp)
		if err != nil {
			return err
		}
		if path.Salary != 200 {
			t.Errorf("зарплата: ожидали 200, получили %d", path.Salary)
		}
		// fixedRand{0} выбирает первое ребро: 0 -> 1 -> 2 -> 3
		if want := []int{0, 1, 2, 3}; !equalInts(path.Cases, want) {
			t.Errorf("путь: ожидали %v, получили %v", want, path.Cases)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("путь: %v", err)
	}

	got := f.player(t, p.ID)
	if got.Balance != 200 || got.Position != 3 {
		t.Fatalf("ожидали баланс 200 и позицию 3, получили %d и %d", got.Balance, got.Position)
	}
	if f.txCount(t, p.ID) != 1 {
		t.Fatalf("ожидалась одна запись зарплаты")
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
