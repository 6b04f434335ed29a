package domain

// активный бонус игрока
type BonusKind string

const (
	BonusDouble BonusKind = "double"
	BonusHalve  BonusKind = "halve"
	BonusMinus2 BonusKind = "minus2"
	BonusPlus2  BonusKind = "plus2"
	BonusLoan   BonusKind = "loan"
)

// участник лобби
type Player struct {
	ID           int64       `db:"id" json:"id"`
	LobbyID      int64       `db:"lobby_id" json:"lobby_id"`
	UserID       int64       `db:"user_id" json:"user_id"`
	Rating       float64     `db:"rating" json:"rating"` // 0..5, копируется из аккаунта при входе
	Balance      int64       `db:"balance" json:"balance"`
	Position     int         `db:"position" json:"position"`
	Bonuses      []BonusKind `db:"bonuses" json:"bonuses"`
	MovementDone bool        `db:"movement_done" json:"movement_done"`
	ActionDone   bool        `db:"action_done" json:"action_done"`
	Eliminated   bool        `db:"eliminated" json:"eliminated"`
}

// HasBonus проверяет наличие активного бонуса
func (p *Player) HasBonus(kind BonusKind) bool {
	for _, b := range p.Bonuses {
		if b == kind {
			return true
		}
	}
	return false
}

// ResetTurn сбрасывает флаги хода перед следующим циклом
func (p *Player) ResetTurn() {
	p.MovementDone = false
	p.ActionDone = false
}

// Clone возвращает глубокую копию
func (p *Player) Clone() *Player {
	cp := *p
	cp.Bonuses = append([]BonusKind(nil), p.Bonuses...)
	return &cp
}
