package domain

import "time"

// одна запущенная партия: игроки, карта и расписание ходов
type Lobby struct {
	ID           int64         `db:"id" json:"id"`
	MapID        int64         `db:"map_id" json:"map_id"`
	TurnsLeft    int           `db:"turns_left" json:"turns_left"` // только убывает, 0 - конец игры
	TurnInterval time.Duration `db:"turn_interval" json:"turn_interval"`
	StartAt      time.Time     `db:"start_at" json:"start_at"`
	EndedAt      *time.Time    `db:"ended_at" json:"ended_at,omitempty"`
}

// IsRunning сообщает, идут ли еще ходы в лобби
func (l *Lobby) IsRunning() bool {
	return l.TurnsLeft > 0
}

// NextTurnAt возвращает первый момент StartAt + k*TurnInterval строго после t
func (l *Lobby) NextTurnAt(t time.Time) time.Time {
	return NextTick(l.StartAt, l.TurnInterval, t)
}

// NextTick шагает от start с шагом interval до первого момента после t
func NextTick(start time.Time, interval time.Duration, t time.Time) time.Time {
	if start.After(t) {
		return start
	}
	if interval <= 0 {
		return time.Time{}
	}
	steps := t.Sub(start)/interval + 1
	return start.Add(steps * interval)
}
