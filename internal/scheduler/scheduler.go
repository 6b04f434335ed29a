package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"property_game/internal/domain"
	"property_game/internal/logger"
	"property_game/internal/metrics"
	"property_game/internal/service"

	"github.com/robfig/cron/v3"
)

// продвигает лобби на один ход
type Advancer interface {
	AdvanceLobby(ctx context.Context, lobbyID int64) (*service.TurnResult, error)
}

// сохраненное состояние лобби, из которого выводится расписание
type LobbyReader interface {
	GetLobby(ctx context.Context, id int64) (*domain.Lobby, error)
	ListRunningLobbies(ctx context.Context) ([]*domain.Lobby, error)
}

type Options struct {
	ResyncInterval time.Duration // 0 - без периодической пересинхронизации
	TurnTimeout    time.Duration
}

// lobbySchedule - cron.Schedule вида StartAt + k*Interval
type lobbySchedule struct {
	start    time.Time
	interval time.Duration
}

func (s lobbySchedule) Next(t time.Time) time.Time {
	return domain.NextTick(s.start, s.interval, t)
}

func (s lobbySchedule) equal(o lobbySchedule) bool {
	return s.start.Equal(o.start) && s.interval == o.interval
}

type entry struct {
	id    cron.EntryID
	sched lobbySchedule
}

// Scheduler держит не больше одного таймера на запущенное лобби.
// После каждого срабатывания расписание выводится заново из хранилища.
type Scheduler struct {
	cron     *cron.Cron
	cronLog  cron.Logger
	lobbies  LobbyReader
	advancer Advancer
	opts     Options
	log      *slog.Logger

	mu      sync.Mutex
	entries map[int64]entry
}

func New(lobbies LobbyReader, advancer Advancer, opts Options) *Scheduler {
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = 30 * time.Second
	}
	log := logger.Component("scheduler")
	cronLog := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelWarn))

	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog))),
		cronLog:  cronLog,
		lobbies:  lobbies,
		advancer: advancer,
		opts:     opts,
		log:      log,
		entries:  make(map[int64]entry),
	}
}

// Start ставит таймеры всем запущенным лобби и запускает cron
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.ScheduleLobbies(ctx); err != nil {
		// неудачные лобби подхватит пересинхронизация
		s.log.Error("не все лобби поставлены в расписание", "error", err)
	}

	if s.opts.ResyncInterval > 0 {
		s.cron.Schedule(cron.Every(s.opts.ResyncInterval), cron.FuncJob(s.resync))
	}

	s.cron.Start()
	s.log.Info("планировщик запущен", "lobbies", s.Len(), "resync", s.opts.ResyncInterval)
	return nil
}

// Stop останавливает cron; контекст завершится, когда закончатся идущие ходы
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	s.log.Info("планировщик остановлен")
	return ctx
}

// ScheduleLobbies ставит таймеры всем запущенным лобби и снимает лишние
func (s *Scheduler) ScheduleLobbies(ctx context.Context) error {
	running, err := s.lobbies.ListRunningLobbies(ctx)
	if err != nil {
		return fmt.Errorf("list running lobbies: %w", err)
	}

	alive := make(map[int64]bool, len(running))
	var errs []error
	for _, l := range running {
		alive[l.ID] = true
		if err := s.install(l); err != nil {
			errs = append(errs, err)
		}
	}

	for _, id := range s.scheduledIDs() {
		if !alive[id] {
			s.Unschedule(id)
		}
	}
	return errors.Join(errs...)
}

// ScheduleNextTurnForLobby выводит расписание лобби из сохраненного состояния
func (s *Scheduler) ScheduleNextTurnForLobby(ctx context.Context, lobbyID int64) error {
	lobby, err := s.lobbies.GetLobby(ctx, lobbyID)
	if errors.Is(err, domain.ErrNotFound) {
		s.Unschedule(lobbyID)
		return nil
	}
	if err != nil {
		return err
	}
	if !lobby.IsRunning() {
		s.Unschedule(lobbyID)
		return nil
	}
	return s.install(lobby)
}

func (s *Scheduler) install(lobby *domain.Lobby) error {
	if lobby.TurnInterval <= 0 {
		s.Unschedule(lobby.ID)
		return fmt.Errorf("лобби %d: интервал хода %s: %w", lobby.ID, lobby.TurnInterval, domain.ErrInvalidState)
	}
	sched := lobbySchedule{start: lobby.StartAt, interval: lobby.TurnInterval}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.entries[lobby.ID]; ok {
		if cur.sched.equal(sched) {
			return nil
		}
		s.cron.Remove(cur.id)
	}

	lobbyID := lobby.ID
	// Recover внутри SkipIfStillRunning: паника не должна уносить его токен
	job := cron.NewChain(cron.SkipIfStillRunning(s.cronLog), cron.Recover(s.cronLog)).Then(cron.FuncJob(func() {
		s.fire(lobbyID)
	}))
	s.entries[lobbyID] = entry{id: s.cron.Schedule(sched, job), sched: sched}
	metrics.ScheduledLobbies.Set(float64(len(s.entries)))
	return nil
}

// Unschedule снимает таймер лобби
func (s *Scheduler) Unschedule(lobbyID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[lobbyID]
	if !ok {
		return
	}
	s.cron.Remove(cur.id)
	delete(s.entries, lobbyID)
	metrics.ScheduledLobbies.Set(float64(len(s.entries)))
}

// Scheduled сообщает, стоит ли таймер лобби
func (s *Scheduler) Scheduled(lobbyID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[lobbyID]
	return ok
}

// NextRun - ближайшее срабатывание таймера лобби
func (s *Scheduler) NextRun(lobbyID int64) (time.Time, bool) {
	s.mu.Lock()
	cur, ok := s.entries[lobbyID]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	if next := s.cron.Entry(cur.id).Next; !next.IsZero() {
		return next, true
	}
	// cron еще не запущен
	return cur.sched.Next(time.Now()), true
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) scheduledIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// fire выполняет ход и заново выводит расписание; ошибка не трогает другие лобби
func (s *Scheduler) fire(lobbyID int64) {
	log := logger.Lobby("scheduler", lobbyID)

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.TurnTimeout)
	defer cancel()

	res, err := s.advance(ctx, lobbyID)
	switch {
	case err != nil:
		log.Error("ход не выполнен, повтор на следующем тике", "error", err)
	case res.Leaderboard != nil:
		log.Info("лобби завершено")
	default:
		log.Debug("ход выполнен", "turns_left", res.TurnsLeft)
	}

	rctx, rcancel := context.WithTimeout(context.Background(), s.opts.TurnTimeout)
	defer rcancel()
	if err := s.ScheduleNextTurnForLobby(rctx, lobbyID); err != nil {
		log.Error("не удалось обновить расписание", "error", err)
	}
}

// паника хода превращается в ошибку, чтобы расписание все равно обновилось
func (s *Scheduler) advance(ctx context.Context, lobbyID int64) (res *service.TurnResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.TurnsAdvanced.WithLabelValues("error").Inc()
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return s.advancer.AdvanceLobby(ctx, lobbyID)
}

func (s *Scheduler) resync() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.TurnTimeout)
	defer cancel()
	if err := s.ScheduleLobbies(ctx); err != nil {
		s.log.Error("пересинхронизация расписания", "error", err)
	}
}
