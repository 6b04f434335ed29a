package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"property_game/internal/metrics"
)

// слот игрока: присутствие в карте означает, что слот занят
type slot struct {
	queue []chan struct{}
}

func (s *slot) remove(ch chan struct{}) bool {
	for i, w := range s.queue {
		if w == ch {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return true
		}
	}
	return false
}

// ExecutionSerializer пропускает не больше одной изменяющей операции на игрока.
// Ожидающие обслуживаются по очереди; при освобождении слот передается
// следующему напрямую, не становясь свободным.
type ExecutionSerializer struct {
	mu    sync.Mutex
	slots map[int64]*slot
}

func NewExecutionSerializer() *ExecutionSerializer {
	return &ExecutionSerializer{slots: make(map[int64]*slot)}
}

// Acquire ждет слот игрока id; release нужно вызвать ровно один раз
func (e *ExecutionSerializer) Acquire(ctx context.Context, id int64) (func(), error) {
	start := time.Now()

	e.mu.Lock()
	sl, held := e.slots[id]
	if !held {
		e.slots[id] = &slot{}
		e.mu.Unlock()
		metrics.SerializerWait.Observe(time.Since(start).Seconds())
		return e.releaser(id), nil
	}
	ch := make(chan struct{})
	sl.queue = append(sl.queue, ch)
	e.mu.Unlock()

	select {
	case <-ch:
		metrics.SerializerWait.Observe(time.Since(start).Seconds())
		return e.releaser(id), nil
	case <-ctx.Done():
		e.mu.Lock()
		removed := sl.remove(ch)
		e.mu.Unlock()
		if !removed {
			// слот уже передан нам, отдаем его дальше
			e.release(id)
		}
		return nil, ctx.Err()
	}
}

func (e *ExecutionSerializer) releaser(id int64) func() {
	var once sync.Once
	return func() {
		once.Do(func() { e.release(id) })
	}
}

func (e *ExecutionSerializer) release(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sl, ok := e.slots[id]
	if !ok {
		return
	}
	if len(sl.queue) == 0 {
		delete(e.slots, id)
		return
	}
	next := sl.queue[0]
	sl.queue = sl.queue[1:]
	close(next)
}

// Do выполняет fn, удерживая слот игрока id
func (e *ExecutionSerializer) Do(ctx context.Context, id int64, fn func() error) error {
	release, err := e.Acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// DoAll выполняет fn, удерживая слоты всех ids.
// Слоты берутся по возрастанию id, чтобы два DoAll не ждали друг друга по кругу.
func (e *ExecutionSerializer) DoAll(ctx context.Context, ids []int64, fn func() error) error {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	releases := make([]func(), 0, len(sorted))
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}()

	for i, id := range sorted {
		if i > 0 && sorted[i-1] == id {
			continue
		}
		release, err := e.Acquire(ctx, id)
		if err != nil {
			return err
		}
		releases = append(releases, release)
	}
	return fn()
}

// Held сообщает, занят ли слот игрока
func (e *ExecutionSerializer) Held(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.slots[id]
	return ok
}

// Waiting возвращает длину очереди игрока
func (e *ExecutionSerializer) Waiting(id int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sl, ok := e.slots[id]; ok {
		return len(sl.queue)
	}
	return 0
}
