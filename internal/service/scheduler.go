package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/glintapp/glint-core/internal/domain/generation"
)

// Scheduler owns one poll timer per pending poll-model task, so the client
// does not have to drive the repetition itself. A timer starts when a task is
// tracked, fires on a fixed interval, and cancels itself as soon as the task
// reaches a terminal status or leaves the registry.
type Scheduler struct {
	engine   *Engine
	interval time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	subs    map[int]chan generation.Task
	nextSub int
	closed  bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler polling on the given interval.
func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	return &Scheduler{
		engine:   engine,
		interval: interval,
		cancels:  make(map[string]context.CancelFunc),
		subs:     make(map[int]chan generation.Task),
	}
}

// Track starts the poll timer for a task. Tracking an already-tracked task is
// a no-op, which keeps the one-in-flight-poll-per-task contract intact.
func (s *Scheduler) Track(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, ok := s.cancels[taskID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancels[taskID] = cancel
	s.wg.Add(1)
	go s.loop(ctx, taskID)
}

func (s *Scheduler) loop(ctx context.Context, taskID string) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t, err := s.engine.Poll(ctx, taskID)
			if err != nil {
				// Task left the registry; nothing left to drive.
				slog.Debug("scheduler stops tracking task", "task_id", taskID, "error", err)
				s.Stop(taskID)
				return
			}
			if t.Status.Terminal() {
				s.publish(*t)
				s.Stop(taskID)
				return
			}
		}
	}
}

// Stop cancels the poll timer for a task, if one is running.
func (s *Scheduler) Stop(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[taskID]; ok {
		cancel()
		delete(s.cancels, taskID)
	}
}

// Subscribe returns a channel receiving tasks as they reach a terminal
// status, and a function cancelling the subscription. Slow subscribers drop
// events rather than stalling the scheduler.
func (s *Scheduler) Subscribe() (<-chan generation.Task, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan generation.Task, 16)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Scheduler) publish(t generation.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- t:
		default:
		}
	}
}

// Shutdown cancels all timers and waits for their loops to exit.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true
	for id, cancel := range s.cancels {
		cancel()
		delete(s.cancels, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
