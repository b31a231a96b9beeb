// Package service implements the generation task orchestration engine: the
// launcher, poller, background executor and reconciler that keep the in-memory
// task registry, the persisted work records and the client-facing work-list
// cache consistent.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	glintotel "github.com/glintapp/glint-core/internal/adapter/otel"
	"github.com/glintapp/glint-core/internal/adapter/ws"
	"github.com/glintapp/glint-core/internal/domain"
	"github.com/glintapp/glint-core/internal/domain/generation"
	"github.com/glintapp/glint-core/internal/port/balance"
	"github.com/glintapp/glint-core/internal/port/cache"
	"github.com/glintapp/glint-core/internal/port/eventbus"
	"github.com/glintapp/glint-core/internal/port/jobqueue"
	"github.com/glintapp/glint-core/internal/port/workstore"
)

// DefaultExecuteTimeout bounds one fire-and-forget execution.
const DefaultExecuteTimeout = 2 * time.Minute

// Engine orchestrates the lifecycle of generation tasks across the job queue,
// the work-record store and the task registry.
type Engine struct {
	store    workstore.Store
	queue    jobqueue.Queue
	balance  balance.Service
	registry *Registry

	bus     eventbus.Bus     // optional: lifecycle event fan-out
	hub     *ws.Hub          // optional: realtime client notifications
	cache   cache.Cache      // optional: work-list cache to invalidate on writes
	metrics *glintotel.Metrics // optional
	sched   *Scheduler       // optional: drives polling for poll-model tasks

	executeTimeout time.Duration
	pollLocks      sync.Map // task id -> *sync.Mutex
	now            func() time.Time
}

// NewEngine creates an engine over the three collaborator ports.
func NewEngine(store workstore.Store, queue jobqueue.Queue, bal balance.Service) *Engine {
	return &Engine{
		store:          store,
		queue:          queue,
		balance:        bal,
		registry:       NewRegistry(),
		executeTimeout: DefaultExecuteTimeout,
		now:            time.Now,
	}
}

// SetBus attaches a message bus for lifecycle event publishing.
func (e *Engine) SetBus(bus eventbus.Bus) { e.bus = bus }

// SetHub attaches a WebSocket hub for client notifications.
func (e *Engine) SetHub(hub *ws.Hub) { e.hub = hub }

// SetCache attaches the work-list cache so terminal writes can invalidate it.
func (e *Engine) SetCache(c cache.Cache) { e.cache = c }

// SetMetrics attaches metric instruments.
func (e *Engine) SetMetrics(m *glintotel.Metrics) { e.metrics = m }

// SetExecuteTimeout overrides the fire-and-forget execution timeout.
func (e *Engine) SetExecuteTimeout(d time.Duration) { e.executeTimeout = d }

// AttachScheduler registers the scheduler that owns per-task poll timers.
func (e *Engine) AttachScheduler(s *Scheduler) { e.sched = s }

// Tasks returns a snapshot of the registry, newest first.
func (e *Engine) Tasks() []generation.Task {
	return e.registry.Snapshot()
}

// Launch validates preconditions, submits the job (poll model) or schedules
// the background executor (fire-and-forget model), creates the work record and
// inserts a pending task into the registry. It never returns a terminal task.
//
// For poll-model kinds an insufficient balance fails synchronously with
// *domain.InsufficientBalanceError and performs no side effects. Background
// kinds always launch locally; their balance check happens inside the
// executor, which owns that check on the backend side.
func (e *Engine) Launch(ctx context.Context, req generation.LaunchRequest) (*generation.Task, error) {
	if req.OwnerID == "" {
		return nil, fmt.Errorf("launch: owner id is required")
	}
	meta := req.Params
	meta.Kind = req.Kind
	meta.Price = req.Price
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("launch: %w", err)
	}

	ctx, span := glintotel.StartLaunchSpan(ctx, string(req.Kind), req.OwnerID)
	defer span.End()

	sub := jobqueue.Submission{
		OwnerID: req.OwnerID,
		Kind:    req.Kind,
		Price:   req.Price,
		Meta:    meta,
	}

	var jobID string
	if req.Kind.Background() {
		// Job id is client-generated; the backend acknowledges it inside
		// ExecuteOnce, after launch has already returned.
		jobID = uuid.NewString()
	} else {
		if req.Price > 0 {
			chk, err := e.balance.Check(ctx, req.OwnerID, req.Price)
			if err != nil {
				return nil, fmt.Errorf("balance check: %w", err)
			}
			if !chk.Sufficient {
				return nil, &domain.InsufficientBalanceError{Required: req.Price, Available: chk.Available}
			}
		}
		res, err := e.queue.Submit(ctx, sub)
		if err != nil {
			return nil, fmt.Errorf("submit job: %w", err)
		}
		jobID = res.JobID
	}

	rec := &generation.WorkRecord{
		ID:      uuid.NewString(),
		OwnerID: req.OwnerID,
		JobID:   jobID,
		Status:  generation.StatusPending,
		Results: []generation.ResultEntry{{
			SourceTemplateRef:  meta.BeforeImage(),
			TemplatePreviewRef: req.CoverImage,
		}},
		Meta: meta,
	}
	created, err := e.store.Create(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("create work record: %w", err)
	}

	t := generation.Task{
		ID:         jobID,
		WorkID:     created.ID,
		OwnerID:    req.OwnerID,
		Kind:       req.Kind,
		Status:     generation.StatusPending,
		Title:      req.Title,
		CoverImage: req.CoverImage,
		Work:       created,
		StartedAt:  e.now(),
	}
	e.registry.Insert(t)

	e.invalidateWorkList(ctx, req.OwnerID)
	if e.metrics != nil {
		e.metrics.TasksLaunched.Add(ctx, 1, metric.WithAttributes(
			attribute.String("task.kind", string(req.Kind)),
		))
	}
	e.publishEvent(ctx, eventbus.SubjectTaskLaunched, t)
	if e.hub != nil {
		e.hub.BroadcastEvent(ctx, ws.EventTaskStatus, ws.TaskStatus(t))
	}

	slog.Info("task launched", "task_id", t.ID, "work_id", t.WorkID, "kind", t.Kind, "price", req.Price)

	if req.Kind.Background() {
		go e.runBackground(t, sub)
	} else if e.sched != nil {
		e.sched.Track(t.ID)
	}

	return &t, nil
}

// Remove deletes a task from the registry and stops its poll timer. The
// persisted work record is untouched; deletion of records is an
// administrative concern outside this engine.
func (e *Engine) Remove(ctx context.Context, taskID string) error {
	if !e.registry.Remove(taskID) {
		return fmt.Errorf("remove task %s: %w", taskID, domain.ErrNotFound)
	}
	if e.sched != nil {
		e.sched.Stop(taskID)
	}
	if e.hub != nil {
		e.hub.BroadcastEvent(ctx, ws.EventTaskRemoved, ws.TaskRemovedEvent{TaskID: taskID})
	}
	return nil
}

// finalizeTerminal carries a task from pending to a terminal status: it
// performs the read-modify-write of the work record (looked up by job id, so a
// stale work id held by the caller does not matter), re-fetches the fresh
// snapshot, updates the registry and fans out notifications, in that order.
//
// A store failure is logged and swallowed: the registry still reflects the
// terminal outcome so the client stays responsive, and the reconciler heals
// the divergence on the next work-list refresh. The snapshot falls back to a
// locally synthesized record when the re-fetch fails.
func (e *Engine) finalizeTerminal(ctx context.Context, t generation.Task, status generation.Status, resultRef, errMsg string, rkind generation.ResultKind) generation.Task {
	var snapshot *generation.WorkRecord

	rec, err := e.store.GetByJobID(ctx, t.ID)
	if err != nil {
		slog.Warn("work record lookup failed on terminal transition", "task_id", t.ID, "error", err)
		if t.Work != nil {
			synth := *t.Work
			applyTerminal(&synth, status, resultRef, rkind)
			snapshot = &synth
		}
	} else {
		applyTerminal(rec, status, resultRef, rkind)
		if _, uerr := e.store.Update(ctx, rec); uerr != nil {
			// Swallowed: the reconciler picks the truth up on the next
			// refresh triggered elsewhere.
			slog.Warn("work record write failed on terminal transition", "task_id", t.ID, "work_id", rec.ID, "error", uerr)
			snapshot = rec
		} else if fresh, ferr := e.store.GetByJobID(ctx, t.ID); ferr == nil {
			snapshot = fresh
		} else {
			slog.Debug("work record re-fetch failed, using synthesized snapshot", "task_id", t.ID, "error", ferr)
			snapshot = rec
		}
	}

	t.Status = status
	t.Error = errMsg
	t.ResultRef = resultRef
	t.Work = snapshot

	e.registry.Apply(t)
	e.notifyTerminal(ctx, t)
	return t
}

// applyTerminal mutates a work record copy with the terminal outcome.
// The first result ref is write-once and never cleared.
func applyTerminal(rec *generation.WorkRecord, status generation.Status, resultRef string, rkind generation.ResultKind) {
	rec.Status = status
	if status == generation.StatusSuccess {
		rec.SetFirstResultRef(resultRef)
		rec.Meta.ResultKind = rkind
	}
}

// notifyTerminal invalidates the owner's work-list cache and fans the terminal
// transition out to metrics, the bus and connected clients.
func (e *Engine) notifyTerminal(ctx context.Context, t generation.Task) {
	e.invalidateWorkList(ctx, t.OwnerID)

	subject := eventbus.SubjectTaskSucceeded
	if t.Status == generation.StatusFailed {
		subject = eventbus.SubjectTaskFailed
	}
	if e.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("task.kind", string(t.Kind)))
		if t.Status == generation.StatusSuccess {
			e.metrics.TasksSucceeded.Add(ctx, 1, attrs)
		} else {
			e.metrics.TasksFailed.Add(ctx, 1, attrs)
		}
	}
	e.publishEvent(ctx, subject, t)
	if e.hub != nil {
		e.hub.BroadcastEvent(ctx, ws.EventTaskStatus, ws.TaskStatus(t))
	}

	slog.Info("task finalized", "task_id", t.ID, "status", t.Status, "result_ref", t.ResultRef, "error", t.Error)
}

// publishEvent publishes a lifecycle event to the bus, best-effort.
func (e *Engine) publishEvent(ctx context.Context, subject string, t generation.Task) {
	if e.bus == nil {
		return
	}
	data, err := json.Marshal(eventbus.TaskEvent{
		TaskID:    t.ID,
		WorkID:    t.WorkID,
		OwnerID:   t.OwnerID,
		Kind:      string(t.Kind),
		Status:    string(t.Status),
		ResultRef: t.ResultRef,
		Error:     t.Error,
	})
	if err != nil {
		slog.Error("marshal task event", "task_id", t.ID, "error", err)
		return
	}
	if err := e.bus.Publish(ctx, subject, data); err != nil {
		slog.Error("publish task event failed", "subject", subject, "task_id", t.ID, "error", err)
	}
}

func (e *Engine) invalidateWorkList(ctx context.Context, ownerID string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Delete(ctx, workListKey(ownerID)); err != nil {
		slog.Debug("work-list cache invalidation failed", "owner_id", ownerID, "error", err)
	}
}

func (e *Engine) pollLock(taskID string) *sync.Mutex {
	mu, _ := e.pollLocks.LoadOrStore(taskID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
