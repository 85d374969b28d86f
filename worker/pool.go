package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ous-sama22/UniCourt-Automation-Back-end/config"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/model"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/pkg/logger"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/queue"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/service"
)

// ErrNotIdle is returned when a restart is requested while work is queued
// or in flight.
var ErrNotIdle = errors.New("workers are not idle")

// Processor handles one case with a worker's portal session. A non-nil
// error means the session is unusable and must be rebuilt.
type Processor interface {
	Process(ctx context.Context, session service.PortalSession, caseNumber string) error
}

// Pool runs N long-lived workers against the shared case queue. Each
// worker owns one portal session, reused across cases and rebuilt a
// bounded number of times when it expires mid-case.
type Pool struct {
	cfg       *config.Config
	queue     *queue.Queue
	active    *queue.ActiveSet
	portal    service.Portal
	processor Processor
	store     *service.CaseStore

	wg           sync.WaitGroup
	shuttingDown atomic.Bool
	activeTasks  atomic.Int64
	generation   atomic.Int64
}

func NewPool(cfg *config.Config, q *queue.Queue, active *queue.ActiveSet, portal service.Portal, processor Processor, store *service.CaseStore) *Pool {
	return &Pool{
		cfg:       cfg,
		queue:     q,
		active:    active,
		portal:    portal,
		processor: processor,
		store:     store,
	}
}

// Start launches the workers. They run until Shutdown.
func (p *Pool) Start(ctx context.Context) {
	for i := 1; i <= p.cfg.Worker.PoolSize; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	logger.Info(ctx, "worker pool started", "workers", p.cfg.Worker.PoolSize)
}

// Shutdown stops the workers: no new queue entries are accepted, workers
// stop pulling, and in-flight cases get the grace period to finish.
func (p *Pool) Shutdown(ctx context.Context) {
	p.shuttingDown.Store(true)
	p.queue.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info(ctx, "worker pool drained")
	case <-time.After(p.cfg.WorkerGraceTimeout()):
		logger.Warn(ctx, "worker pool shutdown grace period expired",
			"still_active", p.activeTasks.Load())
	case <-ctx.Done():
		logger.Warn(ctx, "worker pool shutdown cancelled", "error", ctx.Err())
	}
}

// ShuttingDown reports whether Shutdown has begun.
func (p *Pool) ShuttingDown() bool {
	return p.shuttingDown.Load()
}

// Idle reports whether nothing is queued and nothing is being processed.
func (p *Pool) Idle() bool {
	return p.queue.Len() == 0 && p.activeTasks.Load() == 0
}

// ActiveCount returns the number of cases being processed right now.
func (p *Pool) ActiveCount() int64 {
	return p.activeTasks.Load()
}

// Restart forces every worker to discard its portal session and build a
// fresh one. Only honored while the pool is idle.
func (p *Pool) Restart() error {
	if p.shuttingDown.Load() || !p.Idle() {
		return ErrNotIdle
	}
	p.generation.Add(1)
	return nil
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	ctx = logger.WithWorker(ctx, id)

	var session service.PortalSession
	sessionGen := p.generation.Load()

	defer func() {
		if session != nil {
			if err := session.Close(context.Background()); err != nil {
				logger.Warn(ctx, "failed to close portal session", "error", err)
			}
		}
	}()

	logger.Info(ctx, "worker started")

	for {
		if p.shuttingDown.Load() {
			logger.Info(ctx, "worker stopping")
			return
		}

		// A restart request invalidates sessions built before it.
		if gen := p.generation.Load(); gen != sessionGen {
			if session != nil {
				session.Close(ctx)
				session = nil
			}
			sessionGen = gen
		}

		entry, ok := p.queue.Dequeue()
		if !ok {
			time.Sleep(p.cfg.WorkerPollInterval())
			continue
		}

		if !p.active.TryAcquire(entry.CaseNumber) {
			// Lost the race with another worker on the same case key.
			if !p.queue.Requeue(entry) {
				// Shutdown closed the queue between dequeue and requeue.
				// The durable record stays Queued; resubmitting after the
				// restart picks it up again.
				logger.Warn(ctx, "requeue refused, case dropped from this run",
					"case_number", entry.CaseNumber)
			}
			time.Sleep(p.cfg.WorkerPollInterval())
			continue
		}

		p.activeTasks.Add(1)
		session = p.processCase(ctx, session, entry.CaseNumber)
		p.activeTasks.Add(-1)
		p.active.Release(entry.CaseNumber)
	}
}

// processCase runs one case, rebuilding the session a bounded number of
// times when it expires. It returns the session the worker should keep.
// Panics are confined to the case: the worker survives and the case gets
// a Worker_Error terminal status.
func (p *Pool) processCase(ctx context.Context, session service.PortalSession, caseNumber string) (kept service.PortalSession) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "panic while processing case",
				"case_number", caseNumber, "panic", r)
			// The session state is unknown after a panic: close it and
			// make the worker build a fresh one for the next case.
			if session != nil {
				session.Close(ctx)
			}
			kept = nil
			if err := p.store.UpdateStatus(ctx, caseNumber, model.StatusWorkerError); err != nil {
				logger.Error(ctx, "failed to record worker error", "error", err)
			}
		}
	}()

	// First attempt plus one retry per session rebuild.
	for attempt := 0; attempt <= p.cfg.Worker.SessionRetries; attempt++ {
		if session == nil {
			fresh, err := p.portal.NewSession(ctx)
			if err != nil {
				logger.Warn(ctx, "failed to build portal session",
					"attempt", attempt, "error", err)
				continue
			}
			session = fresh
		}

		err := p.processor.Process(ctx, session, caseNumber)
		if err == nil {
			return session
		}

		logger.Warn(ctx, "session failure, rebuilding",
			"case_number", caseNumber, "attempt", attempt, "error", err)
		session.Close(ctx)
		session = nil
	}

	if err := p.store.UpdateStatus(ctx, caseNumber, model.StatusSessionError); err != nil {
		logger.Error(ctx, "failed to record session error", "error", err)
	}
	return session
}
