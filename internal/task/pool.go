package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jobfoundry/apply-cli/internal/model"
)

type taskIDKey struct{}

// TaskIDFromContext returns the id of the task owning ctx, or "" outside a
// pool worker.
func TaskIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(taskIDKey{}).(string)
	return id
}

// ProgressFunc reports a stage boundary for the running task.
type ProgressFunc func(model.Stage)

// Handler executes one job. It reports stage boundaries through report and
// returns the final result, or an error for technical failures.
type Handler func(ctx context.Context, req model.JobRequest, report ProgressFunc) (*model.JobResult, error)

// Pool executes submitted tasks on a fixed set of workers, each processing
// one task at a time. Limits mirror the deployment defaults: a soft limit
// that logs, a hard limit that cancels.
type Pool struct {
	tracker *Tracker
	handler Handler

	workers       int
	queueSize     int
	softLimit     time.Duration
	hardLimit     time.Duration
	sweepInterval time.Duration

	queue   chan string
	cancels sync.Map // task ID -> context.CancelFunc
	wg      sync.WaitGroup
	stop    context.CancelFunc
	started bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkers sets the number of concurrent executors.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueSize sets the pending-task buffer.
func WithQueueSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithSoftLimit sets the duration after which a running task logs a warning.
func WithSoftLimit(d time.Duration) PoolOption {
	return func(p *Pool) {
		p.softLimit = d
	}
}

// WithHardLimit sets the duration after which a running task is cancelled
// and marked failed.
func WithHardLimit(d time.Duration) PoolOption {
	return func(p *Pool) {
		p.hardLimit = d
	}
}

// WithSweepInterval sets how often expired terminal states are evicted.
func WithSweepInterval(d time.Duration) PoolOption {
	return func(p *Pool) {
		p.sweepInterval = d
	}
}

// NewPool creates a Pool over the tracker and handler.
func NewPool(tracker *Tracker, handler Handler, opts ...PoolOption) *Pool {
	p := &Pool{
		tracker:       tracker,
		handler:       handler,
		workers:       1,
		queueSize:     64,
		softLimit:     25 * time.Minute,
		hardLimit:     30 * time.Minute,
		sweepInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers and the retention janitor. The pool runs until
// Shutdown or ctx cancellation.
func (p *Pool) Start(ctx context.Context) {
	if p.started {
		return
	}
	p.started = true

	runCtx, cancel := context.WithCancel(ctx)
	p.stop = cancel
	p.queue = make(chan string, p.queueSize)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(runCtx, i)
	}

	p.wg.Add(1)
	go p.janitor(runCtx)

	zap.L().Info("task pool started",
		zap.Int("workers", p.workers),
		zap.Duration("soft_limit", p.softLimit),
		zap.Duration("hard_limit", p.hardLimit),
	)
}

// Submit registers the request and enqueues it, returning the task ID. Fails
// when the queue is full rather than blocking the caller.
func (p *Pool) Submit(req model.JobRequest) (string, error) {
	if !p.started {
		return "", eris.New("task: pool not started")
	}

	id := p.tracker.Create(req)
	select {
	case p.queue <- id:
		return id, nil
	default:
		_ = p.tracker.SetFailure(id, "executor queue full")
		return "", eris.New("task: executor queue full")
	}
}

// Cancel revokes the task, reporting the state it held before the attempt.
// A queued task never runs; a running task has its context cancelled.
// Terminal tasks are left unchanged.
func (p *Pool) Cancel(id string) (prev, current model.TaskStatus, err error) {
	prev, current, err = p.tracker.Revoke(id)
	if err != nil {
		return "", "", err
	}
	if cancel, ok := p.cancels.Load(id); ok {
		cancel.(context.CancelFunc)()
	}
	return prev, current, nil
}

// Shutdown stops accepting work and waits for in-flight tasks to finish.
func (p *Pool) Shutdown() {
	if !p.started {
		return
	}
	p.stop()
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, n int) {
	defer p.wg.Done()
	log := zap.L().With(zap.Int("worker", n))

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.queue:
			p.run(ctx, log, id)
		}
	}
}

// run executes one task end to end.
func (p *Pool) run(ctx context.Context, log *zap.Logger, id string) {
	st, err := p.tracker.Get(id)
	if err != nil {
		return
	}
	// Revoked while queued: never starts.
	if st.Status.Terminal() {
		return
	}

	if err := p.tracker.SetProcessing(id); err != nil {
		log.Warn("task could not start", zap.String("task_id", id), zap.Error(err))
		return
	}

	taskCtx, cancel := context.WithTimeout(context.WithValue(ctx, taskIDKey{}, id), p.hardLimit)
	p.cancels.Store(id, cancel)
	defer func() {
		cancel()
		p.cancels.Delete(id)
	}()

	soft := time.AfterFunc(p.softLimit, func() {
		log.Warn("task exceeded soft time limit",
			zap.String("task_id", id),
			zap.Duration("soft_limit", p.softLimit),
		)
	})
	defer soft.Stop()

	report := func(stage model.Stage) {
		if err := p.tracker.SetStage(id, stage); err != nil {
			log.Debug("stage update dropped", zap.String("task_id", id), zap.Error(err))
		}
	}

	start := time.Now()
	result, err := p.handler(taskCtx, st.Request, report)
	elapsed := time.Since(start)

	// A revoked task stays REVOKED regardless of how the handler returned.
	if cur, gerr := p.tracker.Get(id); gerr == nil && cur.Status == model.TaskRevoked {
		log.Info("task revoked", zap.String("task_id", id), zap.Duration("elapsed", elapsed))
		return
	}

	switch {
	case err == nil:
		if serr := p.tracker.SetResult(id, result); serr != nil {
			log.Warn("could not record result", zap.String("task_id", id), zap.Error(serr))
		}
		log.Info("task complete",
			zap.String("task_id", id),
			zap.String("status", string(result.Status)),
			zap.Duration("elapsed", elapsed),
		)
	case errors.Is(err, context.DeadlineExceeded):
		_ = p.tracker.SetFailure(id, "hard time limit exceeded")
		log.Error("task hit hard time limit",
			zap.String("task_id", id),
			zap.Duration("hard_limit", p.hardLimit),
		)
	default:
		_ = p.tracker.SetFailure(id, err.Error())
		log.Error("task failed",
			zap.String("task_id", id),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	}
}

// janitor periodically evicts expired terminal states.
func (p *Pool) janitor(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tracker.Sweep()
		}
	}
}
