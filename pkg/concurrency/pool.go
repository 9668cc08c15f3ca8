package concurrency

import (
	"context"
	"sync/atomic"
	"time"

	"margin_maker/internal/core"

	"github.com/alitto/pond"
)

// PoolConfig holds configuration for a worker pool
type PoolConfig struct {
	Name        string
	MaxWorkers  int
	MaxCapacity int // queued tasks before RunAll blocks
	IdleTimeout time.Duration
}

// PoolStats is a point-in-time view of pool activity
type PoolStats struct {
	RunningWorkers  int
	WaitingTasks    uint64
	SuccessfulTasks uint64
	FailedTasks     uint64 // tasks that panicked
}

// WorkerPool fans per-account work out over a bounded set of goroutines.
type WorkerPool struct {
	pool   *pond.WorkerPool
	config PoolConfig
	logger core.ILogger
}

func NewWorkerPool(cfg PoolConfig, logger core.ILogger) *WorkerPool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.MaxCapacity <= 0 {
		cfg.MaxCapacity = 64
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	poolLogger := logger.WithField("component", "worker_pool").WithField("pool", cfg.Name)

	return &WorkerPool{
		pool: pond.New(
			cfg.MaxWorkers,
			cfg.MaxCapacity,
			pond.MinWorkers(1),
			pond.IdleTimeout(cfg.IdleTimeout),
			pond.Strategy(pond.Balanced()),
			pond.PanicHandler(func(p interface{}) {
				poolLogger.Error("Worker pool panic recovered", "panic", p)
			}),
		),
		config: cfg,
		logger: poolLogger,
	}
}

// RunAll runs every task on the pool and blocks until all of them have
// returned or been skipped. Tasks that have not started when ctx is done are
// skipped; the count is returned. A panicking task is logged and does not
// stop the others.
func (wp *WorkerPool) RunAll(ctx context.Context, tasks []func()) int {
	var skipped atomic.Int64
	group := wp.pool.Group()
	for _, task := range tasks {
		group.Submit(func() {
			if ctx.Err() != nil {
				skipped.Add(1)
				return
			}
			task()
		})
	}
	group.Wait()

	if n := skipped.Load(); n > 0 {
		wp.logger.Warn("Skipped tasks after cancellation", "skipped", n, "total", len(tasks))
	}
	return int(skipped.Load())
}

// Stop stops the pool after draining queued tasks
func (wp *WorkerPool) Stop() {
	wp.pool.StopAndWait()
}

func (wp *WorkerPool) Stats() PoolStats {
	return PoolStats{
		RunningWorkers:  wp.pool.RunningWorkers(),
		WaitingTasks:    wp.pool.WaitingTasks(),
		SuccessfulTasks: wp.pool.SuccessfulTasks(),
		FailedTasks:     wp.pool.FailedTasks(),
	}
}
