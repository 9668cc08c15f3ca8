package concurrency

import (
	"context"
	"sync/atomic"
	"testing"

	"margin_maker/pkg/logging"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_RunAll(t *testing.T) {
	wp := NewWorkerPool(PoolConfig{Name: "test", MaxWorkers: 3, MaxCapacity: 10}, logging.NewNopLogger())
	defer wp.Stop()

	var count int64
	tasks := make([]func(), 25)
	for i := range tasks {
		tasks[i] = func() { atomic.AddInt64(&count, 1) }
	}

	skipped := wp.RunAll(context.Background(), tasks)
	assert.Zero(t, skipped)
	assert.Equal(t, int64(25), atomic.LoadInt64(&count))
	assert.Equal(t, uint64(25), wp.Stats().SuccessfulTasks)
}

func TestWorkerPool_RunAllSurvivesPanic(t *testing.T) {
	wp := NewWorkerPool(PoolConfig{Name: "panicky", MaxWorkers: 2}, logging.NewNopLogger())
	defer wp.Stop()

	var count int64
	wp.RunAll(context.Background(), []func(){
		func() { panic("boom") },
		func() { atomic.AddInt64(&count, 1) },
		func() { atomic.AddInt64(&count, 1) },
	})
	assert.Equal(t, int64(2), atomic.LoadInt64(&count))
	assert.Equal(t, uint64(1), wp.Stats().FailedTasks)
}

func TestWorkerPool_RunAllSkipsAfterCancel(t *testing.T) {
	wp := NewWorkerPool(PoolConfig{Name: "cancel", MaxWorkers: 1}, logging.NewNopLogger())
	defer wp.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	var ran int64
	tasks := []func(){
		func() { atomic.AddInt64(&ran, 1); cancel() },
		func() { atomic.AddInt64(&ran, 1) },
		func() { atomic.AddInt64(&ran, 1) },
	}

	skipped := wp.RunAll(ctx, tasks)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, int64(1), atomic.LoadInt64(&ran))
}
