package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/rewards-reconciler/internal/domain/ledger"
)

var ErrInvalidPoolSize = errors.New("worker pool size must be positive")

// WorkerPoolExecutor runs customer units on a bounded ants pool
type WorkerPoolExecutor struct {
	pool   *ants.Pool
	logger *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolExecutor(config WorkerPoolConfig, logger *slog.Logger) (*WorkerPoolExecutor, error) {
	// ants treats a non-positive size as unbounded
	if config.Size <= 0 {
		return nil, ErrInvalidPoolSize
	}
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolExecutor{
		pool:   pool,
		logger: logger,
	}, nil
}

// Execute submits one task per unit and blocks until all submitted tasks return.
// A unit that has not started when ctx is canceled is skipped, never interrupted midway.
func (e *WorkerPoolExecutor) Execute(ctx context.Context, units int, fn func(i int)) (int, error) {
	var (
		wg        sync.WaitGroup
		completed atomic.Int64
		panicOnce sync.Once
		panicErr  error
	)

	for i := 0; i < units; i++ {
		if ctx.Err() != nil {
			break
		}

		unit := i
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			defer func() {
				if r := recover(); r != nil {
					panicOnce.Do(func() {
						panicErr = fmt.Errorf("customer unit %d panicked: %v", unit, r)
					})
				}
			}()
			fn(unit)
			completed.Add(1)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			e.logger.Error("Failed to submit customer unit to worker pool", "unit", unit, "error", err)
			return int(completed.Load()), fmt.Errorf("failed to submit customer unit %d: %w", unit, err)
		}
	}

	wg.Wait()

	done := int(completed.Load())
	if panicErr != nil {
		return done, panicErr
	}
	if err := ctx.Err(); err != nil && done < units {
		return done, fmt.Errorf("%w after %d of %d customers: %w", ledger.ErrBatchCanceled, done, units, err)
	}
	return done, nil
}

// Shutdown releases the worker pool.
func (e *WorkerPoolExecutor) Shutdown() {
	e.logger.Info("Shutting down worker pool", "running_workers", e.pool.Running())
	e.pool.Release()
}

// Running returns the number of running workers in the pool.
func (e *WorkerPoolExecutor) Running() int {
	return e.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (e *WorkerPoolExecutor) Capacity() int {
	return e.pool.Cap()
}

// SequentialExecutor runs customer units one after another on the calling goroutine
type SequentialExecutor struct{}

func (SequentialExecutor) Execute(ctx context.Context, units int, fn func(i int)) (int, error) {
	for i := 0; i < units; i++ {
		if err := ctx.Err(); err != nil {
			return i, fmt.Errorf("%w after %d of %d customers: %w", ledger.ErrBatchCanceled, i, units, err)
		}
		fn(i)
	}
	return units, nil
}
