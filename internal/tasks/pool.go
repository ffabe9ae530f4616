package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Handler runs one task. Returned errors are logged and the task is dropped.
type Handler func(ctx context.Context, t Task) error

type Worker struct {
	ID         int
	WorkerPool chan chan Task
	JobChannel chan Task
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Task, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Task),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Task)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing task", "worker_id", w.ID, "task_id", job.ID, "task", job.Name)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type PoolConfig struct {
	MaxWorkers  int
	TaskTimeout time.Duration
}

// Pool consumes a Queue with a fixed number of workers.
type Pool struct {
	queue       Queue
	logger      *slog.Logger
	handlers    map[string]Handler
	maxWorkers  int
	taskTimeout time.Duration

	workerPool chan chan Task
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

func NewPool(queue Queue, config PoolConfig, logger *slog.Logger) *Pool {
	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	taskTimeout := config.TaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		queue:       queue,
		logger:      logger,
		handlers:    make(map[string]Handler),
		maxWorkers:  maxWorkers,
		taskTimeout: taskTimeout,
		workerPool:  make(chan chan Task, maxWorkers),
	}
}

// Handle registers h for tasks called name. Register before Start.
func (p *Pool) Handle(name string, h Handler) {
	p.handlers[name] = h
}

func (p *Pool) Start(ctx context.Context) {
	p.once.Do(func() {
		p.ctx, p.cancel = context.WithCancel(ctx)

		for i := 0; i < p.maxWorkers; i++ {
			worker := NewWorker(i, p.workerPool, p.logger)
			worker.Start(p.ctx, &p.wg, p.process)
		}

		p.wg.Add(1)
		go p.dispatch()

		p.logger.Info("task worker pool started", "max_workers", p.maxWorkers)
	})
}

func (p *Pool) dispatch() {
	defer p.wg.Done()

	for {
		var jobChannel chan Task
		select {
		case jobChannel = <-p.workerPool:
		case <-p.ctx.Done():
			p.logger.Info("dispatcher shutting down")
			return
		}

		job, err := p.next()
		if err != nil {
			p.logger.Info("dispatcher shutting down", "reason", err)
			return
		}

		select {
		case jobChannel <- job:
		case <-p.ctx.Done():
			p.logger.Info("dispatcher shutting down")
			return
		}
	}
}

// next dequeues until it gets a task or the queue or pool is done.
func (p *Pool) next() (Task, error) {
	for {
		job, err := p.queue.Dequeue(p.ctx)
		if err == nil {
			return job, nil
		}
		if errors.Is(err, ErrQueueClosed) || p.ctx.Err() != nil {
			return Task{}, err
		}
		p.logger.Error("failed to dequeue task", "error", err)

		select {
		case <-time.After(time.Second):
		case <-p.ctx.Done():
			return Task{}, p.ctx.Err()
		}
	}
}

// process runs outside the pool context so a shutdown lets running tasks finish.
func (p *Pool) process(job Task) {
	logger := p.logger.With("task_id", job.ID, "task", job.Name)

	handler, ok := p.handlers[job.Name]
	if !ok {
		logger.Error("no handler registered for task")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), p.taskTimeout)
	defer cancel()

	start := time.Now()
	if err := p.safeRun(ctx, handler, job); err != nil {
		logger.Error("task failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	logger.Info("task done", "duration_ms", time.Since(start).Milliseconds())
}

func (p *Pool) safeRun(ctx context.Context, h Handler, job Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			p.logger.Error("task panicked", "task_id", job.ID, "stack", string(debug.Stack()))
		}
	}()
	return h(ctx, job)
}

// Shutdown stops taking tasks and waits for running ones until ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down task worker pool")
	if p.cancel == nil {
		return nil
	}
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("task worker pool shutdown complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("task worker pool shutdown: %w", ctx.Err())
	}
}
