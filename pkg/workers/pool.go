// Package workers provides the background worker pool that runs call-history
// store and directory access off the caller's goroutine.
package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	rerrors "github.com/otherjamesbrown/recents/pkg/errors"
	"github.com/otherjamesbrown/recents/pkg/logging"
)

// WorkerStatus represents the worker's current status.
type WorkerStatus string

const (
	WorkerStatusStarting WorkerStatus = "starting"
	WorkerStatusHealthy  WorkerStatus = "healthy"
	WorkerStatusDraining WorkerStatus = "draining"
	WorkerStatusStopped  WorkerStatus = "stopped"
)

// Task is a unit of background work. The context is cancelled when the pool stops.
type Task func(ctx context.Context) error

// Config configures a pool.
type Config struct {
	Name            string        `yaml:"name"`
	Count           int           `yaml:"count"`
	QueueSize       int           `yaml:"queue_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultConfig returns the pool configuration used by the CLI.
func DefaultConfig() Config {
	return Config{
		Name:            "recents",
		Count:           2,
		QueueSize:       16,
		ShutdownTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.Count <= 0 {
		c.Count = d.Count
	}
	if c.QueueSize < 0 {
		c.QueueSize = d.QueueSize
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

// Worker is a single goroutine draining the pool queue.
type Worker struct {
	ID           string
	status       atomic.Value
	lastActivity atomic.Int64

	ProcessedCount atomic.Int64
	FailedCount    atomic.Int64
}

// Status returns the worker's current status.
func (w *Worker) Status() WorkerStatus {
	if s, ok := w.status.Load().(WorkerStatus); ok {
		return s
	}
	return WorkerStatusStarting
}

// LastActivity returns when the worker last picked up a task.
func (w *Worker) LastActivity() time.Time {
	ns := w.lastActivity.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Pool manages a fixed set of workers sharing one queue.
type Pool struct {
	config  Config
	logger  logging.Logger
	queue   chan Task
	workers []*Worker

	mu      sync.RWMutex
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped chan struct{}
}

// NewPool creates and starts a worker pool.
func NewPool(config Config, logger logging.Logger) *Pool {
	config = config.withDefaults()
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		config:  config,
		logger:  logger.With(logging.Component("worker_pool"), logging.F("pool", config.Name)),
		queue:   make(chan Task, config.QueueSize),
		workers: make([]*Worker, 0, config.Count),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}

	for i := 0; i < config.Count; i++ {
		w := &Worker{ID: uuid.New().String()}
		w.status.Store(WorkerStatusStarting)
		p.workers = append(p.workers, w)

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			p.processLoop(w)
		}(w)
	}

	return p
}

// Submit queues a task. It blocks while the queue is full, until ctx is done
// or the pool is stopped.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return fmt.Errorf("submit to pool %s: %w", p.config.Name, rerrors.ErrClosed)
	}

	select {
	case p.queue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return fmt.Errorf("submit to pool %s: %w", p.config.Name, rerrors.ErrClosed)
	}
}

func (p *Pool) processLoop(w *Worker) {
	w.status.Store(WorkerStatusHealthy)
	defer w.status.Store(WorkerStatusStopped)

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(w, task)
		}
	}
}

func (p *Pool) run(w *Worker, task Task) {
	w.lastActivity.Store(time.Now().UnixNano())

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		return task(p.ctx)
	}()

	if err != nil {
		w.FailedCount.Add(1)
		p.logger.Warn("Background task failed", logging.Err(err), logging.F("worker_id", w.ID))
		return
	}
	w.ProcessedCount.Add(1)
}

// Stop rejects new tasks, lets queued tasks drain and waits for the workers to
// exit. After ShutdownTimeout the pool context is cancelled so in-flight tasks
// observe cancellation.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.stopped
		return
	}
	p.closed = true
	for _, w := range p.workers {
		w.status.Store(WorkerStatusDraining)
	}
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.config.ShutdownTimeout):
		p.logger.Warn("Shutdown timeout exceeded, cancelling in-flight tasks",
			logging.F("timeout", p.config.ShutdownTimeout))
		p.cancel()
		<-done
	}
	p.cancel()
	close(p.stopped)
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	stats := PoolStats{
		Name:        p.config.Name,
		WorkerCount: len(p.workers),
		Queued:      len(p.queue),
	}

	for _, w := range p.workers {
		if w.Status() == WorkerStatusHealthy {
			stats.ActiveCount++
		}
		stats.Processed += w.ProcessedCount.Load()
		stats.Failed += w.FailedCount.Load()
	}

	return stats
}

// PoolStats contains pool statistics.
type PoolStats struct {
	Name        string
	WorkerCount int
	ActiveCount int
	Queued      int
	Processed   int64
	Failed      int64
}
