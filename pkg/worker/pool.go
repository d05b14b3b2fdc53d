// Package worker provides an asynchronous worker pool for persisting finished
// chat exchanges with the provided storage.Driver and publishing them to the
// provided eventstream.Publisher.
//
// The pool decouples storage and publishing from the chat loop so that slow
// disks or brokers never hold up the next question.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/ragtube/pkg/chat"
	"github.com/papercomputeco/ragtube/pkg/eventstream"
	"github.com/papercomputeco/ragtube/pkg/storage"
)

var (
	defaultNumWorkers   uint = 2
	defaultJobQueueSize uint = 64
	defaultJobTimeout        = 30 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Exchange chat.Exchange
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting exchanges. Optional.
	Driver storage.Driver

	// Publisher receives an event per exchange. Optional.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 64).
	QueueSize uint

	// JobTimeout bounds the storage and publish calls of one job.
	JobTimeout time.Duration

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Pool processes exchange jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu guards closed and sends on queue.
	mu     sync.Mutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.JobTimeout == 0 {
		c.JobTimeout = defaultJobTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed, job dropped",
			"session_id", job.Exchange.SessionID,
			"state", job.Exchange.Outcome.State.String(),
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"session_id", job.Exchange.SessionID,
			"state", job.Exchange.Outcome.State.String(),
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"session_id", job.Exchange.SessionID,
			"state", job.Exchange.Outcome.State.String(),
		)
		return false
	}
}

// Hook returns a chat completion hook that enqueues every finished exchange.
func (p *Pool) Hook() func(chat.Exchange) {
	return func(ex chat.Exchange) {
		p.Enqueue(Job{Exchange: ex})
	}
}

// Close signals workers to stop and waits for queued jobs to drain. Jobs
// enqueued after Close are dropped.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// processJob stores the exchange and then publishes it. A storage failure
// does not stop the publish.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	ex := job.Exchange

	if p.config.Driver != nil {
		msgs := storage.FromExchange(ex)
		if err := p.config.Driver.PutMessages(ctx, ex.SessionID, msgs); err != nil {
			p.logger.Error("exchange storage failed",
				"session_id", ex.SessionID,
				"error", err,
			)
		} else {
			p.logger.Debug("exchange stored",
				"session_id", ex.SessionID,
				"messages", len(msgs),
			)
		}
	}

	if p.config.Publisher != nil {
		event := eventstream.NewExchangeCompletedEvent(ex)
		if err := p.config.Publisher.PublishExchange(ctx, event); err != nil {
			p.logger.Warn("exchange publish failed",
				"session_id", ex.SessionID,
				"event_id", event.EventID,
				"error", err,
			)
			return
		}

		p.logger.Debug("exchange published",
			"session_id", ex.SessionID,
			"event_id", event.EventID,
		)
	}
}
