package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Outbox runs outbound notifications off the request path. Each job gets its
// own deadline, so a slow provider never holds up the caller that queued it.
type Outbox struct {
	jobs    chan outboxJob
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type outboxJob struct {
	name string
	run  func(context.Context) error
}

// NewOutbox starts workers draining a queue of size jobs.
func NewOutbox(size, workers int, timeout time.Duration, logger *zap.Logger) *Outbox {
	if size <= 0 {
		size = 256
	}
	if workers <= 0 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Outbox{jobs: make(chan outboxJob, size), timeout: timeout, logger: logger}
	for i := 0; i < workers; i++ {
		o.wg.Add(1)
		go o.loop()
	}
	return o
}

// Enqueue hands run to a worker. It never blocks: a full or stopped outbox
// drops the job and reports false.
func (o *Outbox) Enqueue(name string, run func(context.Context) error) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		o.logger.Warn("outbox stopped, notification dropped", zap.String("job", name))
		return false
	}
	select {
	case o.jobs <- outboxJob{name: name, run: run}:
		return true
	default:
		o.logger.Warn("outbox full, notification dropped", zap.String("job", name))
		return false
	}
}

// Stop refuses new jobs and waits for queued ones until ctx ends.
func (o *Outbox) Stop(ctx context.Context) {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.jobs)
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		o.logger.Warn("outbox stop timed out", zap.Error(ctx.Err()))
	}
}

func (o *Outbox) loop() {
	defer o.wg.Done()
	for job := range o.jobs {
		o.runJob(job)
	}
}

func (o *Outbox) runJob(job outboxJob) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("notification job panicked", zap.String("job", job.name), zap.Any("panic", r))
		}
	}()
	start := time.Now()
	if err := job.run(ctx); err != nil {
		o.logger.Warn("notification job failed",
			zap.String("job", job.name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
	}
}
