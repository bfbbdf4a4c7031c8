package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"aicv-backend/internal/shared/telemetry"
)

// pendingPerWorker bounds how many jobs may wait per worker slot.
const pendingPerWorker = 32

// Local runs messages in-process on a bounded number of goroutines. Jobs are
// detached from the sender's context so they outlive the HTTP request. At most
// maxPending jobs are queued or running; Send returns ErrFull beyond that.
type Local struct {
	handler    Handler
	sem        chan struct{}
	timeout    time.Duration
	maxPending int

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	closed  bool
	pending int
	wg      sync.WaitGroup
}

// NewLocal builds a Local runner. Each job is bounded by jobTimeout.
func NewLocal(handler Handler, concurrency int, jobTimeout time.Duration) *Local {
	if concurrency < 1 {
		concurrency = 1
	}
	if jobTimeout <= 0 {
		jobTimeout = 2 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Local{
		handler:    handler,
		sem:        make(chan struct{}, concurrency),
		timeout:    jobTimeout,
		maxPending: concurrency * pendingPerWorker,
		baseCtx:    ctx,
		cancel:     cancel,
	}
}

// Send schedules msg and returns immediately.
func (l *Local) Send(_ context.Context, msg Message) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.pending >= l.maxPending {
		l.mu.Unlock()
		return ErrFull
	}
	l.pending++
	l.wg.Add(1)
	l.mu.Unlock()

	go l.run(msg)
	return nil
}

func (l *Local) run(msg Message) {
	defer l.wg.Done()
	defer func() {
		l.mu.Lock()
		l.pending--
		l.mu.Unlock()
	}()

	select {
	case l.sem <- struct{}{}:
	case <-l.baseCtx.Done():
		telemetry.Warn("queue.local.dropped", map[string]any{
			"resume_id":  msg.ResumeID,
			"request_id": msg.RequestID,
		})
		return
	}
	defer func() { <-l.sem }()

	ctx, cancel := context.WithTimeout(l.baseCtx, l.timeout)
	defer cancel()

	if err := l.handle(ctx, msg); err != nil {
		telemetry.Warn("queue.local.job_error", map[string]any{
			"resume_id":  msg.ResumeID,
			"request_id": msg.RequestID,
			"error":      err.Error(),
		})
	}
}

func (l *Local) handle(ctx context.Context, msg Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Error("queue.local.panic", map[string]any{
				"resume_id": msg.ResumeID,
				"error":     rec,
				"stack":     string(debug.Stack()),
			})
			err = fmt.Errorf("job panic: %v", rec)
		}
	}()
	return l.handler.Handle(ctx, msg)
}

// Close stops accepting work and waits for in-flight jobs until ctx is done,
// after which remaining jobs are cancelled.
func (l *Local) Close(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.cancel()
		return nil
	case <-ctx.Done():
		l.cancel()
		<-done
		return ctx.Err()
	}
}

var _ Client = (*Local)(nil)
