package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Async decouples callers from a slow publisher. Publish only enqueues; a
// background goroutine drains the queue. When the queue is full the record
// is dropped and counted.
type Async struct {
	inner   Publisher
	queue   chan Record
	logger  *slog.Logger
	dropped atomic.Int64
	onDrop  func()

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts the drain goroutine. onDrop, if non-nil, is called for
// every dropped record.
func NewAsync(inner Publisher, size int, logger *slog.Logger, onDrop func()) *Async {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{
		inner:  inner,
		queue:  make(chan Record, size),
		logger: logger,
		onDrop: onDrop,
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for rec := range a.queue {
		if err := a.inner.Publish(context.Background(), rec); err != nil {
			a.logger.Warn("audit publish failed", "component", rec.Component, "action", rec.Action, "err", err)
		}
	}
}

// Publish enqueues rec without blocking. Records published after Close are
// dropped.
func (a *Async) Publish(ctx context.Context, rec Record) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return nil
	}
	select {
	case a.queue <- rec:
	default:
		a.dropped.Add(1)
		if a.onDrop != nil {
			a.onDrop()
		}
	}
	return nil
}

// Dropped returns the number of records discarded because the queue was full.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close drains queued records, then closes the inner publisher.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	return a.inner.Close()
}
