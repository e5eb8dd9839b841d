package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/domain"
	"grocery-delivery/internal/metrics"
)

var (
	ErrQueueFull   = errors.New("notification queue full")
	ErrQueueClosed = errors.New("notification queue closed")
)

// Sink consumes status changes off the queue. Sinks must swallow their own errors.
type Sink interface {
	Handle(ctx context.Context, change domain.StatusChange)
}

// NamedSink labels a sink in logs and metrics.
type NamedSink interface {
	Sink
	Name() string
}

// lane is one sink with its own buffer and worker, so a stalled sink only backs up itself.
type lane struct {
	name string
	sink Sink
	ch   chan domain.StatusChange
}

// Queue decouples the status update from delivery: Emit never blocks, and every sink
// receives changes in emit order on its own lane.
type Queue struct {
	lanes []*lane
	lg    *logger.Logger

	mu     sync.RWMutex
	closed bool
}

func NewQueue(size int, lg *logger.Logger, sinks ...Sink) *Queue {
	if size <= 0 {
		size = 1
	}
	if lg == nil {
		lg = logger.Nop()
	}
	q := &Queue{lg: lg}
	for i, s := range sinks {
		name := fmt.Sprintf("sink-%d", i)
		if n, ok := s.(NamedSink); ok {
			name = n.Name()
		}
		q.lanes = append(q.lanes, &lane{name: name, sink: s, ch: make(chan domain.StatusChange, size)})
	}
	return q
}

// Emit hands change to every lane. A full lane drops the event for that sink only;
// clients recover via pull.
func (q *Queue) Emit(change domain.StatusChange) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	var dropped []string
	for _, l := range q.lanes {
		select {
		case l.ch <- change:
		default:
			metrics.NotificationQueueDropped.WithLabelValues(l.name).Inc()
			dropped = append(dropped, l.name)
		}
	}
	if len(dropped) > 0 {
		return fmt.Errorf("%w: %v", ErrQueueFull, dropped)
	}
	return nil
}

// Run blocks until ctx is cancelled (or Close is called) and every lane is drained.
func (q *Queue) Run(ctx context.Context) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			q.Close()
		case <-stop:
		}
	}()

	var wg sync.WaitGroup
	for _, l := range q.lanes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for change := range l.ch {
				q.dispatch(l, change)
			}
		}()
	}
	wg.Wait()
	q.lg.Info("queue_drained", nil)
}

func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for _, l := range q.lanes {
		close(l.ch)
	}
}

// Len is the deepest backlog across lanes.
func (q *Queue) Len() int {
	n := 0
	for _, l := range q.lanes {
		n = max(n, len(l.ch))
	}
	return n
}

func (q *Queue) dispatch(l *lane, change domain.StatusChange) {
	defer func() {
		if r := recover(); r != nil {
			q.lg.Error("sink_panic", fmt.Errorf("%v", r), map[string]any{"order_id": change.OrderID, "sink": l.name})
		}
	}()
	l.sink.Handle(context.Background(), change)
}
