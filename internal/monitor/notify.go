// internal/monitor/notify.go
package monitor

import (
	"sync"

	"go.uber.org/zap"
)

// Notifier receives the user-facing summaries of connection problems
type Notifier interface {
	Info(message string)
	Warn(message string)
	Error(message string)
}

// LogNotifier writes notifications to a zap logger
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(zap.String("component", "notifier"))}
}

func (n *LogNotifier) Info(message string)  { n.logger.Info(message) }
func (n *LogNotifier) Warn(message string)  { n.logger.Warn(message) }
func (n *LogNotifier) Error(message string) { n.logger.Error(message) }

// emitter queues listener calls made during a transition and runs them in
// order once the transition's locks are released. A listener that starts a
// new transition has its events appended to the same queue.
type emitter struct {
	mu       sync.Mutex
	queue    []func()
	flushing bool
}

func (e *emitter) enqueue(f func()) {
	e.mu.Lock()
	e.queue = append(e.queue, f)
	e.mu.Unlock()
}

func (e *emitter) flush() {
	e.mu.Lock()
	if e.flushing {
		e.mu.Unlock()
		return
	}
	e.flushing = true
	for len(e.queue) > 0 {
		f := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()
		f()
		e.mu.Lock()
	}
	e.flushing = false
	e.mu.Unlock()
}
