package cleanup

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry holds at most one deferred task per key. Scheduling a key again
// replaces the earlier task, which then never runs.
type Registry struct {
	mu      sync.Mutex
	tasks   map[string]*task
	stopped bool
	logger  *zap.Logger
}

type task struct {
	timer *time.Timer
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		tasks:  make(map[string]*task),
		logger: logger,
	}
}

func (r *Registry) Schedule(key string, delay time.Duration, fn func()) {
	if delay < 0 {
		delay = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	if prev, ok := r.tasks[key]; ok {
		prev.timer.Stop()
	}

	t := &task{}
	t.timer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		current, ok := r.tasks[key]
		if !ok || current != t {
			r.mu.Unlock()
			return
		}
		delete(r.tasks, key)
		r.mu.Unlock()

		r.run(key, fn)
	})
	r.tasks[key] = t

	r.logger.Debug("cleanup scheduled", zap.String("key", key), zap.Duration("delay", delay))
}

// Cancel drops the task for key. It reports whether one was pending.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[key]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(r.tasks, key)

	r.logger.Debug("cleanup cancelled", zap.String("key", key))
	return true
}

// Len reports how many tasks are waiting to run.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Stop cancels every pending task and rejects new ones.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, t := range r.tasks {
		t.timer.Stop()
		delete(r.tasks, key)
	}
	r.stopped = true
}

func (r *Registry) run(key string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("cleanup task panicked", zap.String("key", key), zap.Any("panic", rec))
		}
	}()
	fn()
}
