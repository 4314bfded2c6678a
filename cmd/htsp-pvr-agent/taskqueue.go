package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/htspvr/htsp-pvr-sync/internal/pvr"
)

// memTaskQueue runs each pvr.Task on its own goroutine, deduplicating by
// key: a key already in flight is dropped rather than queued again, mirroring
// spec.md §6's "add(key, task, priority) for deferred refresh/delete work"
// and grounded on internal/events.Bus's goroutine-per-dispatch-with-recover
// pattern (panics are recovered and logged, never crash the process).
type memTaskQueue struct {
	mu      sync.Mutex
	running map[string]struct{}
	logger  *slog.Logger
}

func newMemTaskQueue(l *slog.Logger) *memTaskQueue {
	return &memTaskQueue{running: make(map[string]struct{}), logger: l}
}

func (q *memTaskQueue) Add(key string, task pvr.Task, priority int) {
	q.mu.Lock()
	if _, inFlight := q.running[key]; inFlight {
		q.mu.Unlock()
		return
	}
	q.running[key] = struct{}{}
	q.mu.Unlock()

	go func() {
		defer func() {
			q.mu.Lock()
			delete(q.running, key)
			q.mu.Unlock()
			if r := recover(); r != nil {
				q.logger.Error("task_panic", "key", key, "recovered", r)
			}
		}()
		if err := task.Run(context.Background()); err != nil {
			q.logger.Warn("task_failed", "key", key, "error", err)
		}
	}()
}
