package clock

import (
	"context"
	"sync"
	"time"
)

// Clock provides current time abstraction for deterministic tests.
// Params: none.
// Returns: current wall-clock time.
type Clock interface {
	Now() time.Time
}

// RealClock reads current local time from system clock.
// Params: Location overrides time.Local when set.
// Returns: current timestamp in the configured location.
type RealClock struct {
	Location *time.Location
}

// Now returns current wall-clock time in the clock location.
// Params: none.
// Returns: current local timestamp.
func (c RealClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().In(time.Local)
	}
	return time.Now().In(c.Location)
}

// Task runs one callback on a fixed interval until stopped.
// Params: created by StartTask.
// Returns: handle used to cancel ticking on teardown.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartTask starts fixed-interval ticking in its own goroutine.
// Params: parent context, tick interval, and callback invoked with the task context.
// Returns: running task handle.
func StartTask(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) *Task {
	taskCtx, cancel := context.WithCancel(ctx)
	task := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(task.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-taskCtx.Done():
				return
			case <-ticker.C:
				// Stop may race with a ready tick; never run the callback after cancel.
				if taskCtx.Err() != nil {
					return
				}
				fn(taskCtx)
			}
		}
	}()
	return task
}

// Stop cancels the task and waits for an in-flight callback to return.
// Params: none.
// Returns: after the ticking goroutine has exited; safe to call repeatedly.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.once.Do(t.cancel)
	<-t.done
}

// Done exposes task exit signal.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
