package job

import "sync"

// event is what the relay pushes towards the controller: either one
// line of pipeline output or the end-of-run marker. The marker is
// pushed exactly once per run, after every real line.
type event struct {
	text string
	seq  int
	end  bool
	exit exitStatus
}

// exitStatus is the observed process exit. ok is false when no exit
// code could be obtained at all (e.g. wait failed with a non-exit
// error), in which case the run counts as failed.
type exitStatus struct {
	code int
	ok   bool
}

// eventQueue is the single structure shared between the relay goroutine
// and the controller. One producer, one consumer, ordered, effectively
// unbounded: pushing must never block, back-pressuring a log stream by
// stalling the child process is worse than buffering it.
type eventQueue struct {
	mu    sync.Mutex
	items []event
}

func (q *eventQueue) push(e event) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()
}

// pop removes and returns up to max events in arrival order. It never
// blocks; an empty queue yields nil.
func (q *eventQueue) pop(max int) []event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 || max <= 0 {
		return nil
	}
	n := min(max, len(q.items))
	out := make([]event, n)
	copy(out, q.items[:n])
	q.items = q.items[n:]
	return out
}
