package timer

import (
	"container/heap"
	"time"
)

type state uint8

const (
	statePending state = iota
	stateCancelled
	stateFired
)

func (s state) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateCancelled:
		return "cancelled"
	case stateFired:
		return "fired"
	}
	return "unknown"
}

// task is one scheduled fire.
// index is required for heap.Remove + O(log n) cancellation.
type task struct {
	id       Handle
	deadline time.Time
	fn       func()
	state    state
	index    int
}

// taskQueue holds Pending tasks ordered by deadline, plus an id index.
// It is not safe for concurrent use; Timer guards it with its mutex.
type taskQueue struct {
	h       taskHeap
	entries map[Handle]*task
}

func newTaskQueue() *taskQueue {
	h := taskHeap{}
	heap.Init(&h)
	return &taskQueue{
		h:       h,
		entries: make(map[Handle]*task),
	}
}

func (q *taskQueue) len() int { return len(q.h) }

// push inserts a pending task.
func (q *taskQueue) push(t *task) {
	q.entries[t.id] = t
	heap.Push(&q.h, t)
}

// peek returns the earliest task without removing it.
func (q *taskQueue) peek() (*task, bool) {
	if len(q.h) == 0 {
		return nil, false
	}
	return q.h[0], true
}

// cancel moves a pending task to cancelled and drops it from both structures.
// Unknown ids are ignored.
func (q *taskQueue) cancel(id Handle) bool {
	t, ok := q.entries[id]
	if !ok || t.state != statePending {
		return false
	}
	heap.Remove(&q.h, t.index)
	delete(q.entries, id)
	t.state = stateCancelled
	return true
}

// popDue removes every task whose deadline is not after now, marks each as
// fired and returns them in firing order.
func (q *taskQueue) popDue(now time.Time) []*task {
	var due []*task
	for len(q.h) > 0 && !q.h[0].deadline.After(now) {
		t := heap.Pop(&q.h).(*task)
		delete(q.entries, t.id)
		t.state = stateFired
		due = append(due, t)
	}
	return due
}

// clear drops every pending task, e.g. on Stop.
func (q *taskQueue) clear() int {
	n := len(q.h)
	for _, t := range q.h {
		t.state = stateCancelled
		t.index = -1
	}
	q.h = q.h[:0]
	clear(q.entries)
	return n
}

// --- heap internals ----------------------------------------------------------

// taskHeap is a min-heap ordered by deadline, then by handle (insertion order).
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].id < h[j].id
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1 // mark as removed
	*h = old[:n-1]
	return t
}
