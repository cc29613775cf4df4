// Package timer implements the watchdog's delayed-callback scheduler.
//
// A Timer owns one fire loop goroutine. Callers on any goroutine use RunLater
// to arm a callback and Cancel to disarm it. Each accepted task ends in
// exactly one of two ways: it is cancelled before the loop claims it, or it
// fires once. The Pending→Cancelled and Pending→Fired transitions both happen
// under the Timer's mutex, so when Cancel races the loop at the deadline
// whichever takes the lock first wins and the other is a no-op.
//
// Callbacks run outside the lock. With the default Options they run serially
// on the fire loop goroutine, so a slow callback delays fires that come due
// behind it. Setting Options.Workers hands fired tasks to a bounded worker
// pool instead; tasks still run at most once, but completion order between
// tasks is no longer guaranteed.
package timer

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNegativeDelay = errors.New("timer: negative delay")
	ErrStopped       = errors.New("timer: stopped")
)

// Handle identifies a scheduled callback. The zero Handle is never issued,
// and handles are never reused for the lifetime of a Timer.
type Handle uint64

const defaultQueueSize = 64

// Options tunes callback execution.
type Options struct {
	// Workers is the number of goroutines running fired callbacks.
	// Zero runs callbacks synchronously on the fire loop.
	Workers int

	// QueueSize bounds fired-but-not-started callbacks when Workers > 0.
	// When full, the fire loop blocks until a worker frees a slot.
	QueueSize int
}

type Timer struct {
	log *zap.Logger

	mu      sync.Mutex // guards q, lastID, stopped
	q       *taskQueue
	lastID  Handle
	stopped bool

	sig  chan struct{} // coalescing wake-up
	quit chan struct{}
	done chan struct{}

	fired     chan *task // nil when running synchronously
	wg        sync.WaitGroup
	abandoned int // fires the loop could not hand to a worker before Stop; owned by mainloop

	stopOnce sync.Once
}

// New constructs a Timer and starts its fire loop.
func New(log *zap.Logger, opts Options) *Timer {
	if log == nil {
		log = zap.NewNop()
	}

	t := &Timer{
		log:  log.Named("timer"),
		q:    newTaskQueue(),
		sig:  make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}

	if opts.Workers > 0 {
		if opts.QueueSize <= 0 {
			opts.QueueSize = defaultQueueSize
		}
		t.fired = make(chan *task, opts.QueueSize)
		t.wg.Add(opts.Workers)
		for i := range opts.Workers {
			go t.runWorker(i)
		}
	}

	go t.mainloop()
	return t
}

// RunLater arms fn to run once after delay and returns its handle.
// It never blocks on the fire loop or on callbacks.
func (t *Timer) RunLater(delay time.Duration, fn func()) (Handle, error) {
	if delay < 0 {
		return 0, ErrNegativeDelay
	}
	if fn == nil {
		return 0, errors.New("timer: nil callback")
	}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return 0, ErrStopped
	}
	t.lastID++
	tk := &task{
		id:       t.lastID,
		deadline: time.Now().Add(delay),
		fn:       fn,
	}
	t.q.push(tk)
	head, _ := t.q.peek()
	earliest := head == tk
	t.mu.Unlock()

	// Only a new earliest deadline shortens the loop's current sleep.
	if earliest {
		t.poke()
	}
	return tk.id, nil
}

// Cancel disarms the task named by h if it has not fired yet and reports
// whether it did so. Unknown, fired or already cancelled handles are ignored.
func (t *Timer) Cancel(h Handle) bool {
	if h == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.q.cancel(h)
}

// Pending returns the number of armed tasks.
func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.q.len()
}

// Stop ends the fire loop, waits for running callbacks and drops every
// pending task. With Workers > 0, callbacks already queued for a worker still
// run; due tasks the loop had not yet queued are marked cancelled and never
// run. RunLater fails with ErrStopped afterwards.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		dropped := t.q.clear()
		t.mu.Unlock()

		close(t.quit)
		<-t.done

		if t.fired != nil {
			close(t.fired)
			t.wg.Wait()
		}
		t.log.Debug("timer stopped", zap.Int("dropped", dropped+t.abandoned))
	})
}

func (t *Timer) poke() {
	select {
	case t.sig <- struct{}{}:
	default:
	}
}

// ----------------------------------------------------------------------------
// Fire loop
// ----------------------------------------------------------------------------

func (t *Timer) mainloop() {
	defer close(t.done)

	timer := time.NewTimer(time.Hour)
	disarm(timer)
	defer timer.Stop()

	for {
		t.mu.Lock()
		due := t.q.popDue(time.Now())
		head, ok := t.q.peek()
		var wait time.Duration
		if ok {
			wait = time.Until(head.deadline)
		}
		t.mu.Unlock()

		if len(due) > 0 {
			if n := t.dispatch(due); n > 0 {
				t.abandoned = n
				return
			}
			// Callbacks take time; re-check the clock before sleeping.
			continue
		}

		if !ok {
			select {
			case <-t.sig:
			case <-t.quit:
				return
			}
			continue
		}

		arm(timer, wait)
		select {
		case <-timer.C:
		case <-t.sig:
			disarm(timer)
		case <-t.quit:
			return
		}
	}
}

// dispatch runs or enqueues fired tasks. If the timer is stopped while the
// worker queue is full, the tasks not yet queued are marked cancelled and
// their count is returned.
func (t *Timer) dispatch(due []*task) int {
	for i, tk := range due {
		if t.fired == nil {
			t.execute(tk, -1)
			continue
		}
		// A free slot always wins over a concurrent Stop.
		select {
		case t.fired <- tk:
			continue
		default:
		}
		select {
		case t.fired <- tk:
		case <-t.quit:
			t.abandon(due[i:])
			return len(due) - i
		}
	}
	return 0
}

func (t *Timer) abandon(tasks []*task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tk := range tasks {
		prev := tk.state
		tk.state = stateCancelled
		t.log.Debug("fire abandoned on stop",
			zap.Uint64("handle", uint64(tk.id)),
			zap.Stringer("was", prev),
			zap.Stringer("state", tk.state),
		)
	}
}

func (t *Timer) runWorker(id int) {
	defer t.wg.Done()

	for tk := range t.fired {
		t.execute(tk, id)
	}
}

// execute runs one callback; a panicking callback is logged and swallowed so
// the loop keeps serving later fires.
func (t *Timer) execute(tk *task, worker int) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("callback panicked",
				zap.Uint64("handle", uint64(tk.id)),
				zap.Int("worker", worker),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			return
		}
		t.log.Debug("callback completed",
			zap.Uint64("handle", uint64(tk.id)),
			zap.Int("worker", worker),
			zap.Duration("late", start.Sub(tk.deadline)),
			zap.Duration("took", time.Since(start)),
		)
	}()
	tk.fn()
}

// arm resets tm to fire after d, draining any stale tick first.
func arm(tm *time.Timer, d time.Duration) {
	disarm(tm)
	if d < 0 {
		d = 0
	}
	tm.Reset(d)
}

func disarm(tm *time.Timer) {
	if !tm.Stop() {
		select {
		case <-tm.C:
		default:
		}
	}
}
