package watchdog

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sink delivers finished reports somewhere. Deliver must not modify r and
// should return once ctx is done.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, r *Report) error
}

// deliver hands r to every sink concurrently and waits at most
// DeliveryTimeout. A failing or panicking sink is logged and does not stop
// the others. Sinks still running at the deadline are abandoned so the fire
// loop is never held by one of them. It returns the first failure.
func (w *Watchdog) deliver(r *Report) error {
	if len(w.sinks) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.opts.DeliveryTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		running = make(map[string]int, len(w.sinks))
		g       errgroup.Group
	)
	for _, s := range w.sinks {
		name := s.Name()
		running[name]++

		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("panic: %v", p)
				}
				mu.Lock()
				if running[name]--; running[name] == 0 {
					delete(running, name)
				}
				mu.Unlock()
				if err != nil {
					w.log.Warn("report delivery failed",
						zap.String("sink", name),
						zap.Stringer("report_id", r.ID),
						zap.Error(err),
					)
					err = fmt.Errorf("%s: %w", name, err)
				}
			}()
			return s.Deliver(ctx, r)
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		mu.Lock()
		pending := slices.Sorted(maps.Keys(running))
		mu.Unlock()
		if len(pending) == 0 {
			return <-done
		}
		w.log.Warn("report delivery timed out",
			zap.Stringer("report_id", r.ID),
			zap.Strings("sinks", pending),
			zap.Duration("timeout", w.opts.DeliveryTimeout),
		)
		return fmt.Errorf("delivery timed out waiting for %s: %w", strings.Join(pending, ", "), ctx.Err())
	}
}
