// Package watchdog arms a timer for every in-flight request and, when a
// request outlives the configured interval, captures the serving goroutine's
// stack and hands a Report to the configured sinks.
//
// Nothing here may affect the response: scheduling, cancellation, capture and
// delivery failures are logged and swallowed.
package watchdog

import (
	"os"
	"time"

	"github.com/edirooss/slowdog/internal/infrastructure/stackcapture"
	"github.com/edirooss/slowdog/internal/infrastructure/timer"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultDeliveryTimeout = 10 * time.Second

type Options struct {
	Enabled       bool
	Interval      time.Duration
	IncludeLocals bool
	// Exempt lists route names that are never watched.
	Exempt []string
	// DeliveryTimeout bounds one report's fan-out to all sinks.
	DeliveryTimeout time.Duration
	// Source resolves source lines; nil reads the OS filesystem.
	Source *stackcapture.SourceCache
}

type Watchdog struct {
	log    *zap.Logger
	opts   Options
	exempt map[string]struct{}
	timer  *timer.Timer
	sinks  []Sink

	renderer *stackcapture.Renderer
	capture  func(id int64) (*stackcapture.Goroutine, bool)
	hostname string
	pid      int
	now      func() time.Time
}

// New wires a Watchdog onto tm. tm is shared and owned by the caller.
func New(log *zap.Logger, opts Options, tm *timer.Timer, sinks ...Sink) *Watchdog {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = defaultDeliveryTimeout
	}
	if opts.Source == nil {
		opts.Source = stackcapture.NewSourceCache(nil)
	}

	exempt := make(map[string]struct{}, len(opts.Exempt))
	for _, name := range opts.Exempt {
		exempt[name] = struct{}{}
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &Watchdog{
		log:      log.Named("watchdog"),
		opts:     opts,
		exempt:   exempt,
		timer:    tm,
		sinks:    sinks,
		renderer: stackcapture.NewRenderer(opts.Source),
		capture:  stackcapture.Capture,
		hostname: hostname,
		pid:      os.Getpid(),
		now:      time.Now,
	}
}

// Enabled reports whether requests are being watched at all.
func (w *Watchdog) Enabled() bool { return w.opts.Enabled }

// IsExempt reports whether route is configured to never be watched.
func (w *Watchdog) IsExempt(route string) bool {
	_, ok := w.exempt[route]
	return ok
}

// OnRequestStart arms a watchdog for req, which must be served on the calling
// goroutine. locals may be nil. The zero Handle means nothing was armed.
func (w *Watchdog) OnRequestStart(req Request, locals *stackcapture.Locals) timer.Handle {
	if !w.opts.Enabled || w.IsExempt(req.Route) {
		return 0
	}

	gid := stackcapture.CurrentGoroutineID()
	started := w.now()

	h, err := w.timer.RunLater(w.opts.Interval, func() {
		w.peek(req, gid, started, locals)
	})
	if err != nil {
		w.log.Warn("failed to arm request watchdog", zap.Stringer("request", req), zap.Error(err))
		return 0
	}
	return h
}

// OnRequestEnd disarms h. It is safe to call with the zero Handle, twice, or
// after the watchdog already fired.
func (w *Watchdog) OnRequestEnd(h timer.Handle) {
	if h == 0 {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("failed to cancel request watchdog", zap.Uint64("handle", uint64(h)), zap.Any("panic", r))
		}
	}()
	w.timer.Cancel(h)
}

// peek runs on the timer when a request outlived the interval.
func (w *Watchdog) peek(req Request, gid int64, started time.Time, locals *stackcapture.Locals) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("request watchdog failed", zap.Stringer("request", req), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	r := w.buildReport(req, gid, started, locals)
	w.log.Warn("slow request intercepted",
		zap.Stringer("report_id", r.ID),
		zap.Stringer("request", req),
		zap.String("request_id", req.RequestID),
		zap.Int64("goroutine", gid),
		zap.Duration("elapsed", r.CapturedAt.Sub(started)),
	)
	if err := w.deliver(r); err != nil {
		w.log.Debug("report delivered with failures", zap.Stringer("report_id", r.ID), zap.Error(err))
	}
}

func (w *Watchdog) buildReport(req Request, gid int64, started time.Time, locals *stackcapture.Locals) *Report {
	in := reportInput{
		Report: Report{
			ID:          uuid.New(),
			CapturedAt:  w.now(),
			Request:     req,
			Hostname:    w.hostname,
			GoroutineID: gid,
			PID:         w.pid,
			Started:     started,
		},
		includeLocals: w.opts.IncludeLocals,
	}

	g, ok := w.capture(gid)
	if !ok {
		w.log.Info("request goroutine gone before capture", zap.Int64("goroutine", gid))
		return composeReport(in)
	}

	in.captured = true
	in.stack = w.renderer.Render(g, false, nil)
	if w.opts.IncludeLocals {
		in.localsStack = w.renderer.Render(g, true, locals)
	}
	return composeReport(in)
}
