package stackcapture_test

import (
	"context"
	"reflect"
	"runtime"

	"github.com/edirooss/slowdog/internal/infrastructure/stackcapture"
)

var publisherName = runtime.FuncForPC(reflect.ValueOf(publisher).Pointer()).Name()

//go:noinline
func publisher(ctx context.Context) {
	stackcapture.Publish(ctx, "step", 1)
	stackcapture.Publish(ctx, "id", "abc")
	stackcapture.Publish(ctx, "step", 2)
}

func setAs(l *stackcapture.Locals, function, name string, value any) {
	l.SetFor(function, name, value)
}
