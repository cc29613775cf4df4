package stackcapture_test

import (
	"strings"
	"testing"
	"time"

	"github.com/edirooss/slowdog/internal/infrastructure/stackcapture"
	"github.com/stretchr/testify/require"
)

//go:noinline
func parkedHere(ready chan<- int64, release <-chan struct{}) {
	ready <- stackcapture.CurrentGoroutineID()
	<-release
}

func TestCurrentGoroutineID(t *testing.T) {
	t.Parallel()

	self := stackcapture.CurrentGoroutineID()
	require.Positive(t, self)

	other := make(chan int64)
	go func() { other <- stackcapture.CurrentGoroutineID() }()
	require.NotEqual(t, self, <-other)
}

func TestCapture_liveGoroutine(t *testing.T) {
	t.Parallel()

	ready := make(chan int64)
	release := make(chan struct{})
	defer close(release)
	go parkedHere(ready, release)
	id := <-ready

	require.Eventually(t, func() bool {
		g, ok := stackcapture.Capture(id)
		if !ok {
			return false
		}
		for _, f := range g.Frames {
			if strings.HasSuffix(f.Function, ".parkedHere") {
				return strings.HasSuffix(f.File, "goroutine_test.go") && f.Line > 0
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestCapture_goneGoroutine(t *testing.T) {
	t.Parallel()

	done := make(chan int64)
	go func() { done <- stackcapture.CurrentGoroutineID() }()
	id := <-done

	require.Eventually(t, func() bool {
		g, ok := stackcapture.Capture(id)
		return !ok && g == nil
	}, time.Second, 5*time.Millisecond)
}
