// Package stackcapture snapshots the call stack of a live goroutine and
// renders it as a diagnostic traceback.
//
// The Go runtime has no API for reading another goroutine's frames, so
// Capture takes an all-goroutines dump with runtime.Stack and parses it.
// That briefly stops the world; it is meant for rare, already-slow events,
// not for sampling.
package stackcapture

import (
	"runtime"
)

const (
	initialDumpSize = 64 << 10
	maxDumpSize     = 64 << 20
)

// Frame is one call in a goroutine's stack.
type Frame struct {
	Function string
	// Args are the raw argument words printed by the runtime, e.g. "0xc0000a2000".
	Args []string
	File string
	Line int
}

// Goroutine is a parsed stack snapshot.
type Goroutine struct {
	ID    int64
	State string
	// Frames are innermost first, as the runtime prints them.
	Frames []Frame
	// CreatedBy is the go statement that started the goroutine, if known.
	CreatedBy *Frame
	// Elided is set when the runtime truncated the frame list.
	Elided bool
}

// CurrentGoroutineID returns the id of the calling goroutine.
func CurrentGoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id int64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + int64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// Capture returns the current stack of the goroutine with the given id.
// It reports false if that goroutine no longer exists.
func Capture(id int64) (*Goroutine, bool) {
	for _, g := range Parse(dumpAll()) {
		if g.ID == id {
			return g, true
		}
	}
	return nil, false
}

// dumpAll returns runtime.Stack for all goroutines, growing the buffer until
// the dump fits or maxDumpSize is reached.
func dumpAll() []byte {
	buf := make([]byte, initialDumpSize)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= maxDumpSize {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}
