package sink

import (
	"context"
	"sync"

	"github.com/edirooss/slowdog/internal/watchdog"
	"github.com/google/uuid"
)

const memoryCapacity = 100

// MemorySink keeps the most recent reports in a fixed-size circular buffer.
// Append is O(1); reads copy out under a read lock.
type MemorySink struct {
	entries [memoryCapacity]*watchdog.Report
	head    int  // next write position
	size    int  // current number of entries
	full    bool // whether buffer has wrapped around
	mu      sync.RWMutex
}

func NewMemorySink() *MemorySink {
	return new(MemorySink)
}

func (s *MemorySink) Name() string { return "memory" }

func (s *MemorySink) Deliver(_ context.Context, r *watchdog.Report) error {
	s.Append(r)
	return nil
}

// Append stores r, overwriting the oldest report when full.
func (s *MemorySink) Append(r *watchdog.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const capN = len(s.entries)

	s.entries[s.head] = r
	s.head = (s.head + 1) % capN

	if s.full {
		return
	}
	s.size++
	if s.size == capN {
		s.full = true
	}
}

// Read returns up to n reports, newest first. n <= 0 means all retained.
func (s *MemorySink) Read(n int) []*watchdog.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const capN = len(s.entries)
	if s.size == 0 {
		return nil
	}
	if n <= 0 || n > s.size {
		n = s.size
	}

	// head points one past the newest entry in both the full and
	// not-yet-wrapped cases.
	newest := (s.head - 1 + capN) % capN

	out := make([]*watchdog.Report, n)
	for i := range n {
		out[i] = s.entries[(newest-i+capN)%capN]
	}
	return out
}

// Get returns the retained report with the given id.
func (s *MemorySink) Get(id uuid.UUID) (*watchdog.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.size {
		if r := s.entries[i]; r != nil && r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// Len returns the number of retained reports.
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// List is Read for the reports API.
func (s *MemorySink) List(_ context.Context, limit int) ([]*watchdog.Report, error) {
	return s.Read(limit), nil
}

// Lookup is Get for the reports API.
func (s *MemorySink) Lookup(_ context.Context, id uuid.UUID) (*watchdog.Report, bool, error) {
	r, ok := s.Get(id)
	return r, ok, nil
}

// Count is Len for the reports API.
func (s *MemorySink) Count(context.Context) (int, error) {
	return s.Len(), nil
}
