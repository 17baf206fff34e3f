package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow admits request starts so that no window of the configured
// length ever contains more than the configured limit of them. It is pure
// admission control: Reserve reports how long the caller must wait but never
// sleeps itself.
type SlidingWindow struct {
	limit  int
	window time.Duration

	mu         sync.Mutex
	timestamps []time.Time
}

// NewSlidingWindow creates a sliding-window limiter. A limit of zero or less
// disables limiting entirely.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
	}
}

// Reserve checks whether a request may start at the given time. A zero return
// means the request was admitted and its start recorded. A positive return is
// the time the caller must wait before calling Record; nothing is recorded in
// that case.
func (slidingWindow *SlidingWindow) Reserve(now time.Time) time.Duration {
	if slidingWindow.limit <= 0 {
		return 0
	}

	slidingWindow.mu.Lock()
	defer slidingWindow.mu.Unlock()

	slidingWindow.prune(now)

	if len(slidingWindow.timestamps) < slidingWindow.limit {
		slidingWindow.timestamps = append(slidingWindow.timestamps, now)
		return 0
	}

	oldest := slidingWindow.timestamps[0]
	return slidingWindow.window - now.Sub(oldest)
}

// Record appends a request-start timestamp after the caller has served the
// wait returned by Reserve.
func (slidingWindow *SlidingWindow) Record(now time.Time) {
	if slidingWindow.limit <= 0 {
		return
	}

	slidingWindow.mu.Lock()
	defer slidingWindow.mu.Unlock()

	slidingWindow.prune(now)
	slidingWindow.timestamps = append(slidingWindow.timestamps, now)
}

// InWindow reports how many request starts are currently retained.
func (slidingWindow *SlidingWindow) InWindow(now time.Time) int {
	slidingWindow.mu.Lock()
	defer slidingWindow.mu.Unlock()

	slidingWindow.prune(now)
	return len(slidingWindow.timestamps)
}

// prune drops timestamps that have aged out of the window. Callers must hold mu.
func (slidingWindow *SlidingWindow) prune(now time.Time) {
	cutoff := 0
	for cutoff < len(slidingWindow.timestamps) && now.Sub(slidingWindow.timestamps[cutoff]) >= slidingWindow.window {
		cutoff++
	}
	if cutoff > 0 {
		slidingWindow.timestamps = append(slidingWindow.timestamps[:0], slidingWindow.timestamps[cutoff:]...)
	}
}
