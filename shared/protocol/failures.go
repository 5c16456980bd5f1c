package protocol

import "time"

// FailureWindow escalates when limit protocol failures land within window.
type FailureWindow struct {
	limit  int
	window time.Duration
	hits   []time.Time
}

func NewFailureWindow(limit int, window time.Duration) *FailureWindow {
	return &FailureWindow{limit: limit, window: window}
}

// Record notes one failure at now and reports whether the limit is reached.
func (f *FailureWindow) Record(now time.Time) bool {
	cutoff := now.Add(-f.window)
	kept := f.hits[:0]
	for _, t := range f.hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	f.hits = append(kept, now)
	return len(f.hits) >= f.limit
}

// Count returns the failures still inside the window as of the last Record.
func (f *FailureWindow) Count() int {
	return len(f.hits)
}

func (f *FailureWindow) Reset() {
	f.hits = f.hits[:0]
}
