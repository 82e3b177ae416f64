package loop

import (
	"sync"
	"time"
)

// TimesMax is the number of samples kept per series.
const TimesMax = 100

// Summary describes one series of the rolling window.
type Summary struct {
	Count int           `json:"count"`
	Mean  time.Duration `json:"mean"`
	Max   time.Duration `json:"max"`
	Last  time.Duration `json:"last"`
}

// Stats is a point-in-time copy of the loop timings.
type Stats struct {
	Tick    Summary `json:"tick"`
	Observe Summary `json:"observe"`
}

// Times keeps the last TimesMax tick and observer durations. Observers report
// from their own goroutines, so Times is safe for concurrent use.
type Times struct {
	mu      sync.Mutex
	tick    []time.Duration
	observe []time.Duration
}

// NewTimes returns an empty window.
func NewTimes() *Times {
	return &Times{
		tick:    make([]time.Duration, 0, TimesMax),
		observe: make([]time.Duration, 0, TimesMax),
	}
}

func (t *Times) AddTick(d time.Duration) {
	t.mu.Lock()
	t.tick = push(t.tick, d)
	t.mu.Unlock()
}

func (t *Times) AddObserve(d time.Duration) {
	t.mu.Lock()
	t.observe = push(t.observe, d)
	t.mu.Unlock()
}

// Stats summarizes both series.
func (t *Times) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{Tick: summarize(t.tick), Observe: summarize(t.observe)}
}

func push(s []time.Duration, d time.Duration) []time.Duration {
	if len(s) == TimesMax {
		copy(s, s[1:])
		s = s[:TimesMax-1]
	}
	return append(s, d)
}

func summarize(s []time.Duration) Summary {
	if len(s) == 0 {
		return Summary{}
	}
	var sum, high time.Duration
	for _, d := range s {
		sum += d
		high = max(high, d)
	}
	return Summary{
		Count: len(s),
		Mean:  sum / time.Duration(len(s)),
		Max:   high,
		Last:  s[len(s)-1],
	}
}
