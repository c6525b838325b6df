package calibration

import (
	"sort"
	"sync"
	"time"

	"github.com/yourusername/matchedge/internal/models"
)

// Sample is one settled prediction: the uncalibrated blend and what happened.
type Sample struct {
	MatchID    string               `json:"match_id"`
	Raw        models.Probabilities `json:"raw"`
	Actual     models.Outcome       `json:"actual"`
	ObservedAt time.Time            `json:"observed_at"`
}

// SampleFromOutcome converts a settled outcome into a calibration sample.
func SampleFromOutcome(o *models.SettledOutcome) Sample {
	return Sample{MatchID: o.MatchID, Raw: o.Raw, Actual: o.Actual, ObservedAt: o.SettledAt}
}

// Window is a chronological, time and count bounded buffer of samples.
type Window struct {
	mu         sync.Mutex
	maxAge     time.Duration
	maxSamples int
	samples    []Sample
}

// NewWindow creates an empty window. Zero limits are unbounded.
func NewWindow(maxAge time.Duration, maxSamples int) *Window {
	return &Window{maxAge: maxAge, maxSamples: maxSamples}
}

// Add inserts a sample in time order and returns the new size.
func (w *Window) Add(s Sample) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := sort.Search(len(w.samples), func(i int) bool { return w.samples[i].ObservedAt.After(s.ObservedAt) })
	w.samples = append(w.samples, Sample{})
	copy(w.samples[i+1:], w.samples[i:])
	w.samples[i] = s

	if w.maxSamples > 0 && len(w.samples) > w.maxSamples {
		w.samples = append([]Sample(nil), w.samples[len(w.samples)-w.maxSamples:]...)
	}
	return len(w.samples)
}

// Snapshot drops samples older than the window at now and returns a copy of
// the rest, oldest first.
func (w *Window) Snapshot(now time.Time) []Sample {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	return append([]Sample(nil), w.samples...)
}

// Len returns the number of buffered samples.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}

func (w *Window) prune(now time.Time) {
	if w.maxAge <= 0 {
		return
	}
	cutoff := now.Add(-w.maxAge)
	i := sort.Search(len(w.samples), func(i int) bool { return !w.samples[i].ObservedAt.Before(cutoff) })
	if i > 0 {
		w.samples = append([]Sample(nil), w.samples[i:]...)
	}
}
