package neural

import "sync"

// Accumulator aggregates the loss and hit count of one pass over a
// labeled set.
type Accumulator struct {
	mu    sync.Mutex
	loss  float64
	hits  int
	count int
}

// Add records one prediction p against the label y.
func (a *Accumulator) Add(p, y float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loss += logLoss(p, y)
	if (p >= 0.5) == (y >= 0.5) {
		a.hits++
	}
	a.count++
}

// Loss returns the mean cross entropy, or zero before any Add.
func (a *Accumulator) Loss() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == 0 {
		return 0
	}
	return a.loss / float64(a.count)
}

// Accuracy returns the fraction of predictions on the labeled side of
// the 0.5 threshold, or zero before any Add.
func (a *Accumulator) Accuracy() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == 0 {
		return 0
	}
	return float64(a.hits) / float64(a.count)
}

// Count returns the number of recorded predictions.
func (a *Accumulator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}
