package control

import "sort"

// DominantClusterAverage returns the mean of the largest run of values in
// which each element is within tolerance (strictly less) of its predecessor
// once sorted ascending. On equal counts the lower-valued run wins. An empty
// input yields 0. values is not modified.
func DominantClusterAverage(values []float64, tolerance float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	// Each run is summed as offsets from its first element so a run of
	// identical values averages back to that value exactly.
	bestCount, bestBase, bestOffsets := 0, 0.0, 0.0
	count, base, offsets := 1, sorted[0], 0.0
	for i := 1; i < len(sorted); i++ {
		if sorted[i]-sorted[i-1] < tolerance {
			count++
			offsets += sorted[i] - base
			continue
		}
		if count > bestCount {
			bestCount, bestBase, bestOffsets = count, base, offsets
		}
		count, base, offsets = 1, sorted[i], 0
	}
	if count > bestCount {
		bestCount, bestBase, bestOffsets = count, base, offsets
	}
	return bestBase + bestOffsets/float64(bestCount)
}

// WidthFilter keeps the last N raw corridor-width samples in a ring and
// reports their dominant cluster average. Slots start at zero, so until
// enough consistent samples have arrived the zero cluster dominates.
type WidthFilter struct {
	buf       []float64
	next      int
	pushed    uint64
	tolerance float64
}

func NewWidthFilter(capacity int, tolerance float64) *WidthFilter {
	return &WidthFilter{buf: make([]float64, capacity), tolerance: tolerance}
}

// Push overwrites the oldest slot.
func (f *WidthFilter) Push(sample float64) {
	f.buf[f.next] = sample
	f.next = (f.next + 1) % len(f.buf)
	f.pushed++
}

func (f *WidthFilter) Estimate() float64 {
	return DominantClusterAverage(f.buf, f.tolerance)
}

// Filled reports how many slots hold real samples.
func (f *WidthFilter) Filled() int {
	if f.pushed >= uint64(len(f.buf)) {
		return len(f.buf)
	}
	return int(f.pushed)
}

// Samples returns a copy of the ring in slot order.
func (f *WidthFilter) Samples() []float64 {
	return append([]float64(nil), f.buf...)
}

// ReadinessLatch becomes true the first time a positive width estimate is
// observed and never resets.
type ReadinessLatch struct {
	ready bool
}

func (l *ReadinessLatch) Observe(track float64) bool {
	if track > 0 {
		l.ready = true
	}
	return l.ready
}

func (l *ReadinessLatch) Ready() bool { return l.ready }
