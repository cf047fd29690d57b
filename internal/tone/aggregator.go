// Package tone stores time-stamped emotion classification samples and
// aggregates them into a single tone decision for an utterance time range.
//
// Captions are emitted immediately; tone samples trickle in from the
// background prosody analyzer with their own latency. The aggregator is the
// meeting point: given an utterance's [start, end] window it selects the
// dominant label among overlapping samples, weighting each sample by both
// its confidence and how much of the utterance it covers.
package tone

import (
	"sync"
	"time"
)

// DefaultRetentionSeconds bounds the sample store: samples whose end time
// falls this far behind the newest sample are evicted.
const DefaultRetentionSeconds = 10.0

// Default aggregation thresholds. Below MinOverlapRatio coverage of the
// utterance the vote is not trusted; below MinConfidence the weighted
// average is not trusted. Both cases return the neutral sentinel.
const (
	DefaultMinOverlapRatio = 0.3
	DefaultMinConfidence   = 0.3
)

// Now returns the current wall clock as float64 seconds, the time base
// shared by samples, utterances, and the prosody buffer.
func Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Sample is one timestamped, confidence-scored emotion classification
// covering a short audio span. Immutable once created.
type Sample struct {
	StartTime  float64
	EndTime    float64
	Label      string
	Confidence float64
}

// Decision is the aggregated tone for an utterance window. A zero-confidence
// "neutral" decision means "no trustworthy signal", which is distinct from a
// confident classification of calmness.
type Decision struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Neutral returns the no-signal sentinel decision.
func Neutral() Decision {
	return Decision{Label: "neutral", Confidence: 0, Source: "audio"}
}

// IsNeutral reports whether d is the no-signal sentinel.
func (d Decision) IsNeutral() bool {
	return d.Confidence == 0 && d.Label == "neutral"
}

// Aggregator is an append-only, time-bounded store of tone samples.
// Samples arrive in completion order, not launch order; aggregation is
// commutative over the sample set so reordering cannot change the outcome
// beyond tie-breaks between equal weights.
type Aggregator struct {
	mu        sync.Mutex
	samples   []Sample
	retention float64
}

// NewAggregator creates an aggregator with the given retention window in
// seconds. Non-positive retention falls back to the default.
func NewAggregator(retentionSeconds float64) *Aggregator {
	if retentionSeconds <= 0 {
		retentionSeconds = DefaultRetentionSeconds
	}
	return &Aggregator{retention: retentionSeconds}
}

// Add appends a sample and evicts samples that fell out of the retention
// window relative to the newest end time seen.
func (a *Aggregator) Add(s Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.samples = append(a.samples, s)

	cutoff := s.EndTime - a.retention
	kept := a.samples[:0]
	for _, existing := range a.samples {
		if existing.EndTime > cutoff {
			kept = append(kept, existing)
		}
	}
	a.samples = kept
}

// Len returns the number of retained samples.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.samples)
}

// Aggregate selects the dominant label among samples overlapping
// [utteranceStart, utteranceEnd] using the default thresholds.
func (a *Aggregator) Aggregate(utteranceStart, utteranceEnd float64) Decision {
	return a.AggregateWith(utteranceStart, utteranceEnd, DefaultMinOverlapRatio, DefaultMinConfidence)
}

// AggregateWith is Aggregate with explicit thresholds. minOverlapRatio is
// the fraction of the utterance duration that overlapping samples must
// jointly cover; minConfidence is the floor on the overlap-weighted average
// confidence. Either threshold failing yields the neutral sentinel.
func (a *Aggregator) AggregateWith(utteranceStart, utteranceEnd, minOverlapRatio, minConfidence float64) Decision {
	duration := utteranceEnd - utteranceStart
	if duration <= 0 {
		return Neutral()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	type overlapped struct {
		sample  Sample
		overlap float64
	}

	var overlapping []overlapped
	totalOverlap := 0.0
	for _, s := range a.samples {
		start := max(s.StartTime, utteranceStart)
		end := min(s.EndTime, utteranceEnd)
		if end > start {
			overlapping = append(overlapping, overlapped{sample: s, overlap: end - start})
			totalOverlap += end - start
		}
	}

	if len(overlapping) == 0 {
		return Neutral()
	}
	if totalOverlap < duration*minOverlapRatio {
		return Neutral()
	}

	// Confidence-weighted, duration-weighted vote. Iteration order over the
	// retained slice is stable, so equal-weight ties resolve to the first
	// label reaching the max; callers must not read meaning into tie order.
	weights := make(map[string]float64)
	order := make([]string, 0, len(overlapping))
	totalWeight := 0.0
	for _, o := range overlapping {
		if _, seen := weights[o.sample.Label]; !seen {
			order = append(order, o.sample.Label)
		}
		w := o.sample.Confidence * o.overlap
		weights[o.sample.Label] += w
		totalWeight += w
	}

	bestLabel := ""
	bestWeight := -1.0
	for _, label := range order {
		if weights[label] > bestWeight {
			bestLabel = label
			bestWeight = weights[label]
		}
	}

	avgConfidence := totalWeight / totalOverlap
	if avgConfidence < minConfidence {
		return Neutral()
	}
	if avgConfidence > 1.0 {
		avgConfidence = 1.0
	}

	return Decision{Label: bestLabel, Confidence: avgConfidence, Source: "audio"}
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
