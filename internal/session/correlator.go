package session

import (
	"sync"

	"github.com/senseai/conversation-gateway/internal/tone"
)

// DefaultPendingCapacity bounds the pending-correction list. Oldest entries
// are evicted first regardless of the confidence they reached.
const DefaultPendingCapacity = 10

// correctionMinConfidence is the acceptance floor for a re-aggregated tone
// during a correction pass, lower than the floor used at utterance creation
// so a weak-but-real signal still beats a provisional neutral.
const correctionMinConfidence = 0.1

// fallbackMaxConfidence bounds the fallback rule: when a new sample overlaps
// no pending utterance, the newest entry still below this confidence takes
// the sample's label directly.
const fallbackMaxConfidence = 0.2

// Utterance is one finalized unit of transcribed speech or text. Text is
// immutable once created; the tone stays correctable while the utterance is
// in the pending list.
type Utterance struct {
	ID        string
	StartTime float64
	EndTime   float64
	Text      string
	Tone      tone.Decision
	IsFinal   bool
}

// pendingEntry is the lightweight projection of an utterance kept only to
// allow later tone correction.
type pendingEntry struct {
	id         string
	startTime  float64
	endTime    float64
	confidence float64
}

// Correction is one retroactive tone change for an already-emitted
// utterance. Kind is "overlap" for a windowed re-aggregation match or
// "fallback" for the newest-entry heuristic.
type Correction struct {
	UtteranceID string
	Decision    tone.Decision
	Kind        string
}

// Correlator reconciles "utterance created now" against "tone sample
// arrived later". Utterances whose provisional tone is not yet confident
// register here; each incoming sample may retroactively correct them.
//
// Two writers touch the pending list: the receive loop (registration) and
// the analyzer callback (correction). One coarse mutex covers both.
type Correlator struct {
	mu         sync.Mutex
	aggregator *tone.Aggregator
	pending    []pendingEntry
	capacity   int
}

// NewCorrelator creates a correlator over the session's aggregator.
// Non-positive capacity falls back to the default.
func NewCorrelator(aggregator *tone.Aggregator, capacity int) *Correlator {
	if capacity <= 0 {
		capacity = DefaultPendingCapacity
	}
	return &Correlator{aggregator: aggregator, capacity: capacity}
}

// Register adds an utterance to the pending list when its audio-derived
// confidence is still below the threshold. audioConfidence is recorded as
// the entry's correction floor; it can differ from the displayed tone when
// a text fallback supplied the provisional label. Returns true when a full
// list forced the oldest entry out.
func (c *Correlator) Register(u *Utterance, audioConfidence float64) (evicted bool) {
	if audioConfidence >= tone.DefaultMinConfidence {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) >= c.capacity {
		c.pending = c.pending[1:]
		evicted = true
	}
	c.pending = append(c.pending, pendingEntry{
		id:         u.ID,
		startTime:  u.StartTime,
		endTime:    u.EndTime,
		confidence: audioConfidence,
	})
	return evicted
}

// OnSample runs one correction pass for a newly stored tone sample and
// returns the corrections to emit, oldest first.
//
// Entries still below the confidence threshold whose window overlaps the
// sample are re-aggregated; a result at or above the correction floor
// raises the entry's recorded confidence so later passes cannot lower it.
// When the sample overlaps nothing pending at all, the newest entry below
// the fallback bound takes the sample's own label, on the assumption that
// the newest tone most likely describes the most recent speech.
func (c *Correlator) OnSample(s tone.Sample) []Correction {
	c.mu.Lock()
	defer c.mu.Unlock()

	var corrections []Correction
	overlapsAny := false

	for i := range c.pending {
		e := &c.pending[i]
		overlap := minf(e.endTime, s.EndTime) - maxf(e.startTime, s.StartTime)
		if overlap <= 0 {
			continue
		}
		overlapsAny = true

		if e.confidence >= tone.DefaultMinConfidence {
			continue
		}

		decision := c.aggregator.AggregateWith(e.startTime, e.endTime, tone.DefaultMinOverlapRatio, correctionMinConfidence)
		if decision.IsNeutral() {
			continue
		}

		e.confidence = decision.Confidence
		corrections = append(corrections, Correction{
			UtteranceID: e.id,
			Decision:    decision,
			Kind:        "overlap",
		})
	}

	if !overlapsAny {
		for i := len(c.pending) - 1; i >= 0; i-- {
			e := &c.pending[i]
			if e.confidence >= fallbackMaxConfidence {
				continue
			}
			e.confidence = s.Confidence
			corrections = append(corrections, Correction{
				UtteranceID: e.id,
				Decision:    tone.Decision{Label: s.Label, Confidence: s.Confidence, Source: "audio"},
				Kind:        "fallback",
			})
			break
		}
	}

	return corrections
}

// PendingCount returns the number of utterances still eligible for
// correction.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// PendingIDs returns the ids of pending utterances, oldest first.
func (c *Correlator) PendingIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, len(c.pending))
	for i, e := range c.pending {
		ids[i] = e.id
	}
	return ids
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
