// Package prosody maintains a rolling window of recent audio and drives
// periodic background tone analysis over it.
//
// Caption text is fast and incremental; emotion is slow and stateful. The
// buffer and analyzer decouple the two so tone inference never sits on the
// caption path: chunks are appended as they arrive, and a fixed-cadence
// monitor decides when the window holds enough fresh audio to justify one
// classifier call.
package prosody

import (
	"sync"

	"github.com/senseai/conversation-gateway/internal/tone"
)

// BytesPerSecond is the approximate byte rate of webm/opus audio, used to
// estimate the duration a byte span corresponds to.
const BytesPerSecond = 16000

// MaxSnapshotBytes caps a snapshot at ~5 seconds of audio. The classifier
// enforces a hard per-call duration ceiling, so the window is truncated to
// its most recent bytes before every call.
const MaxSnapshotBytes = 81000

// maxChunks bounds buffer memory independent of the time window.
const maxChunks = 100

// Clock returns the current time as float64 seconds. Injectable for tests.
type Clock func() float64

type chunk struct {
	data      []byte
	timestamp float64
}

// Buffer is a sliding window over recently received audio chunks. Appends
// are O(1) amortized; eviction happens from the front as chunks age past
// the window.
type Buffer struct {
	mu sync.Mutex

	window           float64 // seconds of audio to keep
	analysisInterval float64 // used to derive the staleness horizon
	now              Clock

	chunks          []chunk
	lastAppendTime  float64
	lastAnalyzedEnd float64
}

// NewBuffer creates a buffer keeping windowSeconds of audio.
// analysisIntervalSeconds feeds the staleness horizon of HasRecentAudio.
func NewBuffer(windowSeconds, analysisIntervalSeconds float64) *Buffer {
	return &Buffer{
		window:           windowSeconds,
		analysisInterval: analysisIntervalSeconds,
		now:              tone.Now,
	}
}

// SetClock overrides the wall clock. Test hook.
func (b *Buffer) SetClock(c Clock) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = c
}

// Append adds a chunk with its arrival timestamp and evicts chunks older
// than the window. Never blocks.
func (b *Buffer) Append(data []byte, arrivalTime float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = append(b.chunks, chunk{data: data, timestamp: arrivalTime})
	b.lastAppendTime = arrivalTime

	if len(b.chunks) > maxChunks {
		b.chunks = b.chunks[len(b.chunks)-maxChunks:]
	}

	cutoff := arrivalTime - b.window
	i := 0
	for i < len(b.chunks) && b.chunks[i].timestamp < cutoff {
		i++
	}
	if i > 0 {
		b.chunks = b.chunks[i:]
	}
}

// Snapshot concatenates the buffered chunks in arrival order, truncated to
// the last MaxSnapshotBytes, and returns the audio along with the wall-clock
// range [start, end] the buffered chunks span. Evaluation is non-destructive:
// the buffer keeps its chunks.
func (b *Buffer) Snapshot() (audio []byte, start, end float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks) == 0 {
		now := b.now()
		return nil, now, now
	}

	total := 0
	for _, c := range b.chunks {
		total += len(c.data)
	}
	audio = make([]byte, 0, total)
	for _, c := range b.chunks {
		audio = append(audio, c.data...)
	}
	if len(audio) > MaxSnapshotBytes {
		audio = audio[len(audio)-MaxSnapshotBytes:]
	}

	return audio, b.chunks[0].timestamp, b.chunks[len(b.chunks)-1].timestamp
}

// MarkAnalyzed records the window end timestamp of the last launched
// analysis, so HasNewAudio can detect unseen chunks.
func (b *Buffer) MarkAnalyzed(windowEnd float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastAnalyzedEnd = windowEnd
}

// HasNewAudio reports whether any chunk arrived after the last analyzed
// window end.
func (b *Buffer) HasNewAudio() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks) == 0 {
		return false
	}
	return b.chunks[len(b.chunks)-1].timestamp > b.lastAnalyzedEnd+1e-6
}

// HasRecentAudio reports whether audio arrived recently enough to justify
// another classifier call. After a brief silence it goes false so the
// analyzer stops re-classifying the same stale window.
func (b *Buffer) HasRecentAudio() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lastAppendTime <= 0 {
		return false
	}
	idle := b.now() - b.lastAppendTime
	horizon := b.analysisInterval * 2
	if horizon < 1.0 {
		horizon = 1.0
	}
	return idle <= horizon
}

// Len returns the number of buffered chunks.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Clear drops all buffered chunks and resets analysis bookkeeping.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.lastAppendTime = 0
	b.lastAnalyzedEnd = 0
}

// Timestamps returns the arrival timestamps of buffered chunks in order.
// Test helper.
func (b *Buffer) Timestamps() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]float64, len(b.chunks))
	for i, c := range b.chunks {
		out[i] = c.timestamp
	}
	return out
}
