package prosody

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/senseai/conversation-gateway/internal/emotion"
	"github.com/senseai/conversation-gateway/internal/tone"
)

// minAnalysisBytes skips analysis of windows too small to classify
// (~0.5s of audio).
const minAnalysisBytes = 8000

// smoothingFloor rejects classifier results too weak to be worth emitting,
// so the tone shown to the client does not jitter on noise.
const smoothingFloor = 0.05

// AnalyzerConfig configures the background analysis loop.
type AnalyzerConfig struct {
	// Interval is the target seconds between classifier launches (default 0.8).
	Interval float64
	// Tick is the monitor cadence in seconds (default 0.1). The monitor runs
	// on a wall-clock rhythm independent of audio arrival.
	Tick float64
	// Clock overrides the wall clock in tests.
	Clock Clock
}

// SampleFunc receives every emitted tone sample together with the full
// classifier result it was derived from.
type SampleFunc func(sample tone.Sample, result *emotion.Result)

// Analyzer periodically drains the sliding window into the tone classifier
// and emits time-stamped samples into the aggregator. At most one
// classification is in flight at a time; the classifier is rate- and
// duration-limited, so overlapping calls for one session must never occur.
type Analyzer struct {
	buffer     *Buffer
	classifier emotion.Classifier
	aggregator *tone.Aggregator
	onSample   SampleFunc
	logger     zerolog.Logger

	interval float64
	tick     float64
	now      Clock

	mu               sync.Mutex
	running          bool
	inFlight         bool
	lastAnalysisTime float64
	lastResult       *emotion.Result

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAnalyzer creates an analyzer over buffer. classifier may be nil, in
// which case the monitor idles. onSample may be nil.
func NewAnalyzer(buffer *Buffer, classifier emotion.Classifier, aggregator *tone.Aggregator, onSample SampleFunc, logger zerolog.Logger, cfg AnalyzerConfig) *Analyzer {
	if cfg.Interval <= 0 {
		cfg.Interval = 0.8
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 0.1
	}
	now := cfg.Clock
	if now == nil {
		now = tone.Now
	}
	return &Analyzer{
		buffer:     buffer,
		classifier: classifier,
		aggregator: aggregator,
		onSample:   onSample,
		logger:     logger,
		interval:   cfg.Interval,
		tick:       cfg.Tick,
		now:        now,
	}
}

// Start launches the background monitor loop.
func (a *Analyzer) Start() {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.mu.Unlock()

	a.wg.Add(1)
	go a.monitorLoop(ctx)

	a.logger.Debug().
		Float64("interval_s", a.interval).
		Float64("tick_s", a.tick).
		Msg("Prosody analyzer started")
}

// Stop cancels the monitor and any in-flight analysis and waits for both to
// finish, so no analysis callback can fire after teardown.
func (a *Analyzer) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	cancel := a.cancel
	a.mu.Unlock()

	cancel()
	a.wg.Wait()

	a.logger.Debug().Msg("Prosody analyzer stopped")
}

func (a *Analyzer) monitorLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(time.Duration(a.tick * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.triggerIfReady(ctx)
		}
	}
}

// triggerIfReady launches one analysis task only when every condition holds:
// running, interval elapsed, classifier configured, fresh non-stale audio,
// and no analysis already in flight.
func (a *Analyzer) triggerIfReady(ctx context.Context) {
	if a.classifier == nil {
		return
	}

	a.mu.Lock()
	if !a.running || a.inFlight {
		a.mu.Unlock()
		return
	}
	if a.now()-a.lastAnalysisTime < a.interval {
		a.mu.Unlock()
		return
	}
	if !a.buffer.HasNewAudio() || !a.buffer.HasRecentAudio() {
		a.mu.Unlock()
		return
	}
	a.inFlight = true
	a.lastAnalysisTime = a.now()
	a.mu.Unlock()

	a.wg.Add(1)
	go a.runAnalysis(ctx)
}

func (a *Analyzer) runAnalysis(ctx context.Context) {
	defer a.wg.Done()
	defer func() {
		a.mu.Lock()
		a.inFlight = false
		a.mu.Unlock()
	}()

	// Capture window bytes and timestamps before the slow call: the sample's
	// time range must reflect when the audio was recorded, not when the
	// classifier returned.
	audio, bufferStart, bufferEnd := a.buffer.Snapshot()
	a.buffer.MarkAnalyzed(bufferEnd)

	if len(audio) < minAnalysisBytes {
		return
	}

	result, err := a.classifier.Classify(ctx, audio)
	if err != nil || result == nil {
		// Transient classifier failure: reuse the last known result rather
		// than propagating a gap. With no prior result this degrades to a
		// zero-confidence neutral that the smoothing gate drops.
		if err != nil && ctx.Err() == nil {
			a.logger.Warn().Err(err).Msg("Tone classification failed, reusing last result")
		}
		a.mu.Lock()
		result = a.lastResult
		a.mu.Unlock()
		if result == nil {
			return
		}
	}

	if ctx.Err() != nil {
		return
	}

	if !shouldEmit(result.Tone, result.Confidence) {
		a.logger.Debug().
			Str("tone", result.Tone).
			Float64("confidence", result.Confidence).
			Msg("Tone sample below smoothing floor, skipped")
		return
	}

	a.mu.Lock()
	a.lastResult = result
	a.mu.Unlock()

	duration := float64(len(audio)) / BytesPerSecond
	end := bufferEnd
	start := end - duration
	if start < bufferStart {
		start = bufferStart
	}

	sample := tone.Sample{
		StartTime:  start,
		EndTime:    end,
		Label:      result.Tone,
		Confidence: result.Confidence,
	}

	if a.aggregator != nil {
		a.aggregator.Add(sample)
	}
	if a.onSample != nil {
		a.onSample(sample, result)
	}
}

// shouldEmit is the smoothing gate: results with no label or with
// confidence under the floor are dropped.
func shouldEmit(label string, confidence float64) bool {
	if label == "" {
		return false
	}
	return confidence >= smoothingFloor
}
