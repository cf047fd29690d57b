package prosody

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/senseai/conversation-gateway/internal/emotion"
	"github.com/senseai/conversation-gateway/internal/tone"
)

type fakeClock struct {
	mu sync.Mutex
	t  float64
}

func (c *fakeClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t float64) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type sampleRecorder struct {
	mu      sync.Mutex
	samples []tone.Sample
}

func (r *sampleRecorder) record(s tone.Sample, _ *emotion.Result) {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
}

func (r *sampleRecorder) all() []tone.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]tone.Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// newTestAnalyzer builds an analyzer with the monitor loop disabled so
// tests can drive trigger decisions deterministically.
func newTestAnalyzer(classifier emotion.Classifier, rec *sampleRecorder, clock *fakeClock) (*Analyzer, *Buffer, *tone.Aggregator) {
	buf := NewBuffer(10, 0.8)
	buf.SetClock(clock.Now)
	agg := tone.NewAggregator(10)

	var onSample SampleFunc
	if rec != nil {
		onSample = rec.record
	}
	a := NewAnalyzer(buf, classifier, agg, onSample, zerolog.Nop(), AnalyzerConfig{
		Interval: 0.8,
		Tick:     0.1,
		Clock:    clock.Now,
	})
	a.running = true
	return a, buf, agg
}

func waitForCalls(t *testing.T, calls *int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(calls) < want {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %d classifier calls, got %d", want, atomic.LoadInt32(calls))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAnalyzer_AtMostOneInFlight(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	classifier := emotion.ClassifierFunc(func(ctx context.Context, audio []byte) (*emotion.Result, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &emotion.Result{Tone: "calmly", Confidence: 0.9}, nil
	})

	clock := &fakeClock{t: 100}
	a, buf, _ := newTestAnalyzer(classifier, nil, clock)

	buf.Append(make([]byte, 9000), 100)
	clock.Set(101)
	a.triggerIfReady(context.Background())
	waitForCalls(t, &calls, 1)

	// The first call is still blocked; further ticks with fresh audio must
	// not launch a second one.
	for i := 0; i < 20; i++ {
		buf.Append(make([]byte, 9000), clock.Now())
		clock.Set(clock.Now() + 1)
		a.triggerIfReady(context.Background())
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected exactly 1 in-flight call, got %d", got)
	}

	close(release)
	a.wg.Wait()

	// With the slot free again a new launch is allowed.
	buf.Append(make([]byte, 9000), clock.Now())
	clock.Set(clock.Now() + 1)
	a.triggerIfReady(context.Background())
	waitForCalls(t, &calls, 2)
	a.wg.Wait()
}

func TestAnalyzer_IntervalGate(t *testing.T) {
	var calls int32
	classifier := emotion.ClassifierFunc(func(ctx context.Context, audio []byte) (*emotion.Result, error) {
		atomic.AddInt32(&calls, 1)
		return &emotion.Result{Tone: "calmly", Confidence: 0.9}, nil
	})

	clock := &fakeClock{t: 100}
	a, buf, _ := newTestAnalyzer(classifier, nil, clock)

	buf.Append(make([]byte, 9000), 100)
	clock.Set(100.5)
	a.triggerIfReady(context.Background())
	a.wg.Wait()
	first := atomic.LoadInt32(&calls)
	if first != 1 {
		t.Fatalf("Expected 1 call, got %d", first)
	}

	// Fresh audio but only 0.4s since the last launch: below the interval.
	buf.Append(make([]byte, 9000), 100.8)
	clock.Set(100.9)
	a.triggerIfReady(context.Background())
	a.wg.Wait()
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected no launch before the interval elapsed, got %d calls", got)
	}

	clock.Set(101.5)
	a.triggerIfReady(context.Background())
	a.wg.Wait()
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Expected a launch after the interval elapsed, got %d calls", got)
	}
}

func TestAnalyzer_FailureReusesLastResult(t *testing.T) {
	var calls int32
	classifier := emotion.ClassifierFunc(func(ctx context.Context, audio []byte) (*emotion.Result, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return &emotion.Result{Tone: "calmly", Confidence: 0.9}, nil
		}
		return nil, errors.New("classifier unavailable")
	})

	rec := &sampleRecorder{}
	clock := &fakeClock{t: 100}
	a, buf, _ := newTestAnalyzer(classifier, rec, clock)

	buf.Append(make([]byte, 9000), 100)
	clock.Set(101)
	a.triggerIfReady(context.Background())
	a.wg.Wait()

	buf.Append(make([]byte, 9000), 101.5)
	clock.Set(102)
	a.triggerIfReady(context.Background())
	a.wg.Wait()

	samples := rec.all()
	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples (second from reused result), got %d", len(samples))
	}
	if samples[1].Label != "calmly" || samples[1].Confidence != 0.9 {
		t.Errorf("Expected reused result calmly/0.9, got %s/%.2f", samples[1].Label, samples[1].Confidence)
	}
}

func TestAnalyzer_FailureWithNoPriorResult(t *testing.T) {
	classifier := emotion.ClassifierFunc(func(ctx context.Context, audio []byte) (*emotion.Result, error) {
		return nil, errors.New("classifier unavailable")
	})

	rec := &sampleRecorder{}
	clock := &fakeClock{t: 100}
	a, buf, agg := newTestAnalyzer(classifier, rec, clock)

	buf.Append(make([]byte, 9000), 100)
	clock.Set(101)
	a.triggerIfReady(context.Background())
	a.wg.Wait()

	if len(rec.all()) != 0 {
		t.Error("Expected no sample when the first call fails with nothing to reuse")
	}
	if agg.Len() != 0 {
		t.Errorf("Expected empty aggregator, got %d samples", agg.Len())
	}
}

func TestAnalyzer_SmoothingGate(t *testing.T) {
	classifier := emotion.ClassifierFunc(func(ctx context.Context, audio []byte) (*emotion.Result, error) {
		return &emotion.Result{Tone: "calmly", Confidence: 0.03}, nil
	})

	rec := &sampleRecorder{}
	clock := &fakeClock{t: 100}
	a, buf, agg := newTestAnalyzer(classifier, rec, clock)

	buf.Append(make([]byte, 9000), 100)
	clock.Set(101)
	a.triggerIfReady(context.Background())
	a.wg.Wait()

	if len(rec.all()) != 0 {
		t.Error("Expected sample below the smoothing floor to be dropped")
	}
	if agg.Len() != 0 {
		t.Errorf("Expected empty aggregator, got %d samples", agg.Len())
	}
}

func TestAnalyzer_SkipsTinyWindows(t *testing.T) {
	var calls int32
	classifier := emotion.ClassifierFunc(func(ctx context.Context, audio []byte) (*emotion.Result, error) {
		atomic.AddInt32(&calls, 1)
		return &emotion.Result{Tone: "calmly", Confidence: 0.9}, nil
	})

	clock := &fakeClock{t: 100}
	a, buf, _ := newTestAnalyzer(classifier, nil, clock)

	buf.Append(make([]byte, 500), 100)
	clock.Set(101)
	a.triggerIfReady(context.Background())
	a.wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("Expected no classifier call for a tiny window, got %d", got)
	}
}

func TestAnalyzer_SampleTimestampsFromBuffer(t *testing.T) {
	classifier := emotion.ClassifierFunc(func(ctx context.Context, audio []byte) (*emotion.Result, error) {
		// Simulate network latency; it must not shift the sample's range.
		time.Sleep(20 * time.Millisecond)
		return &emotion.Result{Tone: "calmly", Confidence: 0.9}, nil
	})

	rec := &sampleRecorder{}
	clock := &fakeClock{t: 100}
	a, buf, _ := newTestAnalyzer(classifier, rec, clock)

	buf.Append(make([]byte, 9000), 100)
	buf.Append(make([]byte, 9000), 101)
	clock.Set(101.5)
	a.triggerIfReady(context.Background())
	a.wg.Wait()

	samples := rec.all()
	if len(samples) != 1 {
		t.Fatalf("Expected 1 sample, got %d", len(samples))
	}
	s := samples[0]
	if s.EndTime != 101 {
		t.Errorf("Expected sample end pinned to the newest chunk timestamp 101, got %.3f", s.EndTime)
	}
	if s.StartTime < 99.8 || s.StartTime >= s.EndTime {
		t.Errorf("Expected start within the buffered range, got %.3f", s.StartTime)
	}
}

func TestAnalyzer_StopWaitsForInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished int32
	classifier := emotion.ClassifierFunc(func(ctx context.Context, audio []byte) (*emotion.Result, error) {
		close(started)
		<-release
		atomic.StoreInt32(&finished, 1)
		return &emotion.Result{Tone: "calmly", Confidence: 0.9}, nil
	})

	clock := &fakeClock{t: 100}
	buf := NewBuffer(10, 0.8)
	buf.SetClock(clock.Now)
	a := NewAnalyzer(buf, classifier, tone.NewAggregator(10), nil, zerolog.Nop(), AnalyzerConfig{
		Interval: 0.1,
		Tick:     0.01,
		Clock:    clock.Now,
	})

	a.Start()
	buf.Append(make([]byte, 9000), 100)
	clock.Set(101)
	<-started

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	a.Stop()
	if atomic.LoadInt32(&finished) != 1 {
		t.Error("Expected Stop to wait for the in-flight analysis to finish")
	}
}
