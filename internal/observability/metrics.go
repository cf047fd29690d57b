package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "conversation_gateway_active_sessions",
		Help: "Number of active conversation sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conversation_gateway_sessions_total",
		Help: "Total number of sessions processed",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "conversation_gateway_session_duration_seconds",
		Help:    "Duration of conversation sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// STT metrics
	sttRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conversation_gateway_stt_requests_total",
		Help: "Total number of transcription requests",
	}, []string{"status"})

	sttLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "conversation_gateway_stt_latency_seconds",
		Help:    "Transcription latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Tone classifier metrics
	toneRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conversation_gateway_tone_requests_total",
		Help: "Total number of tone classification requests",
	}, []string{"status"})

	toneLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "conversation_gateway_tone_latency_seconds",
		Help:    "Tone classification latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	toneCorrections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conversation_gateway_tone_corrections_total",
		Help: "Retroactive tone corrections emitted for already-shown utterances",
	}, []string{"kind"}) // kind: "overlap" or "fallback"

	pendingEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conversation_gateway_pending_evictions_total",
		Help: "Pending utterances evicted before receiving a confident tone",
	})

	// Intelligence metrics
	intelligenceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conversation_gateway_intelligence_requests_total",
		Help: "Total number of transcript intelligence requests",
	}, []string{"status"})

	intelligenceLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "conversation_gateway_intelligence_latency_seconds",
		Help:    "Transcript intelligence latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conversation_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "conversation_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conversation_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conversation_gateway_audio_bytes_total",
		Help: "Total audio bytes received from clients",
	})
)

// Metrics tracks metrics for a single session
type Metrics struct {
	sessionID             string
	startTime             time.Time
	sttStartTime          time.Time
	toneStartTime         time.Time
	intelligenceStartTime time.Time
	mu                    sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *Metrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordSTTStart records the start of a transcription call
func (m *Metrics) RecordSTTStart() {
	m.mu.Lock()
	m.sttStartTime = time.Now()
	m.mu.Unlock()
}

// RecordSTTEnd records the end of a transcription call
func (m *Metrics) RecordSTTEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.sttStartTime.IsZero() {
		sttLatency.Observe(time.Since(m.sttStartTime).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	sttRequests.WithLabelValues(status).Inc()
}

// RecordToneStart records the start of a tone classification call
func (m *Metrics) RecordToneStart() {
	m.mu.Lock()
	m.toneStartTime = time.Now()
	m.mu.Unlock()
}

// RecordToneEnd records the end of a tone classification call
func (m *Metrics) RecordToneEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.toneStartTime.IsZero() {
		toneLatency.Observe(time.Since(m.toneStartTime).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	toneRequests.WithLabelValues(status).Inc()
}

// RecordToneCorrection records a retroactive tone correction
func (m *Metrics) RecordToneCorrection(kind string) {
	toneCorrections.WithLabelValues(kind).Inc()
}

// RecordPendingEviction records a pending utterance dropped by FIFO capacity
func (m *Metrics) RecordPendingEviction() {
	pendingEvictions.Inc()
}

// RecordIntelligenceStart records the start of an intelligence call
func (m *Metrics) RecordIntelligenceStart() {
	m.mu.Lock()
	m.intelligenceStartTime = time.Now()
	m.mu.Unlock()
}

// RecordIntelligenceEnd records the end of an intelligence call
func (m *Metrics) RecordIntelligenceEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.intelligenceStartTime.IsZero() {
		intelligenceLatency.Observe(time.Since(m.intelligenceStartTime).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	intelligenceRequests.WithLabelValues(status).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes received
func (m *Metrics) RecordAudioBytes(bytes int64) {
	audioBytesProcessed.Add(float64(bytes))
}

// RecordIntelligenceRequest records one intelligence call made outside a
// session metrics tracker.
func RecordIntelligenceRequest(elapsed time.Duration, success bool) {
	intelligenceLatency.Observe(elapsed.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	intelligenceRequests.WithLabelValues(status).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
