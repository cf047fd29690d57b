// Package session implements the per-connection orchestrator: it receives
// audio and text over one WebSocket, emits captions immediately, and
// reconciles them against tone samples arriving later from the background
// prosody analyzer, retroactively correcting labels that were provisional
// when the caption was shown.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/senseai/conversation-gateway/internal/config"
	"github.com/senseai/conversation-gateway/internal/emotion"
	"github.com/senseai/conversation-gateway/internal/intelligence"
	"github.com/senseai/conversation-gateway/internal/observability"
	"github.com/senseai/conversation-gateway/internal/prosody"
	"github.com/senseai/conversation-gateway/internal/stt"
	"github.com/senseai/conversation-gateway/internal/tone"
)

// Session states.
const (
	stateIdle       = "idle"
	stateListening  = "listening"
	stateProcessing = "processing"
)

// Conversation history bounds: trimmed to the last maxConversationTrim
// chars once maxConversationChars is exceeded.
const (
	maxConversationChars = 2000
	maxConversationTrim  = 1500
)

// textTranscript duration estimate: seconds per word with a one second
// floor, used when text arrives without audio to measure.
const (
	secondsPerWord    = 0.35
	minTextDuration   = 1.0
	writeDeadline     = 5 * time.Second
	transcribeTimeout = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect from app origins; origin policy is
		// enforced upstream.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

type transcriptionJob struct {
	audio   []byte
	format  string
	arrival float64
}

// Session holds all state for one client connection. Nothing here is
// shared across connections; teardown destroys everything.
type Session struct {
	conn *websocket.Conn
	cfg  *config.Config

	id            string
	correlationID string
	logger        zerolog.Logger
	metrics       *observability.Metrics

	transcriber stt.Transcriber
	simplifier  intelligence.Simplifier

	buffer     *prosody.Buffer
	aggregator *tone.Aggregator
	analyzer   *prosody.Analyzer
	correlator *Correlator

	now prosody.Clock

	mu           sync.Mutex
	state        string
	profile      string
	conversation string

	writeMu    sync.Mutex
	sendFailed bool

	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan transcriptionJob
	wg     sync.WaitGroup
}

// NewSession builds a session over an upgraded connection. classifier and
// simplifier may be nil, which disables tone analysis and simplification
// respectively; captions still flow.
func NewSession(conn *websocket.Conn, cfg *config.Config, transcriber stt.Transcriber, classifier emotion.Classifier, simplifier intelligence.Simplifier) *Session {
	sessionID := uuid.New().String()
	correlationID := observability.NewCorrelationID()
	logger := observability.WithCorrelationID(correlationID).With().
		Str("session_id", sessionID).
		Logger()

	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		conn:          conn,
		cfg:           cfg,
		id:            sessionID,
		correlationID: correlationID,
		logger:        logger,
		metrics:       observability.NewSessionMetrics(sessionID),
		transcriber:   transcriber,
		simplifier:    simplifier,
		buffer:        prosody.NewBuffer(cfg.ProsodyWindowSeconds, cfg.AnalysisIntervalSeconds),
		aggregator:    tone.NewAggregator(cfg.ToneRetentionSeconds),
		now:           tone.Now,
		state:         stateIdle,
		profile:       "deaf",
		ctx:           ctx,
		cancel:        cancel,
		jobs:          make(chan transcriptionJob, 16),
	}
	s.correlator = NewCorrelator(s.aggregator, cfg.PendingCapacity)
	s.analyzer = prosody.NewAnalyzer(s.buffer, classifier, s.aggregator, s.onToneSample, logger, prosody.AnalyzerConfig{
		Interval: cfg.AnalysisIntervalSeconds,
	})
	return s
}

// Handler returns the WebSocket endpoint handler. One session per
// connection.
func Handler(cfg *config.Config, transcriber stt.Transcriber, classifier emotion.Classifier, simplifier intelligence.Simplifier) http.HandlerFunc {
	logger := observability.GetLogger().With().Str("component", "session").Logger()

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}

		s := NewSession(conn, cfg, transcriber, classifier, simplifier)
		s.Run()
	}
}

// Run drives the session to completion: it starts the background analyzer
// and the transcription worker, consumes client messages until the
// connection drops, then tears everything down in order. The analyzer is
// stopped and awaited before the buffer and aggregator go out of use, so
// no analysis callback can fire into a dead session.
func (s *Session) Run() {
	s.metrics.RecordSessionStart()
	s.logger.Info().Msg("Session started")

	// Bound reads to the configured chunk ceiling plus base64 overhead.
	s.conn.SetReadLimit(int64(s.cfg.MaxAudioChunkBytes) * 2)

	s.analyzer.Start()

	s.wg.Add(1)
	go s.transcriptionWorker()

	s.receiveLoop()

	s.cancel()
	s.analyzer.Stop()
	close(s.jobs)
	s.wg.Wait()
	_ = s.conn.Close()

	s.metrics.RecordSessionEnd()
	s.logger.Info().Msg("Session ended")
}

func (s *Session) receiveLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug().Err(err).Msg("Unparseable client message dropped")
			continue
		}
		s.handleMessage(&msg)
	}
}

func (s *Session) handleMessage(msg *inboundMessage) {
	switch msg.Type {
	case msgStartListening:
		s.setState(stateListening)
		s.send(newStatusEvent(stateListening))

	case msgStopListening:
		s.setState(stateIdle)
		s.buffer.Clear()
		s.send(newStatusEvent(stateIdle))

	case msgSetProfile:
		s.handleSetProfile(msg.ProfileType)

	case msgAudioChunk:
		s.handleAudioChunk(msg.Audio, msg.Format)

	case msgTextTranscript:
		s.handleTextTranscript(msg.Text, msg.IsFinal)

	default:
		s.logger.Debug().Str("type", msg.Type).Msg("Unknown message type ignored")
	}
}

func (s *Session) handleSetProfile(profileType string) {
	switch profileType {
	case "deaf", "blind":
		s.mu.Lock()
		s.profile = profileType
		s.mu.Unlock()
		s.send(newStatusEvent("profile_set:" + profileType))
		s.logger.Info().Str("profile", profileType).Msg("Profile set")
	default:
		s.send(newErrorEvent("unknown profile type: " + profileType))
	}
}

func (s *Session) handleAudioChunk(encoded, format string) {
	if s.currentState() != stateListening {
		s.logger.Debug().Msg("Audio chunk received while not listening, dropped")
		return
	}

	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// One bad chunk in a continuous stream is inconsequential.
		s.logger.Debug().Err(err).Msg("Invalid base64 audio dropped")
		return
	}
	if len(audio) < s.cfg.MinAudioChunkBytes {
		s.logger.Debug().Int("bytes", len(audio)).Msg("Audio chunk too small, dropped")
		return
	}
	if s.cfg.MobileMode && len(audio) > s.cfg.MaxAudioChunkBytes {
		audio = audio[:s.cfg.MaxAudioChunkBytes]
	}

	arrival := s.now()
	s.buffer.Append(audio, arrival)
	s.metrics.RecordAudioBytes(int64(len(audio)))

	select {
	case s.jobs <- transcriptionJob{audio: audio, format: format, arrival: arrival}:
	default:
		s.logger.Warn().Msg("Transcription queue full, chunk buffered for tone only")
	}
}

func (s *Session) handleTextTranscript(text string, isFinal bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if !isFinal {
		s.logger.Debug().Msg("Interim text transcript ignored")
		return
	}

	end := s.now()
	duration := secondsPerWord * float64(len(strings.Fields(text)))
	if duration < minTextDuration {
		duration = minTextDuration
	}
	s.finalizeUtterance(text, end-duration, end)
}

// transcriptionWorker serializes transcription calls so utterances are
// created in chunk order, while the receive loop stays free to keep
// buffering audio for tone analysis.
func (s *Session) transcriptionWorker() {
	defer s.wg.Done()

	for job := range s.jobs {
		if s.ctx.Err() != nil {
			return
		}
		s.processChunk(job)
	}
}

func (s *Session) processChunk(job transcriptionJob) {
	s.setState(stateProcessing)
	s.send(newStatusEvent(stateProcessing))
	defer func() {
		if s.currentState() == stateProcessing {
			s.setState(stateListening)
			s.send(newStatusEvent(stateListening))
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, transcribeTimeout)
	defer cancel()

	s.metrics.RecordSTTStart()
	result, err := s.transcriber.Transcribe(ctx, job.audio, stt.Request{
		FilenameHint: stt.FilenameForFormat(job.format),
	})
	s.metrics.RecordSTTEnd(err == nil)
	if err != nil {
		s.metrics.RecordError("transcription_failed", "stt")
		s.logger.Warn().Err(err).Msg("Transcription failed, chunk skipped")
		return
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return
	}

	duration := result.Duration
	if duration <= 0 {
		duration = float64(len(job.audio)) / prosody.BytesPerSecond
	}
	s.finalizeUtterance(text, job.arrival-duration, job.arrival)
}

// finalizeUtterance creates the caption, assigns the best tone available
// right now, registers it for later correction when that tone is not yet
// confident, and kicks off simplification.
func (s *Session) finalizeUtterance(text string, start, end float64) {
	decision := s.aggregator.Aggregate(start, end)
	audioConfidence := decision.Confidence
	if decision.IsNeutral() {
		// No trustworthy audio signal yet: let the text itself supply a
		// provisional label. The pending entry keeps the audio confidence,
		// so a real tone sample can still correct this later.
		decision = tone.AnalyzeTextSentiment(text)
	}

	u := &Utterance{
		ID:        uuid.New().String(),
		StartTime: start,
		EndTime:   end,
		Text:      text,
		Tone:      decision,
		IsFinal:   true,
	}

	if s.correlator.Register(u, audioConfidence) {
		s.metrics.RecordPendingEviction()
	}

	s.send(utteranceCreatedEvent{
		Type:        "utterance_created",
		UtteranceID: u.ID,
		StartTime:   u.StartTime,
		EndTime:     u.EndTime,
		Text:        u.Text,
		Tone:        u.Tone,
		IsFinal:     u.IsFinal,
	})

	s.appendConversation(text)

	s.logger.Debug().
		Str("utterance_id", u.ID).
		Str("tone", u.Tone.Label).
		Float64("confidence", u.Tone.Confidence).
		Msg("Utterance created")

	if s.simplifier != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runIntelligence(u)
		}()
	}
}

func (s *Session) runIntelligence(u *Utterance) {
	s.mu.Lock()
	profile := s.profile
	history := s.conversation
	s.mu.Unlock()

	var contextLines []string
	if history != "" {
		contextLines = []string{history}
	}

	insights, err := s.simplifier.Simplify(s.ctx, intelligence.Request{
		Transcript: u.Text,
		ToneLabel:  u.Tone.Label,
		Context:    contextLines,
		Profile:    profileDescription(profile),
	})
	if err != nil || insights == nil {
		s.metrics.RecordError("simplification_failed", "intelligence")
		return
	}

	s.send(simplifiedEvent{
		Type:         "simplified",
		UtteranceID:  u.ID,
		Text:         insights.Simplified,
		QuickReplies: insights.QuickReplies,
	})

	if profile == "blind" && insights.Summary != "" {
		s.send(summaryEvent{Type: "summary", Text: insights.Summary})
	}
}

// onToneSample is the analyzer callback: every stored sample triggers one
// correction pass over the pending utterances.
func (s *Session) onToneSample(sample tone.Sample, result *emotion.Result) {
	var topEmotions []emotion.Emotion
	if result != nil {
		topEmotions = result.TopEmotions
	}

	for _, c := range s.correlator.OnSample(sample) {
		s.metrics.RecordToneCorrection(c.Kind)
		s.send(toneUpdateEvent{
			Type:           "tone_update",
			UtteranceID:    c.UtteranceID,
			Tone:           c.Decision.Label,
			ToneCategory:   tone.Category(c.Decision.Label),
			ToneConfidence: c.Decision.Confidence,
			TopEmotions:    topEmotions,
		})
		s.logger.Debug().
			Str("utterance_id", c.UtteranceID).
			Str("tone", c.Decision.Label).
			Str("kind", c.Kind).
			Msg("Tone corrected")
	}
}

// send writes one event to the client. A failed write marks the connection
// unhealthy and silently drops all further events; notification failure
// must never propagate into the analysis or transcription paths.
func (s *Session) send(event interface{}) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.sendFailed {
		return
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := s.conn.WriteJSON(event); err != nil {
		s.sendFailed = true
		s.logger.Warn().Err(err).Msg("Send failed, stopping notifications")
	}
}

func (s *Session) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) currentState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) appendConversation(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conversation == "" {
		s.conversation = text
	} else {
		s.conversation += " " + text
	}
	if len(s.conversation) > maxConversationChars {
		s.conversation = s.conversation[len(s.conversation)-maxConversationTrim:]
	}
}

func profileDescription(profile string) string {
	switch profile {
	case "blind":
		return "blind or low-vision listener who relies on spoken summaries and simple sentences"
	default:
		return "deaf or hard-of-hearing listener who relies on captions and plain language"
	}
}
