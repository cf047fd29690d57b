package session

import (
	"github.com/senseai/conversation-gateway/internal/emotion"
	"github.com/senseai/conversation-gateway/internal/intelligence"
	"github.com/senseai/conversation-gateway/internal/tone"
)

// Inbound message types. Messages are decoded once at the boundary; unknown
// types are ignored with a debug log.
const (
	msgStartListening = "start_listening"
	msgStopListening  = "stop_listening"
	msgSetProfile     = "set_profile"
	msgAudioChunk     = "audio_chunk"
	msgTextTranscript = "text_transcript"
)

// inboundMessage is the envelope for every client command. Only the fields
// relevant to the declared Type are read.
type inboundMessage struct {
	Type string `json:"type"`

	// audio_chunk
	Audio  string `json:"audio,omitempty"` // base64
	Format string `json:"format,omitempty"`

	// text_transcript
	Text    string `json:"text,omitempty"`
	IsFinal bool   `json:"is_final,omitempty"`

	// set_profile
	ProfileType string `json:"profile_type,omitempty"`
}

// utteranceCreatedEvent announces one finalized caption with its provisional
// tone.
type utteranceCreatedEvent struct {
	Type        string        `json:"type"`
	UtteranceID string        `json:"utterance_id"`
	StartTime   float64       `json:"start_time"`
	EndTime     float64       `json:"end_time"`
	Text        string        `json:"text"`
	Tone        tone.Decision `json:"tone"`
	IsFinal     bool          `json:"is_final"`
}

// toneUpdateEvent retroactively corrects the tone of an already-shown
// utterance.
type toneUpdateEvent struct {
	Type           string            `json:"type"`
	UtteranceID    string            `json:"utterance_id"`
	Tone           string            `json:"tone"`
	ToneCategory   string            `json:"tone_category"`
	ToneConfidence float64           `json:"tone_confidence"`
	TopEmotions    []emotion.Emotion `json:"top_emotions,omitempty"`
}

type simplifiedEvent struct {
	Type         string                    `json:"type"`
	UtteranceID  string                    `json:"utterance_id"`
	Text         string                    `json:"text"`
	QuickReplies []intelligence.QuickReply `json:"quick_replies"`
}

type summaryEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type statusEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newStatusEvent(message string) statusEvent {
	return statusEvent{Type: "status", Message: message}
}

func newErrorEvent(message string) errorEvent {
	return errorEvent{Type: "error", Message: message}
}
