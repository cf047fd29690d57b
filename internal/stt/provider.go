package stt

import (
	"fmt"

	"github.com/senseai/conversation-gateway/internal/config"
)

// NewTranscriber returns the Transcriber selected by STT_PROVIDER.
func NewTranscriber(cfg *config.Config) (Transcriber, error) {
	switch cfg.STTProvider {
	case "deepgram":
		return NewDeepgramClient(cfg), nil
	case "whisper":
		return NewWhisperClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown STT provider: %s", cfg.STTProvider)
	}
}
