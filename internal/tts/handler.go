package tts

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/senseai/conversation-gateway/internal/observability"
)

const maxSpokenTextLength = 500

type synthesizeRequest struct {
	Text string `json:"text"`
}

// Handler returns an HTTP handler that speaks a short text, used by
// clients to voice quick replies. Expects POST with {"text": "..."}.
func Handler(synth Synthesizer) http.HandlerFunc {
	logger := observability.GetLogger().With().Str("component", "tts_handler").Logger()

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req synthesizeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		text := strings.TrimSpace(req.Text)
		if text == "" {
			http.Error(w, "text is required", http.StatusBadRequest)
			return
		}
		if len(text) > maxSpokenTextLength {
			http.Error(w, "text too long", http.StatusBadRequest)
			return
		}

		audio, contentType, err := synth.Synthesize(r.Context(), text)
		if err != nil {
			logger.Warn().Err(err).Msg("Synthesis failed")
			http.Error(w, "synthesis failed", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(audio)
	}
}
