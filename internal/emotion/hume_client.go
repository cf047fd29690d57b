package emotion

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/senseai/conversation-gateway/internal/config"
	"github.com/senseai/conversation-gateway/internal/observability"
	"github.com/senseai/conversation-gateway/internal/resilience"
	"github.com/senseai/conversation-gateway/internal/tone"
)

// maxInputBytes caps audio sent per call. The streaming API rejects spans
// over 5000ms; at ~16KB/s that is about 80KB.
const maxInputBytes = 81000

// humeRequest is one analysis frame on the streaming socket.
type humeRequest struct {
	Data    string          `json:"data"`
	Models  humeModelConfig `json:"models"`
	RawText bool            `json:"raw_text"`
}

type humeModelConfig struct {
	Prosody struct{} `json:"prosody"`
}

// humeResponse is one prediction frame from the streaming socket.
type humeResponse struct {
	Prosody *struct {
		Predictions []struct {
			Emotions []Emotion `json:"emotions"`
		} `json:"predictions"`
	} `json:"prosody"`
	Error string `json:"error"`
}

// HumeClient classifies audio tone via Hume's expression measurement
// streaming API. Each call dials the socket, sends one base64-framed audio
// message, reads one prediction frame, and closes.
type HumeClient struct {
	apiKey    string
	streamURL string
	dialer    *websocket.Dialer
	breaker   *resilience.CircuitBreaker
	logger    zerolog.Logger
}

// NewHumeClient creates a Hume prosody classifier from config.
func NewHumeClient(cfg *config.Config) *HumeClient {
	return &HumeClient{
		apiKey:    cfg.HumeAPIKey,
		streamURL: cfg.HumeStreamURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
		breaker: resilience.NewCircuitBreaker(
			"hume",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		logger: observability.GetLogger().With().Str("component", "hume").Logger(),
	}
}

// Configured reports whether an API key is present.
func (c *HumeClient) Configured() bool {
	return c.apiKey != ""
}

// Classify implements Classifier.
func (c *HumeClient) Classify(ctx context.Context, audio []byte) (*Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("hume API key not configured")
	}

	if len(audio) > maxInputBytes {
		audio = audio[len(audio)-maxInputBytes:]
	}

	var result *Result
	err := c.breaker.Call(func() error {
		r, err := c.classifyOnce(ctx, audio)
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	observability.UpdateCircuitBreakerState("hume", int(c.breaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures("hume")
		return nil, err
	}
	return result, nil
}

func (c *HumeClient) classifyOnce(ctx context.Context, audio []byte) (*Result, error) {
	header := http.Header{}
	header.Set("X-Hume-Api-Key", c.apiKey)

	conn, _, err := c.dialer.DialContext(ctx, c.streamURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial hume stream: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	} else {
		conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}

	req := humeRequest{
		Data:    base64.StdEncoding.EncodeToString(audio),
		RawText: false,
	}
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("failed to send audio frame: %w", err)
	}

	var resp humeResponse
	if err := conn.ReadJSON(&resp); err != nil {
		return nil, fmt.Errorf("failed to read prediction frame: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("hume API error: %s", resp.Error)
	}
	if resp.Prosody == nil || len(resp.Prosody.Predictions) == 0 {
		return nil, fmt.Errorf("no prosody predictions returned")
	}

	emotions := resp.Prosody.Predictions[0].Emotions
	if len(emotions) == 0 {
		return nil, fmt.Errorf("prediction carried no emotions")
	}

	return resultFromEmotions(emotions), nil
}

// genericEmotions are low-information dimensions that win often on flat
// speech; a close, more specific runner-up is preferred over them.
var genericEmotions = map[string]bool{
	"Calmness":      true,
	"Concentration": true,
	"Contemplation": true,
}

// resultFromEmotions ranks the scored dimensions and picks the primary.
func resultFromEmotions(emotions []Emotion) *Result {
	sorted := make([]Emotion, len(emotions))
	copy(sorted, emotions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	primary := sorted[0]
	if len(sorted) >= 2 {
		secondary := sorted[1]
		if primary.Score-secondary.Score < 0.1 &&
			genericEmotions[primary.Name] && !genericEmotions[secondary.Name] {
			primary = secondary
		}
	}

	top := sorted
	if len(top) > 5 {
		top = top[:5]
	}

	return &Result{
		Tone:        tone.MapProsodyToLabel(primary.Name),
		RawEmotion:  primary.Name,
		Confidence:  primary.Score,
		TopEmotions: top,
	}
}
