package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/senseai/conversation-gateway/internal/config"
	"github.com/senseai/conversation-gateway/internal/observability"
	"github.com/senseai/conversation-gateway/internal/resilience"
)

const groqTranscriptionURL = "https://api.groq.com/openai/v1/audio/transcriptions"

// WhisperClient implements Transcriber against Groq's hosted Whisper
// endpoint, which speaks the OpenAI transcription API.
type WhisperClient struct {
	apiKey     string
	model      string
	prompt     string
	endpoint   string
	httpClient *http.Client
	retry      *resilience.RetryConfig
	logger     zerolog.Logger
}

// NewWhisperClient creates a Groq-hosted Whisper transcriber from config.
func NewWhisperClient(cfg *config.Config) *WhisperClient {
	return &WhisperClient{
		apiKey:   cfg.GroqAPIKey,
		model:    cfg.WhisperModel,
		prompt:   cfg.WhisperPrompt,
		endpoint: groqTranscriptionURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
		logger: observability.GetLogger().With().Str("component", "whisper").Logger(),
	}
}

// verbose_json response shape from the transcription endpoint.
type whisperResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// Transcribe implements Transcriber.
func (w *WhisperClient) Transcribe(ctx context.Context, audio []byte, req Request) (*Result, error) {
	filename := req.FilenameHint
	if filename == "" {
		filename = "chunk.webm"
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = w.prompt
	}

	var result *Result
	err := resilience.Retry(ctx, func() error {
		res, err := w.transcribeOnce(ctx, audio, filename, req.Language, prompt)
		if err != nil {
			return err
		}
		result = res
		return nil
	}, w.retry, resilience.IsRetryableNetworkError)

	if err != nil {
		w.logger.Warn().Err(err).Int("bytes", len(audio)).Msg("Transcription failed")
		return nil, err
	}
	return result, nil
}

func (w *WhisperClient) transcribeOnce(ctx context.Context, audio []byte, filename, language, prompt string) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write audio payload: %w", err)
	}

	fields := map[string]string{
		"model":           w.model,
		"response_format": "verbose_json",
		"temperature":     "0",
	}
	if language != "" {
		fields["language"] = language
	}
	if prompt != "" {
		fields["prompt"] = prompt
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+w.apiKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("transcription returned status %d: %s", resp.StatusCode, string(payload))
	}

	var parsed whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode transcription response: %w", err)
	}

	return &Result{
		Text:     parsed.Text,
		Duration: parsed.Duration,
		Language: parsed.Language,
	}, nil
}
