package stt

import (
	"bytes"
	"context"
	"fmt"
	"time"

	restv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/senseai/conversation-gateway/internal/config"
	"github.com/senseai/conversation-gateway/internal/observability"
	"github.com/senseai/conversation-gateway/internal/resilience"
)

// DeepgramClient implements Transcriber using Deepgram's pre-recorded
// (batch) API. The stream arrives as short self-contained chunks, so each
// chunk is submitted as its own batch request.
type DeepgramClient struct {
	client   *restv1api.Client
	model    string
	language string
	retry    *resilience.RetryConfig
	logger   zerolog.Logger
}

// NewDeepgramClient creates a batch Deepgram transcriber from config.
func NewDeepgramClient(cfg *config.Config) *DeepgramClient {
	rest := listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{})
	return &DeepgramClient{
		client:   restv1api.New(rest),
		model:    cfg.DeepgramModel,
		language: cfg.DeepgramLanguage,
		retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
		logger: observability.GetLogger().With().Str("component", "deepgram").Logger(),
	}
}

// Transcribe implements Transcriber.
func (d *DeepgramClient) Transcribe(ctx context.Context, audio []byte, req Request) (*Result, error) {
	language := req.Language
	if language == "" {
		language = d.language
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.model,
		Language:    language,
		Punctuate:   true,
		SmartFormat: true,
	}

	var result *Result
	err := resilience.Retry(ctx, func() error {
		res, err := d.client.FromStream(ctx, bytes.NewReader(audio), options)
		if err != nil {
			return fmt.Errorf("deepgram transcription failed: %w", err)
		}
		if res == nil || len(res.Results.Channels) == 0 || len(res.Results.Channels[0].Alternatives) == 0 {
			return fmt.Errorf("deepgram returned no alternatives")
		}

		alt := res.Results.Channels[0].Alternatives[0]
		result = &Result{
			Text:     alt.Transcript,
			Duration: res.Metadata.Duration,
			Language: language,
		}
		return nil
	}, d.retry, resilience.IsRetryableNetworkError)

	if err != nil {
		d.logger.Warn().Err(err).Int("bytes", len(audio)).Msg("Transcription failed")
		return nil, err
	}

	d.logger.Debug().
		Str("text", result.Text).
		Float64("duration_s", result.Duration).
		Msg("Transcription complete")
	return result, nil
}
