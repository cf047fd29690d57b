package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/rs/zerolog"

	"github.com/senseai/conversation-gateway/internal/config"
	"github.com/senseai/conversation-gateway/internal/observability"
)

const systemPromptTemplate = `You are an accessibility assistant helping a listener follow a live conversation.
Listener profile: %s

For each utterance you receive, respond with a single JSON object and nothing else:
{
  "simplified": "the utterance rewritten in short, plain language",
  "quick_replies": [{"label": "short button text", "spoken_text": "full sentence to speak"}],
  "summary": "one sentence gist of the conversation so far"
}

Rules:
- Keep "simplified" faithful to the speaker's meaning. Do not add information.
- Suggest at most 3 quick replies, only when a response is clearly called for; otherwise use [].
- Keep "summary" under 25 words. Use "" if there is not enough context yet.`

const defaultProfile = "general audience, prefers short plain sentences"

// ClaudeClient implements Simplifier using Anthropic's Claude via the
// any-llm completion interface.
type ClaudeClient struct {
	backend anyllmlib.Provider
	model   string
	logger  zerolog.Logger
}

// NewClaudeClient creates a Claude-backed simplifier. Returns an error only
// when the backend cannot be constructed; a missing API key yields a client
// whose Configured method reports false.
func NewClaudeClient(cfg *config.Config) (*ClaudeClient, error) {
	c := &ClaudeClient{
		model:  cfg.ClaudeModel,
		logger: observability.GetLogger().With().Str("component", "intelligence").Logger(),
	}
	if cfg.AnthropicAPIKey == "" {
		return c, nil
	}

	backend, err := anthropic.New(anyllmlib.WithAPIKey(cfg.AnthropicAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic backend: %w", err)
	}
	c.backend = backend
	return c, nil
}

// Configured reports whether the client can serve requests.
func (c *ClaudeClient) Configured() bool {
	return c.backend != nil
}

// Simplify implements Simplifier. Failures degrade to the raw transcript
// rather than erroring, so captions keep flowing when the model is down.
func (c *ClaudeClient) Simplify(ctx context.Context, req Request) (*Insights, error) {
	fallback := &Insights{Simplified: req.Transcript, QuickReplies: []QuickReply{}}
	if c.backend == nil {
		return fallback, nil
	}

	profile := req.Profile
	if profile == "" {
		profile = defaultProfile
	}

	temperature := 0.3
	maxTokens := 512
	params := anyllmlib.CompletionParams{
		Model: c.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: fmt.Sprintf(systemPromptTemplate, profile)},
			{Role: anyllmlib.RoleUser, Content: buildUserPrompt(req)},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}

	start := time.Now()
	resp, err := c.backend.Completion(ctx, params)
	observability.RecordIntelligenceRequest(time.Since(start), err == nil)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Simplification request failed, falling back to raw transcript")
		return fallback, nil
	}
	if len(resp.Choices) == 0 {
		c.logger.Warn().Msg("Simplification response had no choices")
		return fallback, nil
	}

	insights, err := parseInsights(resp.Choices[0].Message.ContentString())
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to parse simplification response")
		return fallback, nil
	}
	if insights.Simplified == "" {
		insights.Simplified = req.Transcript
	}
	if insights.QuickReplies == nil {
		insights.QuickReplies = []QuickReply{}
	}
	return insights, nil
}

func buildUserPrompt(req Request) string {
	var b strings.Builder
	if len(req.Context) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, line := range req.Context {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if req.ToneLabel != "" {
		fmt.Fprintf(&b, "Speaker tone: %s\n", req.ToneLabel)
	}
	fmt.Fprintf(&b, "Utterance: %s", req.Transcript)
	return b.String()
}

// parseInsights extracts the JSON object from the model output, tolerating
// markdown fences and surrounding prose.
func parseInsights(raw string) (*Insights, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var insights Insights
	if err := json.Unmarshal([]byte(text[start:end+1]), &insights); err != nil {
		return nil, fmt.Errorf("failed to decode model output: %w", err)
	}
	return &insights, nil
}
