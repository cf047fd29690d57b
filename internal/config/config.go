package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the conversation gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Speech-to-text configuration. STT_PROVIDER selects the transcriber
	// implementation: "deepgram" (batch pre-recorded API) or "whisper"
	// (Groq-hosted Whisper over HTTP).
	STTProvider      string `envconfig:"STT_PROVIDER" default:"deepgram"`
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`
	GroqAPIKey       string `envconfig:"GROQ_API_KEY"`
	WhisperModel     string `envconfig:"WHISPER_MODEL" default:"whisper-large-v3-turbo"`
	WhisperPrompt    string `envconfig:"WHISPER_PROMPT" default:"Medical consultation conversation between a doctor and patient."`

	// Tone classifier (Hume prosody streaming API)
	HumeAPIKey    string `envconfig:"HUME_API_KEY"`
	HumeStreamURL string `envconfig:"HUME_STREAM_URL" default:"wss://api.hume.ai/v0/stream/models"`

	// Intelligence layer (transcript simplification + quick replies)
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	ClaudeModel     string `envconfig:"CLAUDE_MODEL" default:"claude-3-5-haiku-20241022"`

	// ElevenLabs TTS
	ElevenLabsAPIKey  string `envconfig:"ELEVENLABS_API_KEY"`
	ElevenLabsVoiceID string `envconfig:"ELEVENLABS_VOICE_ID" default:"21m00Tcm4TlvDq8ikWAM"`

	// Prosody analysis configuration
	ProsodyWindowSeconds    float64 `envconfig:"PROSODY_WINDOW_SECONDS" default:"2.5"`    // Sliding audio window duration
	AnalysisIntervalSeconds float64 `envconfig:"ANALYSIS_INTERVAL_SECONDS" default:"0.8"` // Target interval between classifier calls
	ToneRetentionSeconds    float64 `envconfig:"TONE_RETENTION_SECONDS" default:"10"`     // Tone sample retention window

	// Session configuration
	MobileMode         bool `envconfig:"MOBILE_MODE" default:"true"`              // Cap incoming chunk size for phone clients
	MaxAudioChunkBytes int  `envconfig:"MAX_AUDIO_CHUNK_BYTES" default:"500000"`  // Per-chunk ceiling when MobileMode is set
	MinAudioChunkBytes int  `envconfig:"MIN_AUDIO_CHUNK_BYTES" default:"1000"`    // Chunks below this are dropped
	PendingCapacity    int  `envconfig:"PENDING_UTTERANCE_CAPACITY" default:"10"` // Bounded pending-correction list

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables.
// It first attempts to load from .env file if it exists, then from environment.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments).
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.STTProvider {
	case "deepgram":
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when STT_PROVIDER=deepgram")
		}
	case "whisper":
		if c.GroqAPIKey == "" {
			return fmt.Errorf("GROQ_API_KEY is required when STT_PROVIDER=whisper")
		}
	default:
		return fmt.Errorf("unknown STT_PROVIDER %q (expected deepgram or whisper)", c.STTProvider)
	}
	if c.ProsodyWindowSeconds <= 0 {
		return fmt.Errorf("PROSODY_WINDOW_SECONDS must be positive")
	}
	if c.AnalysisIntervalSeconds <= 0 {
		return fmt.Errorf("ANALYSIS_INTERVAL_SECONDS must be positive")
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
