package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	defer os.Unsetenv("DEEPGRAM_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("DEEPGRAM_API_KEY")
	os.Unsetenv("GROQ_API_KEY")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when the selected provider's key is missing")
	}
}

func TestLoad_WhisperProvider(t *testing.T) {
	os.Setenv("STT_PROVIDER", "whisper")
	os.Setenv("GROQ_API_KEY", "test-groq-key")
	defer os.Unsetenv("STT_PROVIDER")
	defer os.Unsetenv("GROQ_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.GroqAPIKey != "test-groq-key" {
		t.Errorf("Expected GroqAPIKey 'test-groq-key', got '%s'", cfg.GroqAPIKey)
	}
	if cfg.WhisperModel != "whisper-large-v3-turbo" {
		t.Errorf("Expected default WhisperModel 'whisper-large-v3-turbo', got '%s'", cfg.WhisperModel)
	}
}

func TestLoad_UnknownProvider(t *testing.T) {
	os.Setenv("STT_PROVIDER", "espeak")
	defer os.Unsetenv("STT_PROVIDER")

	_, err := Load()
	if err == nil {
		t.Error("Expected error for unknown STT_PROVIDER")
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	defer os.Unsetenv("DEEPGRAM_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}

	if cfg.STTProvider != "deepgram" {
		t.Errorf("Expected default STTProvider 'deepgram', got '%s'", cfg.STTProvider)
	}

	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected default DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}

	if cfg.DeepgramLanguage != "en" {
		t.Errorf("Expected default DeepgramLanguage 'en', got '%s'", cfg.DeepgramLanguage)
	}

	if cfg.ProsodyWindowSeconds != 2.5 {
		t.Errorf("Expected default ProsodyWindowSeconds 2.5, got %f", cfg.ProsodyWindowSeconds)
	}

	if cfg.AnalysisIntervalSeconds != 0.8 {
		t.Errorf("Expected default AnalysisIntervalSeconds 0.8, got %f", cfg.AnalysisIntervalSeconds)
	}

	if cfg.ToneRetentionSeconds != 10 {
		t.Errorf("Expected default ToneRetentionSeconds 10, got %f", cfg.ToneRetentionSeconds)
	}

	if cfg.PendingCapacity != 10 {
		t.Errorf("Expected default PendingCapacity 10, got %d", cfg.PendingCapacity)
	}

	if cfg.MinAudioChunkBytes != 1000 {
		t.Errorf("Expected default MinAudioChunkBytes 1000, got %d", cfg.MinAudioChunkBytes)
	}

	if cfg.MaxAudioChunkBytes != 500000 {
		t.Errorf("Expected default MaxAudioChunkBytes 500000, got %d", cfg.MaxAudioChunkBytes)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	defer os.Unsetenv("DEEPGRAM_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}

func TestConfig_ResilienceDefaults(t *testing.T) {
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	defer os.Unsetenv("DEEPGRAM_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}

	if cfg.CircuitBreakerResetTimeout != 30 {
		t.Errorf("Expected default CircuitBreakerResetTimeout 30, got %d", cfg.CircuitBreakerResetTimeout)
	}

	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("Expected default RetryMaxAttempts 3, got %d", cfg.RetryMaxAttempts)
	}

	if cfg.RetryInitialBackoff != 100 {
		t.Errorf("Expected default RetryInitialBackoff 100, got %d", cfg.RetryInitialBackoff)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	os.Unsetenv("LOG_LEVEL")
	defer os.Unsetenv("DEEPGRAM_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}

	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}
