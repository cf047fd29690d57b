package tts

import "context"

// Synthesizer converts text to spoken audio.
type Synthesizer interface {
	// Synthesize returns encoded audio and its MIME type.
	Synthesize(ctx context.Context, text string) ([]byte, string, error)
}
