package stt

import "context"

// Request carries per-call hints for a transcription.
type Request struct {
	// FilenameHint tells the service what container the bytes are in
	// (e.g. "chunk.webm"). Derived from the client's declared format.
	FilenameHint string

	// Language is an ISO-639-1 code.
	Language string

	// Prompt is a domain hint to improve recognition accuracy.
	Prompt string
}

// Result is a completed transcription.
type Result struct {
	// Text is the transcribed text.
	Text string

	// Duration is the audio duration in seconds, zero when the service did
	// not report one. Callers estimate missing durations from byte length.
	Duration float64

	// Language is the detected or assumed language code.
	Language string
}

// Transcriber converts one audio clip to text. Implementations must not
// block the caller's audio-buffering path beyond the call itself and must
// report failures through the error return.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, req Request) (*Result, error)
}

// TranscriberFunc adapts a function to the Transcriber interface.
type TranscriberFunc func(ctx context.Context, audio []byte, req Request) (*Result, error)

// Transcribe implements Transcriber.
func (f TranscriberFunc) Transcribe(ctx context.Context, audio []byte, req Request) (*Result, error) {
	return f(ctx, audio, req)
}

// formatToExt maps the client's declared audio format to a filename
// extension. iOS MediaRecorder sends mp4/m4a, Chrome and Android send webm.
var formatToExt = map[string]string{
	"webm": "webm",
	"mp4":  "m4a",
	"m4a":  "m4a",
	"ogg":  "ogg",
	"mp3":  "mp3",
	"wav":  "wav",
}

// FilenameForFormat returns the filename hint for a client-declared format.
func FilenameForFormat(format string) string {
	ext, ok := formatToExt[format]
	if !ok {
		ext = "webm"
	}
	return "chunk." + ext
}
