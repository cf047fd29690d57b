package tts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeSynthesizer struct {
	audio []byte
	err   error
	text  string
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	f.text = text
	if f.err != nil {
		return nil, "", f.err
	}
	return f.audio, "audio/mpeg", nil
}

func TestHandler_Success(t *testing.T) {
	synth := &fakeSynthesizer{audio: []byte("mp3-bytes")}
	handler := Handler(synth)

	req := httptest.NewRequest(http.MethodPost, "/tts", strings.NewReader(`{"text": "Okay, understood."}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "audio/mpeg" {
		t.Errorf("Expected audio/mpeg, got %s", rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != "mp3-bytes" {
		t.Errorf("Expected audio body, got %q", rec.Body.String())
	}
	if synth.text != "Okay, understood." {
		t.Errorf("Expected text passed through, got %q", synth.text)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	handler := Handler(&fakeSynthesizer{})

	req := httptest.NewRequest(http.MethodGet, "/tts", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestHandler_EmptyText(t *testing.T) {
	handler := Handler(&fakeSynthesizer{})

	req := httptest.NewRequest(http.MethodPost, "/tts", strings.NewReader(`{"text": "  "}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty text, got %d", rec.Code)
	}
}

func TestHandler_TextTooLong(t *testing.T) {
	handler := Handler(&fakeSynthesizer{})

	long := strings.Repeat("a", maxSpokenTextLength+1)
	req := httptest.NewRequest(http.MethodPost, "/tts", strings.NewReader(`{"text": "`+long+`"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for oversized text, got %d", rec.Code)
	}
}

func TestHandler_SynthesisFailure(t *testing.T) {
	handler := Handler(&fakeSynthesizer{err: errors.New("voice service down")})

	req := httptest.NewRequest(http.MethodPost, "/tts", strings.NewReader(`{"text": "hello"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", rec.Code)
	}
}
