package emotion

import "context"

// Emotion is one scored emotion dimension from the classifier.
type Emotion struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Result is a successful tone classification of one audio span.
type Result struct {
	// Tone is the caption-friendly label (e.g. "carefully", "with concern").
	Tone string

	// RawEmotion is the classifier's own name for the winning dimension.
	RawEmotion string

	// Confidence is the winning dimension's score in [0,1].
	Confidence float64

	// TopEmotions holds the highest-scoring dimensions, strongest first.
	TopEmotions []Emotion
}

// Classifier analyzes the emotional tone of an audio clip. Implementations
// must enforce their own input size ceiling and report failures through the
// error return; a classification error never carries partial results.
type Classifier interface {
	Classify(ctx context.Context, audio []byte) (*Result, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, audio []byte) (*Result, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ctx context.Context, audio []byte) (*Result, error) {
	return f(ctx, audio)
}
