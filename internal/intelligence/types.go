package intelligence

import "context"

// Request carries one utterance plus surrounding context to the
// intelligence layer.
type Request struct {
	// Transcript is the raw utterance text to work from.
	Transcript string

	// ToneLabel is the speaker's current tone (e.g. "speaking warmly").
	ToneLabel string

	// Context is recent conversation history, oldest first.
	Context []string

	// Profile describes the listener's communication needs, used to shape
	// the simplified output.
	Profile string
}

// QuickReply is a suggested one-tap response the listener can send back.
type QuickReply struct {
	Label      string `json:"label"`
	SpokenText string `json:"spoken_text"`
}

// Insights is the intelligence layer's output for one utterance.
type Insights struct {
	// Simplified is a plain-language rendering of the transcript. Never
	// empty: on failure it falls back to the raw transcript.
	Simplified string `json:"simplified"`

	// QuickReplies are suggested responses, possibly empty.
	QuickReplies []QuickReply `json:"quick_replies"`

	// Summary is a one-line gist of the conversation so far, possibly empty.
	Summary string `json:"summary"`
}

// Simplifier produces listener-facing insights for an utterance.
type Simplifier interface {
	Simplify(ctx context.Context, req Request) (*Insights, error)
}

// SimplifierFunc adapts a function to the Simplifier interface.
type SimplifierFunc func(ctx context.Context, req Request) (*Insights, error)

// Simplify implements Simplifier.
func (f SimplifierFunc) Simplify(ctx context.Context, req Request) (*Insights, error) {
	return f(ctx, req)
}
