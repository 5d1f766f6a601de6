package inference

import (
	"context"

	"libreplexity/pkg/types"
)

// State is the lifecycle state of a Session.
type State string

const (
	StateUnloaded   State = "unloaded"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateGenerating State = "generating"
	StateError      State = "error"
)

// Step classifies engine load progress.
type Step string

const (
	StepDownload Step = "download"
	StepCompile  Step = "compile"
	StepLoad     Step = "load"
)

// Role values for Message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    string
	Content string
}

// ChatRequest is a single streamed completion.
type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// Usage contains token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LoadParams are passed to the engine on every reload.
type LoadParams struct {
	Temperature       float32
	TopP              float32
	ContextWindowSize int
	SlidingWindowSize int
	AttentionSinkSize int
	Threads           int
}

// Progress is one engine load progress report. Text is free form, e.g.
// "Fetching param cache[3/108]: 120MB fetched".
type Progress struct {
	Text     string
	Fraction float64
}

// Tokenizer converts between text and model tokens.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(tokens []int) (string, error)
}

// Engine is a stateful, streaming chat engine. It is not safe for concurrent
// use; Session guarantees exclusive access.
type Engine interface {
	Tokenizer
	// Reload loads spec, replacing any loaded model. progress may be nil.
	Reload(ctx context.Context, spec types.ModelSpec, params LoadParams, progress func(Progress)) error
	// ResetChat clears conversation state kept between completions.
	ResetChat()
	// ChatStream runs one completion, calling onDelta for every chunk of
	// content in order. Returning an error from onDelta stops the stream.
	ChatStream(ctx context.Context, req ChatRequest, onDelta func(string) error) (Usage, error)
}
