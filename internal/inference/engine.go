package inference

import (
	"fmt"
	"strings"
)

// EngineKind names an Engine implementation.
type EngineKind string

const (
	EngineOpenAI EngineKind = "openai"
	EngineLlama  EngineKind = "llama"
)

// LlamaAvailable reports whether this binary was built with the 'llama' tag.
func LlamaAvailable() bool { return llamaBuilt }

// EngineOptions selects and configures an engine.
type EngineOptions struct {
	Kind    EngineKind
	OpenAI  OpenAIConfig
	CtxSize int
	Threads int
}

// NewEngine builds the engine named by opts.Kind (openai when empty).
func NewEngine(opts EngineOptions) (Engine, error) {
	switch EngineKind(strings.ToLower(string(opts.Kind))) {
	case "", EngineOpenAI:
		return NewOpenAIEngine(opts.OpenAI), nil
	case EngineLlama:
		e, err := NewLlamaEngine(opts.CtxSize, opts.Threads, opts.OpenAI.Tokenizer)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown engine %q", opts.Kind)
	}
}
