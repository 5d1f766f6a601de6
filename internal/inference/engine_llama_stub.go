//go:build !llama

package inference

import (
	"context"

	"libreplexity/pkg/types"
)

// llamaBuilt is false when the 'llama' build tag is not set.
const llamaBuilt = false

const llamaMissing = "llama support not built (missing 'llama' build tag)"

// LlamaEngine is unavailable in this build; NewLlamaEngine always fails.
type LlamaEngine struct{}

func NewLlamaEngine(ctxSize, threads int, tok Tokenizer) (*LlamaEngine, error) {
	return nil, ErrDependencyUnavailable(llamaMissing)
}

func (e *LlamaEngine) Reload(context.Context, types.ModelSpec, LoadParams, func(Progress)) error {
	return ErrDependencyUnavailable(llamaMissing)
}

func (e *LlamaEngine) ResetChat() {}

func (e *LlamaEngine) Encode(string) ([]int, error) { return nil, ErrDependencyUnavailable(llamaMissing) }

func (e *LlamaEngine) Decode([]int) (string, error) { return "", ErrDependencyUnavailable(llamaMissing) }

func (e *LlamaEngine) ChatStream(ctx context.Context, _ ChatRequest, _ func(string) error) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	return Usage{}, ErrDependencyUnavailable(llamaMissing)
}

func (e *LlamaEngine) Close() error { return nil }
