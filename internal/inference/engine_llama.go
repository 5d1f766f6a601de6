//go:build llama

package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"libreplexity/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
const llamaBuilt = true

// LlamaEngine runs a GGUF model in process through llama.cpp.
type LlamaEngine struct {
	ctxSize int
	threads int
	tok     Tokenizer

	mu      sync.Mutex
	model   *llama.LLama
	params  LoadParams
	history []Message
}

// NewLlamaEngine returns an engine that loads models from ModelSpec.Path.
func NewLlamaEngine(ctxSize, threads int, tok Tokenizer) (*LlamaEngine, error) {
	if tok == nil {
		tok = NewTiktokenTokenizer("")
	}
	return &LlamaEngine{ctxSize: ctxSize, threads: threads, tok: tok}, nil
}

func (e *LlamaEngine) Reload(ctx context.Context, spec types.ModelSpec, params LoadParams, progress func(Progress)) error {
	if strings.TrimSpace(spec.Path) == "" {
		return fmt.Errorf("model %s has no path", spec.ID)
	}
	if progress != nil {
		progress(Progress{Text: fmt.Sprintf("Loading model from disk [0/1]: %s", spec.Path)})
	}
	ctxSize := e.ctxSize
	if params.ContextWindowSize > 0 {
		ctxSize = params.ContextWindowSize
	}
	m, err := llama.New(spec.Path, llama.SetContext(ctxSize))
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		m.Free()
		return err
	}
	e.mu.Lock()
	if e.model != nil {
		e.model.Free()
	}
	e.model, e.params, e.history = m, params, nil
	e.mu.Unlock()
	if progress != nil {
		progress(Progress{Text: fmt.Sprintf("Finish loading [1/1]: %s", spec.ID), Fraction: 1})
	}
	return nil
}

func (e *LlamaEngine) ResetChat() {
	e.mu.Lock()
	e.history = nil
	e.mu.Unlock()
}

func (e *LlamaEngine) Encode(text string) ([]int, error) { return e.tok.Encode(text) }

func (e *LlamaEngine) Decode(tokens []int) (string, error) { return e.tok.Decode(tokens) }

func (e *LlamaEngine) ChatStream(ctx context.Context, req ChatRequest, onDelta func(string) error) (Usage, error) {
	e.mu.Lock()
	m := e.model
	params := e.params
	msgs := append(append([]Message(nil), e.history...), req.Messages...)
	e.mu.Unlock()
	if m == nil {
		return Usage{}, ErrEngineNotReady
	}

	var deltaErr error
	completion := 0
	m.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		completion++
		if err := onDelta(tok); err != nil {
			deltaErr = err
			return false
		}
		return true
	})
	text, err := m.Predict(chatTemplate(msgs), predictOptions(req, params, e.threads)...)
	if err != nil {
		if ctx.Err() != nil {
			return Usage{}, ctx.Err()
		}
		return Usage{}, err
	}
	if deltaErr != nil {
		return Usage{}, deltaErr
	}
	if ctx.Err() != nil {
		return Usage{}, ctx.Err()
	}
	e.mu.Lock()
	e.history = append(msgs, Message{Role: RoleAssistant, Content: text})
	e.mu.Unlock()
	return Usage{CompletionTokens: completion, TotalTokens: completion}, nil
}

// Close frees the loaded model.
func (e *LlamaEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return errors.New("no model loaded")
	}
	e.model.Free()
	e.model = nil
	return nil
}

// chatTemplate renders messages in the ChatML layout most instruct GGUFs accept.
func chatTemplate(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "<|im_start|>%s\n%s<|im_end|>\n", m.Role, m.Content)
	}
	b.WriteString("<|im_start|>assistant\n")
	return b.String()
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

func predictOptions(req ChatRequest, params LoadParams, threads int) []llama.PredictOption {
	return []llama.PredictOption{
		llama.SetTokens(max(1, req.MaxTokens)),
		llama.SetThreads(max(1, threads, params.Threads)),
		llama.SetTopP(zf(req.TopP, zf(params.TopP, llama.DefaultOptions.TopP))),
		llama.SetTopK(llama.DefaultOptions.TopK),
		llama.SetTemperature(zf(req.Temperature, zf(params.Temperature, llama.DefaultOptions.Temperature))),
		llama.SetPenalty(llama.DefaultOptions.Penalty),
		llama.SetStopWords("<|im_end|>"),
	}
}
