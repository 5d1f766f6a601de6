package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"libreplexity/pkg/types"
)

// OpenAIConfig configures an OpenAIEngine.
type OpenAIConfig struct {
	// BaseURL of the OpenAI-compatible API, e.g. http://127.0.0.1:8080/v1/.
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	// MaxRetries for transient failures; negative disables retries.
	MaxRetries int
	// Tokenizer used for truncation; defaults to tiktoken cl100k_base.
	Tokenizer Tokenizer
}

// OpenAIEngine drives a model served behind an OpenAI-compatible chat API.
// Conversation history is kept locally between ResetChat calls.
type OpenAIEngine struct {
	client openai.Client
	tok    Tokenizer

	mu      sync.Mutex
	model   string
	params  LoadParams
	history []openai.ChatCompletionMessageParamUnion
}

func NewOpenAIEngine(cfg OpenAIConfig) *OpenAIEngine {
	opts := []option.RequestOption{}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	// local servers ignore the key but the client insists on one
	key := cfg.APIKey
	if key == "" {
		key = "sk-local"
	}
	opts = append(opts, option.WithAPIKey(key))
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.MaxRetries != 0 {
		opts = append(opts, option.WithMaxRetries(max(cfg.MaxRetries, 0)))
	}
	tok := cfg.Tokenizer
	if tok == nil {
		tok = NewTiktokenTokenizer("")
	}
	return &OpenAIEngine{client: openai.NewClient(opts...), tok: tok}
}

// Reload checks that the server serves spec.ID and makes it the target of
// subsequent completions. The server owns the weights, so progress is
// reported in two coarse steps.
func (e *OpenAIEngine) Reload(ctx context.Context, spec types.ModelSpec, params LoadParams, progress func(Progress)) error {
	report := func(text string, frac float64) {
		if progress != nil {
			progress(Progress{Text: text, Fraction: frac})
		}
	}
	report(fmt.Sprintf("Fetching model list [0/2]: %s", spec.ID), 0)
	page, err := e.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	found := false
	for _, m := range page.Data {
		if m.ID == spec.ID {
			found = true
			break
		}
	}
	if !found {
		return ErrModelNotFound(spec.ID)
	}
	report(fmt.Sprintf("Loading model [1/2]: %s", spec.ID), 0.5)

	e.mu.Lock()
	e.model = spec.ID
	e.params = params
	e.history = nil
	e.mu.Unlock()
	report(fmt.Sprintf("Finish loading [2/2]: %s", spec.ID), 1)
	return nil
}

func (e *OpenAIEngine) ResetChat() {
	e.mu.Lock()
	e.history = nil
	e.mu.Unlock()
}

func (e *OpenAIEngine) Encode(text string) ([]int, error) { return e.tok.Encode(text) }

func (e *OpenAIEngine) Decode(tokens []int) (string, error) { return e.tok.Decode(tokens) }

func (e *OpenAIEngine) ChatStream(ctx context.Context, req ChatRequest, onDelta func(string) error) (Usage, error) {
	e.mu.Lock()
	model := e.model
	params := e.params
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(e.history)+len(req.Messages))
	msgs = append(msgs, e.history...)
	e.mu.Unlock()
	if model == "" {
		return Usage{}, ErrEngineNotReady
	}
	for _, m := range req.Messages {
		msgs = append(msgs, toOpenAIMessage(m))
	}

	p := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: msgs,
	}
	p.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: param.NewOpt(true),
	}
	if req.MaxTokens > 0 {
		p.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if t := firstPositive(req.Temperature, params.Temperature); t > 0 {
		p.Temperature = openai.Float(float64(t))
	}
	if tp := firstPositive(req.TopP, params.TopP); tp > 0 {
		p.TopP = openai.Float(float64(tp))
	}

	stream := e.client.Chat.Completions.NewStreaming(ctx, p)
	if stream == nil {
		return Usage{}, errors.New("chat completions streaming not available")
	}
	defer stream.Close()

	var usage Usage
	var reply []byte
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.TotalTokens > 0 || chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			usage = Usage{
				PromptTokens:     int(chunk.Usage.PromptTokens),
				CompletionTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:      int(chunk.Usage.TotalTokens),
			}
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			reply = append(reply, choice.Delta.Content...)
			if err := onDelta(choice.Delta.Content); err != nil {
				return usage, err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return usage, err
	}

	e.mu.Lock()
	e.history = append(msgs, openai.AssistantMessage(string(reply)))
	e.mu.Unlock()
	return usage, nil
}

func toOpenAIMessage(m Message) openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case RoleSystem:
		return openai.SystemMessage(m.Content)
	case RoleAssistant:
		return openai.AssistantMessage(m.Content)
	default:
		return openai.UserMessage(m.Content)
	}
}

func firstPositive(vals ...float32) float32 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
