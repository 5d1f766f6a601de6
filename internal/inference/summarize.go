package inference

import (
	"context"
	"strings"
	"time"
)

// Summarize answers query from docs, streaming every content chunk to
// onToken synchronously and in order, and returns the full text. It waits
// for any load or generation holding the engine lock and fails with
// ErrEngineNotReady if no model is loaded once it gets the lock. Each doc is
// truncated independently to the configured token budget; none is dropped.
func (s *Session) Summarize(ctx context.Context, query string, docs []string, onToken func(string)) (string, error) {
	if err := s.acquire(ctx); err != nil {
		return "", err
	}
	defer s.release()

	s.mu.Lock()
	if s.active == nil || s.state != StateReady {
		s.mu.Unlock()
		return "", ErrEngineNotReady
	}
	model := s.active.ID
	s.state = StateGenerating
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.state == StateGenerating {
			s.state = StateReady
		}
		s.mu.Unlock()
	}()

	s.engine.ResetChat()
	truncated := make([]string, len(docs))
	for i, d := range docs {
		t, err := TruncateTokens(s.engine, d, s.maxDocTokens)
		if err != nil {
			return "", err
		}
		truncated[i] = t
	}

	s.emit(Event{Name: EventGenerateStart, ModelID: model, Fields: map[string]any{"docs": len(docs)}})
	start := time.Now()
	var out strings.Builder
	usage, err := s.engine.ChatStream(ctx, ChatRequest{
		Messages:    BuildPrompt(query, truncated),
		MaxTokens:   s.maxOutputTokens,
		Temperature: s.params.Temperature,
		TopP:        s.params.TopP,
	}, func(delta string) error {
		out.WriteString(delta)
		tokensStreamed.WithLabelValues(model).Inc()
		if onToken != nil {
			onToken(delta)
		}
		return nil
	})
	generateDuration.WithLabelValues(model, outcomeLabel(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out.String(), ctxErr
		}
		s.log.Error().Err(err).Str("model", model).Msg("generation failed")
		return out.String(), err
	}
	s.log.Debug().
		Str("model", model).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Dur("took", time.Since(start)).
		Msg("generation done")
	s.emit(Event{Name: EventGenerateDone, ModelID: model, Fields: map[string]any{
		"prompt_tokens": usage.PromptTokens, "completion_tokens": usage.CompletionTokens,
	}})
	return out.String(), nil
}
