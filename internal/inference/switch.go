package inference

import (
	"context"
	"time"

	"github.com/google/uuid"

	"libreplexity/internal/prefs"
	"libreplexity/pkg/types"
)

// SwitchModel makes spec the desired model and, after the switch debounce,
// loads it in the background. A newer switch within the debounce window
// replaces the pending one. It returns an operation id.
func (s *Session) SwitchModel(spec types.ModelSpec) string {
	op := uuid.NewString()
	s.mu.Lock()
	s.desired = spec
	s.switchPending = true
	if s.switchTimer != nil {
		s.switchTimer.Stop()
	}
	s.switchTimer = time.AfterFunc(s.debounce, func() { s.runSwitch(op, spec) })
	s.mu.Unlock()

	s.log.Info().Str("op", op).Str("model", spec.ID).Msg("model switch requested")
	s.emit(Event{Name: EventSwitchRequested, ModelID: spec.ID, Fields: map[string]any{"op": op}})
	return op
}

// SwitchByID switches to a registered model id.
func (s *Session) SwitchByID(id string) (string, error) {
	m, ok := s.registry.Lookup(id)
	if !ok {
		return "", ErrModelNotFound(id)
	}
	return s.SwitchModel(m), nil
}

// SwitchSize switches to the first registered model of the given size class.
func (s *Session) SwitchSize(size types.SizeClass) (string, error) {
	m, ok := s.registry.BySize(size)
	if !ok {
		return "", ErrModelNotFound(string(size))
	}
	return s.SwitchModel(m), nil
}

func (s *Session) runSwitch(op string, spec types.ModelSpec) {
	if s.prefs != nil {
		ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
		if err := prefs.SaveModel(ctx, s.prefs, spec.ID); err != nil {
			s.log.Warn().Err(err).Str("model", spec.ID).Msg("failed to persist model preference")
		}
		cancel()
	}
	if err := s.EnsureLoaded(s.ctx); err != nil {
		s.log.Error().Err(err).Str("op", op).Str("model", spec.ID).Msg("model switch failed")
	}
}
