package inference

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"libreplexity/internal/prefs"
	"libreplexity/internal/registry"
	"libreplexity/pkg/types"
)

// Session owns one Engine and serializes loads, switches and generations.
type Session struct {
	engine   Engine
	registry *registry.Registry
	prefs    prefs.Store
	pub      EventPublisher
	log      zerolog.Logger

	debounce        time.Duration
	maxDocTokens    int
	maxOutputTokens int
	params          LoadParams

	// lock is a size-1 semaphore held for the whole of a load or generation.
	lock chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.RWMutex
	state         State
	desired       types.ModelSpec
	active        *types.ModelSpec
	switchPending bool
	switchTimer   *time.Timer
	step          Step
	progressText  string
	num, den      int
	err           string

	subMu sync.Mutex
	subs  map[chan types.EngineStatus]struct{}
}

// New constructs a Session. The initial desired model is the stored
// preference when it names a registered model, else the registry default.
func New(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Engine == nil {
		return nil, errors.New("inference: engine is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("inference: registry is required")
	}
	s := &Session{
		engine:          cfg.Engine,
		registry:        cfg.Registry,
		prefs:           cfg.Prefs,
		pub:             cfg.Publisher,
		log:             zerolog.Nop(),
		debounce:        cfg.SwitchDebounce,
		maxDocTokens:    cfg.MaxDocTokens,
		maxOutputTokens: cfg.MaxOutputTokens,
		params:          cfg.LoadParams,
		lock:            make(chan struct{}, 1),
		state:           StateUnloaded,
		subs:            make(map[chan types.EngineStatus]struct{}),
	}
	if cfg.Logger != nil {
		s.log = cfg.Logger.With().Str("component", "inference").Logger()
	}
	if s.pub == nil {
		s.pub = noopPublisher{}
	}
	if s.debounce <= 0 {
		s.debounce = defaultSwitchDebounce
	}
	if s.maxDocTokens <= 0 {
		s.maxDocTokens = defaultMaxDocTokens
	}
	if s.maxOutputTokens <= 0 {
		s.maxOutputTokens = defaultMaxOutputTokens
	}
	if s.params == (LoadParams{}) {
		s.params = DefaultLoadParams
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.desired = cfg.Registry.Default()
	if s.prefs != nil {
		id, err := prefs.LoadModel(ctx, s.prefs)
		switch {
		case err == nil:
			if m, ok := cfg.Registry.Lookup(id); ok {
				s.desired = m
			} else {
				s.log.Warn().Str("model", id).Msg("stored model preference not in registry; using default")
			}
		case errors.Is(err, prefs.ErrNotFound):
		default:
			s.log.Warn().Err(err).Msg("failed to read model preference")
		}
	}
	return s, nil
}

// Start acquires the engine lock and loads the desired model in the
// background. Generations requested meanwhile wait for the load to finish.
func (s *Session) Start(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	go func() {
		defer s.release()
		if err := s.loadLocked(s.ctx); err != nil {
			s.log.Error().Err(err).Msg("initial model load failed")
		}
	}()
	return nil
}

// Close stops pending switches and cancels background loads.
func (s *Session) Close() {
	s.mu.Lock()
	if s.switchTimer != nil {
		s.switchTimer.Stop()
	}
	s.mu.Unlock()
	s.cancel()
}

// EnsureLoaded loads the desired model unless it is already active.
func (s *Session) EnsureLoaded(ctx context.Context) error {
	if s.isReady() {
		return nil
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return s.loadLocked(ctx)
}

func (s *Session) isReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readyLocked() {
		s.switchPending = false
		return true
	}
	return false
}

func (s *Session) readyLocked() bool {
	return s.active != nil && s.active.ID == s.desired.ID &&
		(s.state == StateReady || s.state == StateGenerating)
}

// acquire blocks until the engine lock is held or ctx is done.
func (s *Session) acquire(ctx context.Context) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	default:
	}
	lockWaiters.Inc()
	defer lockWaiters.Dec()
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) release() { <-s.lock }

// loadLocked must be called with the engine lock held.
func (s *Session) loadLocked(ctx context.Context) error {
	s.mu.Lock()
	if s.readyLocked() {
		s.switchPending = false
		s.mu.Unlock()
		return nil
	}
	want := s.desired
	s.state = StateLoading
	s.switchPending = false
	s.step, s.progressText, s.num, s.den, s.err = "", "", 0, 0, ""
	s.mu.Unlock()

	s.log.Info().Str("model", want.ID).Msg("loading model")
	s.emit(Event{Name: EventLoadStart, ModelID: want.ID})
	start := time.Now()
	err := s.engine.Reload(ctx, want, s.params, func(p Progress) { s.onProgress(want.ID, p) })
	loadDuration.WithLabelValues(want.ID, outcomeLabel(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.mu.Lock()
		s.state = StateError
		s.active = nil
		s.err = err.Error()
		s.mu.Unlock()
		s.log.Error().Err(err).Str("model", want.ID).Msg("model load failed")
		s.emit(Event{Name: EventLoadError, ModelID: want.ID, Fields: map[string]any{"error": err.Error()}})
		return &ModelLoadError{ModelID: want.ID, Err: err}
	}

	s.mu.Lock()
	s.active = &want
	s.state = StateReady
	s.mu.Unlock()
	s.log.Info().Str("model", want.ID).Dur("took", time.Since(start)).Msg("model ready")
	s.emit(Event{Name: EventLoadReady, ModelID: want.ID})
	return nil
}

func (s *Session) onProgress(modelID string, p Progress) {
	step, num, den := ParseProgress(p.Text)
	s.mu.Lock()
	if step != "" {
		s.step = step
	}
	// counters never move backwards within one load
	if den > 0 {
		s.num, s.den = max(num, s.num), den
	}
	s.progressText = p.Text
	s.mu.Unlock()
	s.log.Debug().Str("model", modelID).Str("step", string(step)).Int("num", num).Int("den", den).Msg(p.Text)
	s.emit(Event{Name: EventLoadProgress, ModelID: modelID, Fields: map[string]any{
		"step": string(step), "num": num, "den": den, "text": p.Text,
	}})
}

// Snapshot returns the observable session state.
func (s *Session) Snapshot() types.EngineStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := types.EngineStatus{
		State:               string(s.state),
		Loading:             s.state == StateLoading || s.switchPending,
		StepName:            string(s.step),
		ProgressNumerator:   s.num,
		ProgressDenominator: s.den,
		ProgressText:        s.progressText,
		DesiredModel:        s.desired.ID,
		Error:               s.err,
	}
	if s.active != nil {
		st.ActiveModel = s.active.ID
	}
	return st
}

// Ready reports whether a model is loaded and usable.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active != nil && (s.state == StateReady || s.state == StateGenerating)
}

// ActiveModel returns the loaded model, if any.
func (s *Session) ActiveModel() (types.ModelSpec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return types.ModelSpec{}, false
	}
	return *s.active, true
}

// Models lists the registered models.
func (s *Session) Models() []types.ModelSpec { return s.registry.Models() }
