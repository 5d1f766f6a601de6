package inference

import (
	"time"

	"github.com/rs/zerolog"

	"libreplexity/internal/prefs"
	"libreplexity/internal/registry"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultSwitchDebounce  = 100 * time.Millisecond
	defaultMaxDocTokens    = 1024
	defaultMaxOutputTokens = 512
)

// DefaultLoadParams are the sampling and windowing parameters used on reload.
var DefaultLoadParams = LoadParams{
	Temperature:       0.2,
	TopP:              0.9,
	ContextWindowSize: -1,
	SlidingWindowSize: 4096,
	AttentionSinkSize: 128,
}

// Config encapsulates all tunables for Session construction.
type Config struct {
	Engine   Engine
	Registry *registry.Registry
	// Prefs stores the preferred model; nil disables persistence.
	Prefs     prefs.Store
	Publisher EventPublisher
	Logger    *zerolog.Logger

	SwitchDebounce  time.Duration
	MaxDocTokens    int
	MaxOutputTokens int
	// LoadParams zero value means DefaultLoadParams.
	LoadParams LoadParams
}
