// Package registry holds the set of models the inference session may load.
package registry

import (
	"fmt"

	"libreplexity/pkg/types"
)

// Built-in models used when nothing is configured.
var Builtin = []types.ModelSpec{
	{ID: "Qwen2-1.5B-Instruct-q4f16_1-MLC", SizeClass: types.SizeSmall, Name: "Qwen2 1.5B Instruct"},
	{ID: "Llama-3.1-8B-Instruct-q4f16_1-MLC", SizeClass: types.SizeLarge, Name: "Llama 3.1 8B Instruct"},
}

// Registry is an immutable, ordered model list.
type Registry struct {
	models []types.ModelSpec
	def    string
}

// New validates models and returns a Registry. defaultID may be empty.
func New(models []types.ModelSpec, defaultID string) (*Registry, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("registry: no models configured")
	}
	seen := make(map[string]struct{}, len(models))
	out := make([]types.ModelSpec, 0, len(models))
	for _, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("registry: model with empty id")
		}
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate model id %q", m.ID)
		}
		seen[m.ID] = struct{}{}
		switch m.SizeClass {
		case "":
			m.SizeClass = types.SizeSmall
		case types.SizeSmall, types.SizeLarge:
		default:
			return nil, fmt.Errorf("registry: model %q: unknown size class %q", m.ID, m.SizeClass)
		}
		if m.Name == "" {
			m.Name = m.ID
		}
		out = append(out, m)
	}
	if defaultID != "" {
		if _, ok := seen[defaultID]; !ok {
			return nil, fmt.Errorf("registry: default model %q not in registry", defaultID)
		}
	}
	return &Registry{models: out, def: defaultID}, nil
}

// Models returns a copy of the model list.
func (r *Registry) Models() []types.ModelSpec {
	out := make([]types.ModelSpec, len(r.models))
	copy(out, r.models)
	return out
}

func (r *Registry) Lookup(id string) (types.ModelSpec, bool) {
	for _, m := range r.models {
		if m.ID == id {
			return m, true
		}
	}
	return types.ModelSpec{}, false
}

// BySize returns the first model of the given size class.
func (r *Registry) BySize(size types.SizeClass) (types.ModelSpec, bool) {
	for _, m := range r.models {
		if m.SizeClass == size {
			return m, true
		}
	}
	return types.ModelSpec{}, false
}

// Default is the configured default, else the first small model, else the first model.
func (r *Registry) Default() types.ModelSpec {
	if m, ok := r.Lookup(r.def); ok {
		return m
	}
	if m, ok := r.BySize(types.SizeSmall); ok {
		return m
	}
	return r.models[0]
}
