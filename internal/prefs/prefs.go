// Package prefs persists small user preferences such as the preferred model.
package prefs

import (
	"context"
	"errors"
)

// ModelKey is the key under which the preferred model id is stored.
const ModelKey = "libreplexity:model"

// ErrNotFound is returned when a key has never been set.
var ErrNotFound = errors.New("prefs: key not found")

// Store is a string key/value preference store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// LoadModel returns the stored preferred model id.
func LoadModel(ctx context.Context, s Store) (string, error) {
	return s.Get(ctx, ModelKey)
}

// SaveModel records id as the preferred model.
func SaveModel(ctx context.Context, s Store, id string) error {
	return s.Set(ctx, ModelKey, id)
}
