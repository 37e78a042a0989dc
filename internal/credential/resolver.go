// Package credential answers "what is the current API credential" on demand.
// Absence is a first-class condition, distinct from a store failure, so the
// coordinator can tell the user to configure a key instead of surfacing a raw
// error.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"horse.fit/skim/internal/settings"
)

// ErrNotConfigured reports that no credential has ever been written. It is
// not a failure of the store.
var ErrNotConfigured = errors.New("api key is not configured")

// Resolver reads the credential from the settings store. The credential has
// no default value on purpose.
type Resolver struct {
	store settings.Store
}

func NewResolver(store settings.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the stored credential, ErrNotConfigured when absent or
// blank, or a wrapped store error.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if r == nil || r.store == nil {
		return "", fmt.Errorf("credential resolver is not initialized")
	}

	values, err := r.store.Get(ctx, settings.KeyAPIKey)
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}

	key := strings.TrimSpace(values[settings.KeyAPIKey])
	if key == "" {
		return "", ErrNotConfigured
	}
	return key, nil
}
