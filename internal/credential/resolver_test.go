package credential

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"horse.fit/skim/internal/settings"
)

type failingStore struct{}

func (failingStore) Get(context.Context, ...string) (settings.Values, error) {
	return nil, fmt.Errorf("connection refused")
}

func (failingStore) Set(context.Context, settings.Values) error {
	return fmt.Errorf("connection refused")
}

func TestResolve_NotConfigured(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(settings.NewMemoryStore())

	_, err := resolver.Resolve(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestResolve_BlankValueCountsAsAbsent(t *testing.T) {
	t.Parallel()

	store := settings.NewMemoryStore()
	if err := store.Set(context.Background(), settings.Values{settings.KeyAPIKey: "  "}); err != nil {
		t.Fatalf("set: %v", err)
	}

	_, err := NewResolver(store).Resolve(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestResolve_ReturnsLastWrittenValue(t *testing.T) {
	t.Parallel()

	store := settings.NewMemoryStore()
	ctx := context.Background()
	for _, key := range []string{"first", "second"} {
		if err := store.Set(ctx, settings.Values{settings.KeyAPIKey: key}); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	key, err := NewResolver(store).Resolve(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if key != "second" {
		t.Fatalf("expected last written value, got %q", key)
	}
}

func TestResolve_StoreFailureIsNotNotConfigured(t *testing.T) {
	t.Parallel()

	_, err := NewResolver(failingStore{}).Resolve(context.Background())
	if err == nil {
		t.Fatalf("expected an error")
	}
	if errors.Is(err, ErrNotConfigured) {
		t.Fatalf("store failure must stay distinct from the not-configured outcome")
	}
}
