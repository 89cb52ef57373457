package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestMemory_GetSetExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.Set(ctx, "k", []company{{ID: 1, Name: "Acme"}}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got []company
	hit, err := m.Get(ctx, "k", &got)
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if len(got) != 1 || got[0].Name != "Acme" {
		t.Errorf("unexpected value %+v", got)
	}

	now = now.Add(time.Minute)
	hit, _ = m.Get(ctx, "k", &got)
	if hit {
		t.Error("expected entry to expire")
	}
}

func TestCatalogKey(t *testing.T) {
	if got := CatalogKey("optical.coating", 0); got != "catalog:optical.coating:0" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestThrough_LoadsOnceThenServesCache(t *testing.T) {
	c := NewMemory()
	calls := 0
	load := func(context.Context) ([]company, error) {
		calls++
		return []company{{ID: 2, Name: "Beta"}}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Through(context.Background(), c, zerolog.Nop(), "catalog:x:10", time.Minute, load)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].ID != 2 {
			t.Fatalf("unexpected value %+v", got)
		}
	}
	if calls != 1 {
		t.Errorf("expected one backend load, got %d", calls)
	}
}

func TestThrough_DoesNotCacheErrors(t *testing.T) {
	c := NewMemory()
	boom := errors.New("backend down")
	_, err := Through(context.Background(), c, zerolog.Nop(), "k", time.Minute, func(context.Context) ([]company, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}

	var out []company
	if hit, _ := c.Get(context.Background(), "k", &out); hit {
		t.Error("failed load must not be cached")
	}
}

type brokenCache struct{ Nop }

func (brokenCache) Get(context.Context, string, any) (bool, error) {
	return false, errors.New("connection reset")
}

func (brokenCache) Set(context.Context, string, any, time.Duration) error {
	return errors.New("connection reset")
}

func TestThrough_CacheFailureFallsBackToLoad(t *testing.T) {
	got, err := Through(context.Background(), brokenCache{}, zerolog.Nop(), "k", time.Minute, func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("cache failure must not surface, got %v", err)
	}
	if got != 42 {
		t.Errorf("expected loaded value, got %d", got)
	}
}
