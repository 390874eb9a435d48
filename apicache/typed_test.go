package apicache

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type healthReport struct {
	Status string   `json:"status"`
	Tools  []string `json:"tools"`
}

func TestFetch_Typed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	calls := 0
	fn := func(context.Context) (healthReport, error) {
		calls++
		return healthReport{Status: "healthy", Tools: []string{"nmap", "gobuster"}}, nil
	}

	first, err := Fetch(ctx, f.client, "api:health:x", fn)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	second, err := Fetch(ctx, f.client, "api:health:x", fn)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached value mismatch (-first +second):\n%s", diff)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestFetch_UndecodableCachedValueIsDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.cache.Set(ctx, "k", []byte("not json"))

	_, err := Fetch(ctx, f.client, "k", func(context.Context) (healthReport, error) {
		return healthReport{}, nil
	})
	if err == nil {
		t.Fatal("Fetch() should fail to decode")
	}
	if f.cache.Has(ctx, "k") {
		t.Error("undecodable value should be removed")
	}
}

func TestFetchEndpoint_Tags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := FetchEndpoint(ctx, f.client, "telemetry", "api:telemetry:x", func(context.Context) (map[string]int, error) {
		return map[string]int{"cpu": 3}, nil
	})
	if err != nil {
		t.Fatalf("FetchEndpoint() error = %v", err)
	}
	if n := f.client.InvalidateEndpoint(ctx, "telemetry"); n != 1 {
		t.Errorf("InvalidateEndpoint() = %d, want 1", n)
	}
}

func TestFetch_NilFunc(t *testing.T) {
	f := newFixture(t)
	_, err := Fetch[healthReport](context.Background(), f.client, "api:health:x", nil)
	if !errors.Is(err, ErrNilFetch) {
		t.Errorf("Fetch(nil) error = %v, want ErrNilFetch", err)
	}
}
