package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/embermind/recall/storage"
)

func newTestCache(t *testing.T, capacity int, backend storage.Backend) *Cache[[]float32] {
	t.Helper()
	c, err := NewVectorCache(capacity, backend)
	if err != nil {
		t.Fatalf("NewVectorCache failed: %v", err)
	}
	return c
}

func TestKeyNormalization(t *testing.T) {
	if Key("  Hello World ") != Key("hello world") {
		t.Error("normalized inputs must produce the same key")
	}
	if Key("hello") == Key("world") {
		t.Error("distinct inputs must produce distinct keys")
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 4, nil)

	vec := []float32{0.25, -1.5, 3}
	c.Put(ctx, "some text", vec)

	got, ok := c.Get(ctx, "some text")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("round-trip mismatch at %d: %v != %v", i, got[i], vec[i])
		}
	}
}

func TestGetOrCompute_ComputesAtMostOnce(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 4, nil)

	calls := 0
	compute := func(context.Context) ([]float32, error) {
		calls++
		return []float32{1, 2}, nil
	}

	if _, err := c.GetOrCompute(ctx, "Query Text", compute); err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}
	// Same normalized input, different surface form.
	if _, err := c.GetOrCompute(ctx, "  query text ", compute); err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}

	if calls != 1 {
		t.Errorf("expected compute to run once, ran %d times", calls)
	}
}

func TestLRUEviction(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 3, nil)

	c.Put(ctx, "a", []float32{1})
	c.Put(ctx, "b", []float32{2})
	c.Put(ctx, "c", []float32{3})

	// Touch "a" so "b" becomes least recently used.
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Fatal("expected a to be cached")
	}

	c.Put(ctx, "d", []float32{4})

	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("expected b (least recently used) to be evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := c.Get(ctx, key); !ok {
			t.Errorf("expected %s to survive eviction", key)
		}
	}

	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("expected exactly 1 eviction, got %d", got)
	}
}

func TestDurableTierFallback(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemBackend()

	c1 := newTestCache(t, 4, backend)
	c1.Put(ctx, "persisted", []float32{7, 8})

	// Fresh fast tier, same backend: simulates a process restart.
	c2 := newTestCache(t, 4, backend)
	got, ok := c2.Get(ctx, "persisted")
	if !ok {
		t.Fatal("expected durable-tier hit after restart")
	}
	if got[0] != 7 || got[1] != 8 {
		t.Errorf("unexpected value from durable tier: %v", got)
	}
}

func TestGetOrComputeBatch(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 8, nil)

	c.Put(ctx, "b", []float32{2})

	var missed []string
	vals, err := c.GetOrComputeBatch(ctx, []string{"a", "b", "c"}, func(_ context.Context, missing []string) ([][]float32, error) {
		missed = append(missed, missing...)
		out := make([][]float32, len(missing))
		for i := range missing {
			out[i] = []float32{float32(len(missing[i]))}
		}
		return out, nil
	})
	if err != nil {
		t.Fatalf("GetOrComputeBatch failed: %v", err)
	}

	if len(vals) != 3 {
		t.Fatalf("expected 3 values, got %d", len(vals))
	}
	if len(missed) != 2 || missed[0] != "a" || missed[1] != "c" {
		t.Errorf("compute should only see both-tier misses, saw %v", missed)
	}
	if vals[1][0] != 2 {
		t.Errorf("cached value lost its position in batch output: %v", vals[1])
	}

	// All inputs now cached: compute must not run again.
	_, err = c.GetOrComputeBatch(ctx, []string{"a", "b", "c"}, func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("should not be called")
	})
	if err != nil {
		t.Errorf("second batch should be fully cached: %v", err)
	}
}

func TestVectorCodecRoundTrip(t *testing.T) {
	vec := []float32{0, -0.5, 1e7, 3.14159}
	data, err := EncodeVector(vec)
	if err != nil {
		t.Fatalf("EncodeVector failed: %v", err)
	}
	got, err := DecodeVector(data)
	if err != nil {
		t.Fatalf("DecodeVector failed: %v", err)
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("codec mismatch at %d: %v != %v", i, got[i], vec[i])
		}
	}

	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated payload")
	}
}
