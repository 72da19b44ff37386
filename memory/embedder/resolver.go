// Package embedder provides the two-step embedding resolver: try the
// primary embedder, fall back to the secondary, surfacing a typed
// error only when both fail. Each provider gets one retry with a
// short backoff.
package embedder

import (
	"context"
	"log"
	"time"

	"github.com/embermind/recall/core"
	"github.com/embermind/recall/memory"
)

// Resolver resolves embeddings through a primary and an optional
// secondary provider. It implements memory.Embedder itself.
type Resolver struct {
	primary    memory.Embedder
	secondary  memory.Embedder
	retryDelay time.Duration
}

// Option configures the resolver.
type Option func(*Resolver)

// WithSecondary sets the fallback embedder.
func WithSecondary(e memory.Embedder) Option {
	return func(r *Resolver) { r.secondary = e }
}

// WithRetryDelay sets the delay before the single retry per provider.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Resolver) { r.retryDelay = d }
}

// NewResolver creates a resolver over the primary embedder.
func NewResolver(primary memory.Embedder, opts ...Option) *Resolver {
	r := &Resolver{
		primary:    primary,
		retryDelay: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Embed tries the primary (with one retry), then the secondary (with
// one retry), and returns an ExternalServiceError when every attempt
// fails.
func (r *Resolver) Embed(ctx context.Context, text string) ([]float32, error) {
	attempts := 0

	vec, err := r.tryProvider(ctx, r.primary, text, &attempts)
	if err == nil {
		return vec, nil
	}
	lastErr := err

	if r.secondary != nil {
		log.Printf("[EMBED] primary failed, trying secondary: %v", err)
		vec, err = r.tryProvider(ctx, r.secondary, text, &attempts)
		if err == nil {
			return vec, nil
		}
		lastErr = err
	}

	return nil, &core.ExternalServiceError{
		Service:  "embedder",
		Attempts: attempts,
		Err:      lastErr,
	}
}

// Dimensions returns the primary embedder's vector size.
func (r *Resolver) Dimensions() int {
	return r.primary.Dimensions()
}

// tryProvider runs one embed call plus a single backoff retry.
func (r *Resolver) tryProvider(ctx context.Context, e memory.Embedder, text string, attempts *int) ([]float32, error) {
	*attempts++
	vec, err := e.Embed(ctx, text)
	if err == nil {
		return vec, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(r.retryDelay):
	}

	*attempts++
	return e.Embed(ctx, text)
}
