package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Provider stores opaque report payloads keyed by string.
type Provider interface {
	// Get returns ErrCacheMiss when key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; a non-positive ttl keeps it until evicted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// NoopProvider never stores anything. Every lock is granted.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Close() error { return nil }

// Token reads the marker stored at key, returning fallback when it was never written.
func Token(ctx context.Context, p Provider, key, fallback string) (string, error) {
	data, err := p.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("read token %s: %w", key, err)
	}
	return string(data), nil
}

// Rotate writes a fresh random marker at key. Readers sharing the provider
// observe the new value on their next Token call.
func Rotate(ctx context.Context, p Provider, key string) (string, error) {
	token := uuid.NewString()
	if err := p.Set(ctx, key, []byte(token), 0); err != nil {
		return "", fmt.Errorf("rotate token %s: %w", key, err)
	}
	return token, nil
}

// Acquire takes a lock at key that expires after ttl. The returned release
// func deletes it and is a no-op when the lock was not acquired.
func Acquire(ctx context.Context, p Provider, key string, ttl time.Duration) (func(context.Context), bool, error) {
	ok, err := p.SetNX(ctx, key, []byte(uuid.NewString()), ttl)
	if err != nil || !ok {
		return func(context.Context) {}, false, err
	}
	return func(ctx context.Context) { _ = p.Del(ctx, key) }, true, nil
}
