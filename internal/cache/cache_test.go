package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newValkey(t *testing.T, srv *miniredis.Miniredis, cfg ValkeyConfig) *ValkeyProvider {
	t.Helper()
	cfg.Addr = srv.Addr()
	p, err := NewValkeyProvider(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestValkeyProviderRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	p := newValkey(t, srv, ValkeyConfig{DB: 2})
	ctx := context.Background()

	if _, err := p.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}
	if err := p.Set(ctx, "k", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := p.Get(ctx, "k")
	if err != nil || string(got) != "v1" {
		t.Fatalf("get = %q, %v", got, err)
	}
	if v, err := srv.DB(2).Get("k"); err != nil || v != "v1" {
		t.Fatalf("value should land in db 2, got %q, %v", v, err)
	}
	ok, err := p.SetNX(ctx, "k", []byte("v2"), time.Minute)
	if err != nil || ok {
		t.Fatalf("setnx on existing key = %v, %v", ok, err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	ok, err = p.SetNX(ctx, "k", []byte("v3"), 0)
	if err != nil || !ok {
		t.Fatalf("setnx on absent key = %v, %v", ok, err)
	}
}

func TestValkeyProviderExpiry(t *testing.T) {
	srv := miniredis.RunT(t)
	p := newValkey(t, srv, ValkeyConfig{})
	ctx := context.Background()

	if err := p.Set(ctx, "report", []byte("x"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	srv.FastForward(2 * time.Minute)
	if _, err := p.Get(ctx, "report"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestValkeyProviderAuth(t *testing.T) {
	srv := miniredis.RunT(t)
	srv.RequireUserAuth("default", "secret")

	if _, err := NewValkeyProvider(context.Background(), ValkeyConfig{Addr: srv.Addr(), Username: "default", Password: "nope"}); err == nil {
		t.Fatalf("expected auth failure")
	}
	p := newValkey(t, srv, ValkeyConfig{Username: "default", Password: "secret"})
	if err := p.Set(context.Background(), "a", []byte("b"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
}

func TestValkeyProviderRequiresAddr(t *testing.T) {
	if _, err := NewValkeyProvider(context.Background(), ValkeyConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestMemoryProviderExpiry(t *testing.T) {
	m := NewMemoryProvider(16, 0)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.Set(ctx, "a", []byte("1"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ok, _ := m.SetNX(ctx, "a", []byte("2"), time.Minute); ok {
		t.Fatalf("setnx should not overwrite a live key")
	}
	got, err := m.Get(ctx, "a")
	if err != nil || string(got) != "1" {
		t.Fatalf("get = %q, %v", got, err)
	}

	now = now.Add(time.Minute)
	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expiry, got %v", err)
	}
	if ok, _ := m.SetNX(ctx, "a", []byte("3"), 0); !ok {
		t.Fatalf("setnx should store after expiry")
	}
	now = now.Add(24 * time.Hour)
	if got, _ := m.Get(ctx, "a"); string(got) != "3" {
		t.Fatalf("zero ttl entry should not expire, got %q", got)
	}
	_ = m.Del(ctx, "a")
	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete")
	}
}

func TestMemoryProviderEvictsLeastRecentlyUsed(t *testing.T) {
	m := NewMemoryProvider(2, 0)
	ctx := context.Background()
	_ = m.Set(ctx, "a", []byte("1"), 0)
	_ = m.Set(ctx, "b", []byte("2"), 0)
	if _, err := m.Get(ctx, "a"); err != nil {
		t.Fatalf("get a: %v", err)
	}
	_ = m.Set(ctx, "c", []byte("3"), 0)

	if _, err := m.Get(ctx, "b"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected b to be evicted, got %v", err)
	}
	if _, err := m.Get(ctx, "a"); err != nil {
		t.Fatalf("recently used entry evicted: %v", err)
	}
}

func TestNoopProvider(t *testing.T) {
	var p Provider = NoopProvider{}
	if _, err := p.Get(context.Background(), "x"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("noop get should miss")
	}
}

func TestTokenRotateSharedAcrossClients(t *testing.T) {
	srv := miniredis.RunT(t)
	a := newValkey(t, srv, ValkeyConfig{})
	b := newValkey(t, srv, ValkeyConfig{})
	ctx := context.Background()

	tok, err := Token(ctx, b, "gen", "0")
	if err != nil || tok != "0" {
		t.Fatalf("unwritten token = %q, %v", tok, err)
	}
	rotated, err := Rotate(ctx, a, "gen")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	tok, err = Token(ctx, b, "gen", "0")
	if err != nil || tok != rotated {
		t.Fatalf("second client sees %q, want %q (%v)", tok, rotated, err)
	}
}

func TestAcquireIsExclusiveUntilReleased(t *testing.T) {
	m := NewMemoryProvider(8, 0)
	ctx := context.Background()

	release, ok, err := Acquire(ctx, m, "lock", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	if _, ok, _ := Acquire(ctx, m, "lock", time.Minute); ok {
		t.Fatalf("lock granted twice")
	}
	release(ctx)
	if _, ok, _ := Acquire(ctx, m, "lock", time.Minute); !ok {
		t.Fatalf("lock not granted after release")
	}
}
