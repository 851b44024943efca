package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()

	srv := miniredis.RunT(t)

	c := New(Config{Addr: srv.Addr(), TTL: time.Minute})

	if c == nil {
		t.Fatal("New() returned nil for a configured address")
	}

	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Title string `json:"title"`
		Year  int    `json:"year"`
	}

	var got payload

	if c.Get(ctx, KeyBooksList, &got) {
		t.Fatal("Get() hit on an empty cache")
	}

	c.Set(ctx, KeyBooksList, payload{Title: "Dune", Year: 1965})

	if !c.Get(ctx, KeyBooksList, &got) {
		t.Fatal("Get() missed after Set()")
	}

	if got.Title != "Dune" || got.Year != 1965 {
		t.Fatalf("got = %+v, want the stored payload", got)
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, KeyBooksList, []string{"a"})
	c.Set(ctx, KeyBooksBest, []string{"b"})

	c.Invalidate(ctx, KeyBooksList, KeyBooksBest)

	var out []string

	if c.Get(ctx, KeyBooksList, &out) || c.Get(ctx, KeyBooksBest, &out) {
		t.Fatal("keys survived Invalidate()")
	}
}

func TestCacheCorruptEntryIsAMiss(t *testing.T) {
	srv := miniredis.RunT(t)

	c := New(Config{Addr: srv.Addr(), TTL: time.Minute})

	t.Cleanup(func() { _ = c.Close() })

	if err := srv.Set(KeyBooksList, "{not json"); err != nil {
		t.Fatalf("seed corrupt value: %v", err)
	}

	var out []string

	if c.Get(context.Background(), KeyBooksList, &out) {
		t.Fatal("Get() reported a hit for an undecodable value")
	}
}

func TestNilCacheIsNoOp(t *testing.T) {
	var c *Cache

	ctx := context.Background()

	var out []string

	if c.Get(ctx, KeyBooksList, &out) {
		t.Fatal("nil cache reported a hit")
	}

	// none of these may panic
	c.Set(ctx, KeyBooksList, []string{"a"})
	c.Invalidate(ctx, KeyBooksList)

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping() on nil cache error = %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() on nil cache error = %v", err)
	}
}

func TestNewWithoutAddrDisablesCache(t *testing.T) {
	if c := New(Config{}); c != nil {
		t.Fatal("New() without an address should return the nil no-op cache")
	}
}
