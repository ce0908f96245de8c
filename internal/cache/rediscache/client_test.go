package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	c, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestSetGetDel(t *testing.T) {
	c, _ := newMini(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := c.Set(ctx, "query:v1:x", []byte(`{"type":"FeatureCollection"}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	body, ok, err := c.Get(ctx, "query:v1:x")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(body) != `{"type":"FeatureCollection"}` {
		t.Fatalf("body = %s", body)
	}

	if err := c.Del(ctx, "query:v1:x"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, err := c.Get(ctx, "query:v1:x"); err != nil || ok {
		t.Fatalf("key should be gone: ok=%v err=%v", ok, err)
	}
}

func TestGet_MissIsNotAnError(t *testing.T) {
	c, _ := newMini(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	body, ok, err := c.Get(ctx, "absent")
	if err != nil {
		t.Fatalf("miss must not error: %v", err)
	}
	if ok || body != nil {
		t.Fatalf("miss should report ok=false, got ok=%v body=%q", ok, body)
	}
}

func TestTTL_Expires(t *testing.T) {
	c, mr := newMini(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := c.Set(ctx, "k", []byte("v"), 30*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(31 * time.Second)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("key should have expired")
	}
}

func TestNew_RequiresAddr(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty address")
	}
}

func TestContextCancellation(t *testing.T) {
	c, _ := newMini(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, _, err := c.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error on Get with canceled context")
	}
}
