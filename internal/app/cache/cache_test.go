package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

type profile struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func exercise(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()
	key := "profile:" + uuid.NewString()

	var got profile
	found, err := c.Get(ctx, key, &got)
	if err != nil || found {
		t.Fatalf("get on empty cache: found=%v err=%v", found, err)
	}

	want := profile{Username: "seller01", Email: "seller@example.com"}
	if err := c.Set(ctx, key, want, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	found, err = c.Get(ctx, key, &got)
	if err != nil || !found {
		t.Fatalf("get after set: found=%v err=%v", found, err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	found, _ = c.Get(ctx, key, &got)
	if found {
		t.Fatal("entry still present after delete")
	}
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	if err := m.Set(ctx, "k", "v", time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Set(ctx, "forever", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	now = now.Add(2 * time.Second)
	var s string
	if found, _ := m.Get(ctx, "k", &s); found {
		t.Fatal("expired entry returned")
	}
	if found, _ := m.Get(ctx, "forever", &s); !found || s != "v" {
		t.Fatalf("zero-ttl entry missing: found=%v value=%q", found, s)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after lazy expiry", m.Len())
	}
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	_ = c.Set(context.Background(), "k", 1, 0)
	var v int
	if found, _ := c.Get(context.Background(), "k", &v); found {
		t.Fatal("nop cache returned a value")
	}
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	r, err := NewRedis(context.Background(), RedisConfig{Addr: addr, Prefix: "escrowctl-test:"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer r.Close()
	exercise(t, r)
}
