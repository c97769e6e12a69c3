package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestInMemoryCache_GetSet verifies that Set stores values and Get retrieves
// them correctly with the expected data.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(time.Minute)

	val := []byte(`{"station_id":"ST-DEL-001"}`)
	if err := c.Set(ctx, "forecast:ST-DEL-001", val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "forecast:ST-DEL-001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if string(got) != string(val) {
		t.Errorf("Get() = %s, want %s", got, val)
	}
}

// TestInMemoryCache_ReturnsCopies verifies that callers cannot mutate stored payloads.
func TestInMemoryCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(0)

	val := []byte("abc")
	_ = c.Set(ctx, "k", val, time.Minute)
	val[0] = 'X'

	got, _, _ := c.Get(ctx, "k")
	got[1] = 'Y'

	again, _, _ := c.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("Get() = %s, want abc", again)
	}
}

// TestInMemoryCache_Get_Miss verifies that Get returns ok=false when
// the requested key does not exist in cache.
func TestInMemoryCache_Get_Miss(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(0)

	got, ok, err := c.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok || got != nil {
		t.Errorf("Get() = (%v, %v), want (nil, false) for miss", got, ok)
	}
}

// TestInMemoryCache_Get_Expired verifies that Get returns ok=false for expired entries.
func TestInMemoryCache_Get_Expired(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(0)

	if err := c.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for expired entry")
	}
}

// TestInMemoryCache_Set_NonPositiveTTL verifies a zero ttl removes the entry.
func TestInMemoryCache_Set_NonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(0)
	_ = c.Set(ctx, "k", []byte("v"), time.Minute)

	_ = c.Set(ctx, "k", []byte("v2"), 0)

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Get() ok = true after zero-ttl Set, want false")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

// TestInMemoryCache_CancelledContext verifies ctx errors are returned.
func TestInMemoryCache_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewInMemoryCache(0)

	if _, _, err := c.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want context.Canceled", err)
	}
	if err := c.Set(ctx, "k", nil, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("Set() error = %v, want context.Canceled", err)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		backend string
		want    string
		wantErr bool
	}{
		{"", "in_memory", false},
		{"in_memory", "in_memory", false},
		{"memcached", "memcached", false},
		{"redis", "redis", false},
		{"dynamo", "", true},
	}
	for _, tt := range tests {
		b, err := Open(Options{Backend: tt.backend, MemcachedAddrs: "localhost:11211"})
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownBackend) {
				t.Errorf("Open(%q) error = %v, want ErrUnknownBackend", tt.backend, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Open(%q) error = %v", tt.backend, err)
		}
		if b.Name() != tt.want {
			t.Errorf("Open(%q).Name() = %q, want %q", tt.backend, b.Name(), tt.want)
		}
		_ = b.Close()
	}
}

func TestParseAddrs(t *testing.T) {
	got := parseAddrs(" a:1 , ,b:2,")
	if len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Errorf("parseAddrs() = %v, want [a:1 b:2]", got)
	}
}

func TestExpirationSeconds(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want int32
	}{
		{5 * time.Minute, 300},
		{0, 3600},
		{-time.Second, 3600},
		{31 * 24 * time.Hour, 3600},
		{500 * time.Millisecond, 3600},
	}
	for _, tt := range tests {
		if got := expirationSeconds(tt.ttl); got != tt.want {
			t.Errorf("expirationSeconds(%v) = %d, want %d", tt.ttl, got, tt.want)
		}
	}
}

func TestMemcachedCache_Key(t *testing.T) {
	c := NewMemcachedCache("", 0, 0)
	if got := c.key("stations:Delhi NCR"); got != "aq:stations:Delhi_NCR" {
		t.Errorf("key() = %q, want aq:stations:Delhi_NCR", got)
	}
}
