//go:build integration
// +build integration

// Package testhelpers resolves backend addresses for integration tests.
// Tests skip themselves when a backend is unreachable, so the suite can run
// against any subset of memcached, redis and kafka.
package testhelpers

import (
	"context"
	"net"
	"os"
	"strings"
	"testing"
	"time"
)

// MemcachedAddr returns MEMCACHED_ADDRS or localhost:11211.
func MemcachedAddr() string {
	return envOr("MEMCACHED_ADDRS", "localhost:11211")
}

// RedisAddr returns REDIS_ADDR or localhost:6379.
func RedisAddr() string {
	return envOr("REDIS_ADDR", "localhost:6379")
}

// KafkaBrokers returns KAFKA_BROKERS split on commas, or localhost:9092.
func KafkaBrokers() []string {
	var out []string
	for _, b := range strings.Split(envOr("KAFKA_BROKERS", "localhost:9092"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// RequireTCP skips t unless addr accepts a TCP connection within 500ms.
func RequireTCP(t *testing.T, addr string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		t.Skipf("%s not reachable, skipping integration test: %v", addr, err)
	}
	_ = conn.Close()
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
