// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// GetTestRedisOptions returns options for an external test Redis, taken from
// REDIS_TEST_ADDR or localhost. Tests use DB 1 to stay clear of dev data.
func GetTestRedisOptions() *redis.Options {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	return &redis.Options{Addr: addr, DB: 1}
}

// NewTestRedis returns a client for an external Redis when REDIS_TEST_ADDR is
// set, flushing its test DB on cleanup, and an in-memory one otherwise. The
// test is skipped when the external server does not answer.
func NewTestRedis(t testing.TB) *redis.Client {
	t.Helper()
	if os.Getenv("REDIS_TEST_ADDR") == "" {
		client, _ := NewMiniRedis(t)
		return client
	}

	client := redis.NewClient(GetTestRedisOptions())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("external test redis unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

// NewMiniRedis starts an in-memory Redis for the duration of t and returns
// a client bound to it.
func NewMiniRedis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, s
}
