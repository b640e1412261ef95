package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisEvaler struct {
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	result     int64
	err        error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal(m.result)
	return cmd
}

func TestRedisRequestRateLimiterAllow(t *testing.T) {
	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisRequestRateLimiter
		if !l.Allow("10.0.0.1") {
			t.Fatalf("expected fail-open for nil limiter")
		}
	})

	t.Run("empty key rejected", func(t *testing.T) {
		l := &redisRequestRateLimiter{
			client: &mockRedisEvaler{result: 1},
			window: time.Minute,
			max:    30,
			prefix: "req:rl:",
		}
		if l.Allow("   ") {
			t.Fatalf("expected empty key to be rejected")
		}
	})

	t.Run("allow within max", func(t *testing.T) {
		mock := &mockRedisEvaler{result: 30}
		l := &redisRequestRateLimiter{
			client: mock,
			window: time.Minute,
			max:    30,
			prefix: "req:rl:",
		}
		if !l.Allow("10.0.0.1") {
			t.Fatalf("expected allow at max count")
		}
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "req:rl:10.0.0.1" {
			t.Fatalf("unexpected key %v", mock.lastKeys)
		}
	})

	t.Run("deny over max", func(t *testing.T) {
		l := &redisRequestRateLimiter{
			client: &mockRedisEvaler{result: 31},
			window: time.Minute,
			max:    30,
			prefix: "req:rl:",
		}
		if l.Allow("10.0.0.1") {
			t.Fatalf("expected deny over max")
		}
	})

	t.Run("redis error fail-open", func(t *testing.T) {
		l := &redisRequestRateLimiter{
			client: &mockRedisEvaler{err: errors.New("redis down")},
			window: time.Minute,
			max:    30,
			prefix: "req:rl:",
		}
		if !l.Allow("10.0.0.1") {
			t.Fatalf("expected fail-open on redis error")
		}
	})
}
