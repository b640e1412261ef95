package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisRequestAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

// RequestRateLimiter limita requests por cliente en la ventana configurada.
type RequestRateLimiter interface {
	Allow(key string) bool
}

type redisRequestRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

func NewRedisRequestRateLimiter(client *redis.Client, window time.Duration, max int) RequestRateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisRequestRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "req:rl:",
	}
}

// Allow incrementa el contador de la clave y compara contra el máximo.
// Fail-open: si redis no responde, el request pasa.
func (l *redisRequestRateLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	normalizedKey := strings.ToLower(strings.TrimSpace(key))
	if normalizedKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	redisKey := l.prefix + normalizedKey
	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}

	res, err := l.client.Eval(ctx, redisRequestAllowScript, []string{redisKey}, seconds).Result()
	if err != nil {
		return true
	}
	count, ok := res.(int64)
	if !ok {
		return true
	}
	return count <= int64(l.max)
}
