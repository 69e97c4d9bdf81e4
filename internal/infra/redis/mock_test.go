//go:build !integration

package redis

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// memRedis is an in-memory RedisClient. Eval understands the scripts this
// package ships, keyed by script hash.
type memRedis struct {
	mu      sync.Mutex
	data    map[string]string
	expires map[string]time.Time
	setNXOK bool
	err     error
}

var _ RedisClient = (*memRedis)(nil)

func newMemRedis() *memRedis {
	return &memRedis{data: map[string]string{}, expires: map[string]time.Time{}}
}

func (m *memRedis) Ping(ctx context.Context) error { return m.err }

func (m *memRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = toString(value)
	return m.err
}

func (m *memRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = toString(value)
	return true, nil
}

func (m *memRedis) Get(ctx context.Context, key string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memRedis) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return n, m.err
}

func (m *memRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[key] = time.Now().Add(expiration)
	return m.err
}

func (m *memRedis) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return m.err
}

func (m *memRedis) Eval(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch script.Hash() {
	case luaIncrementIfBelow.Hash():
		limit, _ := strconv.ParseInt(toString(args[0]), 10, 64)
		n, _ := strconv.ParseInt(m.data[keys[0]], 10, 64)
		if n >= limit {
			return []interface{}{n, int64(0)}, nil
		}
		n++
		m.data[keys[0]] = strconv.FormatInt(n, 10)
		if n == 1 {
			at, _ := strconv.ParseInt(toString(args[1]), 10, 64)
			m.expires[keys[0]] = time.Unix(at, 0)
		}
		return []interface{}{n, int64(1)}, nil
	case luaUnlock.Hash():
		if m.data[keys[0]] == toString(args[0]) {
			delete(m.data, keys[0])
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, redis.Nil
}

func (m *memRedis) Close() error { return nil }

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}
