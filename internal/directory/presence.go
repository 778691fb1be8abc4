package directory

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence tracks which users hold a live connection. The inbox websocket
// drives it: register on connect, refresh periodically while the stream is
// open, drop on disconnect.
type Presence interface {
	SetOnline(userID string)
	Refresh(userID string)
	SetOffline(userID string)
	IsOnline(userID string) bool
}

// MemoryPresence is the single-instance implementation, also used in tests.
type MemoryPresence struct {
	mu     sync.RWMutex
	online map[string]int
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{online: map[string]int{}}
}

// SetOnline counts connections, so one of several sockets closing does not
// mark the user away.
func (p *MemoryPresence) SetOnline(userID string) {
	p.mu.Lock()
	p.online[userID]++
	p.mu.Unlock()
}

// Refresh is a no-op: connection counts do not decay.
func (p *MemoryPresence) Refresh(string) {}

func (p *MemoryPresence) SetOffline(userID string) {
	p.mu.Lock()
	if n := p.online[userID]; n <= 1 {
		delete(p.online, userID)
	} else {
		p.online[userID] = n - 1
	}
	p.mu.Unlock()
}

func (p *MemoryPresence) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online[userID] > 0
}

// RedisPresence shares presence across instances through keys with a TTL;
// a crashed instance's users fall offline when their keys expire.
type RedisPresence struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisPresence(rdb *redis.Client, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisPresence{rdb: rdb, ttl: ttl}
}

func presenceKey(userID string) string {
	return "presence:" + userID
}

func (p *RedisPresence) SetOnline(userID string) {
	p.rdb.Set(context.Background(), presenceKey(userID), "1", p.ttl)
}

// Refresh extends the TTL so the key outlives long-held connections.
func (p *RedisPresence) Refresh(userID string) {
	p.rdb.Expire(context.Background(), presenceKey(userID), p.ttl)
}

func (p *RedisPresence) SetOffline(userID string) {
	p.rdb.Del(context.Background(), presenceKey(userID))
}

func (p *RedisPresence) IsOnline(userID string) bool {
	n, err := p.rdb.Exists(context.Background(), presenceKey(userID)).Result()
	return err == nil && n > 0
}
