// Package cart keeps each shopper's pending product quantities.
package cart

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store holds product id -> quantity per owner. No durability is promised.
type Store interface {
	Get(ctx context.Context, owner uint) (map[uint]int, error)
	Set(ctx context.Context, owner, productID uint, qty int) error
	Add(ctx context.Context, owner, productID uint, delta int) (int, error)
	Remove(ctx context.Context, owner, productID uint) error
	Clear(ctx context.Context, owner uint) error
}

// RedisStore keeps one hash per owner and refreshes its TTL on every write.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func cartKey(owner uint) string {
	return fmt.Sprintf("cart:%d", owner)
}

func (s *RedisStore) Get(ctx context.Context, owner uint) (map[uint]int, error) {
	raw, err := s.client.HGetAll(ctx, cartKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	items := make(map[uint]int, len(raw))
	for field, value := range raw {
		id, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(value)
		if err != nil || qty <= 0 {
			continue
		}
		items[uint(id)] = qty
	}
	return items, nil
}

func (s *RedisStore) Set(ctx context.Context, owner, productID uint, qty int) error {
	if qty <= 0 {
		return s.Remove(ctx, owner, productID)
	}
	key := cartKey(owner)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, strconv.FormatUint(uint64(productID), 10), qty)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Add(ctx context.Context, owner, productID uint, delta int) (int, error) {
	key := cartKey(owner)
	field := strconv.FormatUint(uint64(productID), 10)
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.HIncrBy(ctx, key, field, int64(delta))
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write cart: %w", err)
	}
	qty := int(incr.Val())
	if qty <= 0 {
		return 0, s.Remove(ctx, owner, productID)
	}
	return qty, nil
}

func (s *RedisStore) Remove(ctx context.Context, owner, productID uint) error {
	if err := s.client.HDel(ctx, cartKey(owner), strconv.FormatUint(uint64(productID), 10)).Err(); err != nil {
		return fmt.Errorf("failed to write cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, owner uint) error {
	if err := s.client.Del(ctx, cartKey(owner)).Err(); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// MemoryStore is a process-local Store for single-instance runs and tests.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[uint]map[uint]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[uint]map[uint]int)}
}

func (s *MemoryStore) Get(_ context.Context, owner uint) (map[uint]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make(map[uint]int, len(s.carts[owner]))
	for id, qty := range s.carts[owner] {
		items[id] = qty
	}
	return items, nil
}

func (s *MemoryStore) Set(_ context.Context, owner, productID uint, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(owner, productID, qty)
	return nil
}

func (s *MemoryStore) setLocked(owner, productID uint, qty int) {
	if qty <= 0 {
		delete(s.carts[owner], productID)
		return
	}
	if s.carts[owner] == nil {
		s.carts[owner] = make(map[uint]int)
	}
	s.carts[owner][productID] = qty
}

func (s *MemoryStore) Add(_ context.Context, owner, productID uint, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qty := s.carts[owner][productID] + delta
	s.setLocked(owner, productID, qty)
	if qty < 0 {
		qty = 0
	}
	return qty, nil
}

func (s *MemoryStore) Remove(_ context.Context, owner, productID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts[owner], productID)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, owner uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, owner)
	return nil
}
