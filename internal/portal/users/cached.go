package users

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"finitefield.org/portal/internal/portal/cache"
)

const cacheKeyPrefix = "user:"

// CachedService wraps a Service with a read-through query cache. Successful
// updates invalidate the cached entry so the next read refetches. A read that
// overlaps an invalidation of the same key does not populate the cache.
type CachedService struct {
	inner  Service
	store  cache.Store
	ttl    time.Duration
	logger *zap.Logger

	// mu orders cache fills against invalidations; generations counts
	// invalidations per key.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewCachedService wraps inner with store. A nil store uses an in-memory cache.
func NewCachedService(inner Service, store cache.Store, ttl time.Duration, logger *zap.Logger) *CachedService {
	if store == nil {
		store = cache.NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedService{
		inner:       inner,
		store:       store,
		ttl:         ttl,
		logger:      logger,
		generations: make(map[string]uint64),
	}
}

// CacheKey returns the cache key used for the user.
func CacheKey(id string) string {
	return cacheKeyPrefix + id
}

func (s *CachedService) GetUser(ctx context.Context, id string) (*User, error) {
	key := CacheKey(id)
	data, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		var u User
		if decodeErr := json.Unmarshal(data, &u); decodeErr == nil {
			return &u, nil
		}
		s.logger.Warn("discarding undecodable cached user", zap.String("key", key))
	case !errors.Is(err, cache.ErrMiss):
		s.logger.Warn("user cache read failed", zap.String("key", key), zap.Error(err))
	}

	generation := s.generation(key)
	user, err := s.inner.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, key, generation, user)
	return user, nil
}

func (s *CachedService) generation(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[key]
}

// fill stores user unless key was invalidated after generation was read.
func (s *CachedService) fill(ctx context.Context, key string, generation uint64, user *User) {
	encoded, err := json.Marshal(user)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[key] != generation {
		s.logger.Debug("skipping stale user cache fill", zap.String("key", key))
		return
	}
	if err := s.store.Set(ctx, key, encoded, s.ttl); err != nil {
		s.logger.Warn("user cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *CachedService) UpdateUser(ctx context.Context, req UpdateRequest) (*User, error) {
	user, err := s.inner.UpdateUser(ctx, req)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, user.ID)
	return user, nil
}

// Provision delegates to the wrapped service when it supports provisioning.
func (s *CachedService) Provision(ctx context.Context, user User) (*User, error) {
	p, ok := s.inner.(Provisioner)
	if !ok {
		return &user, nil
	}
	stored, err := p.Provision(ctx, user)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, user.ID)
	return stored, nil
}

// Invalidate drops the cached entry for id and discards fills from reads
// that started before it.
func (s *CachedService) Invalidate(ctx context.Context, id string) {
	key := CacheKey(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[key]++
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("user cache invalidation failed", zap.String("id", id), zap.Error(err))
	}
}
