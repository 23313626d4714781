// Package sessions keeps short-lived staging state per user in a TTL cache.
package sessions

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/common"
	"github.com/FACorreiaa/wealth-tracker/pkg/observability"
)

const DefaultTTL = 30 * time.Minute

// NewCache creates the shared session cache. Evictions, explicit or by
// expiry, decrement the live-session gauge of the entry's kind.
func NewCache(ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := cache.New(ttl, 2*ttl)
	c.OnEvicted(func(key string, _ interface{}) {
		observability.StagingSessions.WithLabelValues(kindOf(key)).Dec()
	})
	return c
}

func kindOf(key string) string {
	kind, _, _ := strings.Cut(key, ":")
	return kind
}

// Store is a typed view over the cache for one kind of session. Keys carry
// the owner, so a session is invisible to other users.
type Store[T any] struct {
	cache *cache.Cache
	kind  string
}

func NewStore[T any](c *cache.Cache, kind string) *Store[T] {
	return &Store[T]{cache: c, kind: kind}
}

func (s *Store[T]) key(userID, id uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", s.kind, userID, id)
}

// Create stores v under a fresh session id.
func (s *Store[T]) Create(userID uuid.UUID, v T) (uuid.UUID, error) {
	id := uuid.New()
	if err := s.cache.Add(s.key(userID, id), v, cache.DefaultExpiration); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create %s session: %w", s.kind, err)
	}
	observability.StagingSessions.WithLabelValues(s.kind).Inc()
	return id, nil
}

// Get returns the session and refreshes its expiry.
func (s *Store[T]) Get(userID, id uuid.UUID) (T, error) {
	var zero T
	key := s.key(userID, id)
	v, ok := s.cache.Get(key)
	if !ok {
		return zero, common.ErrSessionExpired
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%s session has unexpected type %T", s.kind, v)
	}
	if err := s.cache.Replace(key, typed, cache.DefaultExpiration); err != nil {
		return zero, common.ErrSessionExpired
	}
	return typed, nil
}

// Delete drops a session. It reports ErrSessionExpired when nothing was stored.
func (s *Store[T]) Delete(userID, id uuid.UUID) error {
	key := s.key(userID, id)
	if _, ok := s.cache.Get(key); !ok {
		return common.ErrSessionExpired
	}
	s.cache.Delete(key)
	return nil
}
