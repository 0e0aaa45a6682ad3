package guard

import (
	"sync"
	"time"

	"github.com/rainycape/memcache"
	"github.com/sprucehealth/payflow/libs/clock"
	"github.com/sprucehealth/payflow/libs/errors"
)

// UsedNonceStore tracks consumed nonces until their blacklist entry
// expires.
type UsedNonceStore interface {
	// IsUsed reports whether key has already been consumed.
	IsUsed(key string) (bool, error)
	// MarkUsed records key as consumed for ttl. It returns false if key
	// was already recorded, which makes the consume step atomic under
	// concurrent requests carrying the same nonce.
	MarkUsed(key string, ttl time.Duration) (bool, error)
}

type memcacheNonceStore struct {
	cli *memcache.Client
}

// NewMemcacheNonceStore returns a UsedNonceStore backed by memcached. Add
// with an existing key fails, which gives first-writer-wins semantics
// without any locking on our side.
func NewMemcacheNonceStore(cli *memcache.Client) UsedNonceStore {
	return &memcacheNonceStore{cli: cli}
}

func (s *memcacheNonceStore) IsUsed(key string) (bool, error) {
	_, err := s.cli.Get(key)
	if err == memcache.ErrCacheMiss {
		return false, nil
	}
	if err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

func (s *memcacheNonceStore) MarkUsed(key string, ttl time.Duration) (bool, error) {
	err := s.cli.Add(&memcache.Item{
		Key:        key,
		Value:      []byte{'1'},
		Expiration: int32(ttl / time.Second),
	})
	if err == memcache.ErrNotStored {
		return false, nil
	}
	if err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

type memoryNonceStore struct {
	clk clock.Clock

	mu   sync.Mutex
	used map[string]time.Time
}

// NewMemoryNonceStore returns an in-process UsedNonceStore. Useful for
// tests and single-instance deployments.
func NewMemoryNonceStore(clk clock.Clock) UsedNonceStore {
	if clk == nil {
		clk = clock.New()
	}
	return &memoryNonceStore{
		clk:  clk,
		used: make(map[string]time.Time),
	}
}

func (s *memoryNonceStore) IsUsed(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.used[key]
	if !ok {
		return false, nil
	}
	if s.clk.Now().After(exp) {
		delete(s.used, key)
		return false, nil
	}
	return true, nil
}

func (s *memoryNonceStore) MarkUsed(key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clk.Now()
	if exp, ok := s.used[key]; ok && !now.After(exp) {
		return false, nil
	}
	s.used[key] = now.Add(ttl)
	return true, nil
}
