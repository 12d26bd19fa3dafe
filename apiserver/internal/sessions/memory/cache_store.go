package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	token   string
	expires time.Time
}

// CacheStore is an in-process session cache. Expired entries are dropped
// lazily, when they are next read or overwritten. An instance using this
// store relies on the event bus to learn of tokens stored or revoked by other
// instances.
type CacheStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewCacheStore returns an empty in-process session cache.
func NewCacheStore() *CacheStore {
	return &CacheStore{
		entries: map[string]entry{},
		now:     time.Now,
	}
}

func (c *CacheStore) Put(
	_ context.Context,
	userID string,
	sessionID string,
	token string,
	ttl time.Duration,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(userID, sessionID)
	if ttl <= 0 {
		delete(c.entries, k)
		return nil
	}
	c.entries[k] = entry{
		token:   token,
		expires: c.now().Add(ttl),
	}
	return nil
}

func (c *CacheStore) Get(
	_ context.Context,
	userID string,
	sessionID string,
) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(userID, sessionID)
	e, ok := c.entries[k]
	if !ok {
		return "", false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, k)
		return "", false, nil
	}
	return e.token, true, nil
}

func (c *CacheStore) Delete(
	_ context.Context,
	userID string,
	sessionID string,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key(userID, sessionID))
	return nil
}

// Len returns the number of entries held, including any that have expired
// but not yet been dropped.
func (c *CacheStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func key(userID, sessionID string) string {
	return "refresh:" + userID + ":" + sessionID
}
