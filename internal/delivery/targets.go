package delivery

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aristath/agentcoord/internal/registry"
)

// TargetSource supplies transport target descriptors for agents. The
// process registry implements it; tests substitute fakes.
type TargetSource interface {
	TargetFor(agentID string) (registry.Target, error)
}

// DefaultTargetTTL bounds how long a resolved target is served from cache.
const DefaultTargetTTL = 30 * time.Second

type cachedTarget struct {
	target  registry.Target
	expires time.Time
}

// targetCache is a TTL cache over a TargetSource. Concurrent misses for the
// same agent collapse into one backing fetch via singleflight.
type targetCache struct {
	mu      sync.RWMutex
	entries map[string]cachedTarget
	ttl     time.Duration
	source  TargetSource
	group   singleflight.Group
	now     func() time.Time // overridable in tests
}

func newTargetCache(source TargetSource, ttl time.Duration) *targetCache {
	if ttl <= 0 {
		ttl = DefaultTargetTTL
	}
	return &targetCache{
		entries: make(map[string]cachedTarget),
		ttl:     ttl,
		source:  source,
		now:     time.Now,
	}
}

// resolve returns the cached target for an agent, refreshing from the
// backing source on miss or expiry.
func (c *targetCache) resolve(agentID string) (registry.Target, error) {
	c.mu.RLock()
	entry, ok := c.entries[agentID]
	c.mu.RUnlock()

	if ok && c.now().Before(entry.expires) {
		return entry.target, nil
	}

	v, err, _ := c.group.Do(agentID, func() (any, error) {
		target, err := c.source.TargetFor(agentID)
		if err != nil {
			return registry.Target{}, err
		}
		c.mu.Lock()
		c.entries[agentID] = cachedTarget{target: target, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return target, nil
	})
	if err != nil {
		return registry.Target{}, err
	}
	return v.(registry.Target), nil
}

// invalidate drops one cached entry.
func (c *targetCache) invalidate(agentID string) {
	c.mu.Lock()
	delete(c.entries, agentID)
	c.mu.Unlock()
}
