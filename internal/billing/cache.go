package billing

import (
	"sync"
	"time"

	"audiototext/api-gateway/models"
)

// cacheTTL bounds how stale a cached plan may get before the provider is
// asked again.
const cacheTTL = 5 * time.Minute

type cachedPlan struct {
	plan     models.PlanTier
	maxUsage int
	storedAt time.Time
}

// planCache avoids hammering the billing provider on every reconcile-adjacent
// read. Entries expire after cacheTTL and are cleared whenever a fresh
// reconcile lands.
type planCache struct {
	mu      sync.Mutex
	entries map[string]cachedPlan
	now     func() time.Time
}

func newPlanCache() *planCache {
	return &planCache{
		entries: make(map[string]cachedPlan),
		now:     time.Now,
	}
}

func (c *planCache) get(identity string) (models.PlanTier, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[identity]
	if !ok {
		return "", 0, false
	}
	if c.now().Sub(entry.storedAt) > cacheTTL {
		delete(c.entries, identity)
		return "", 0, false
	}
	return entry.plan, entry.maxUsage, true
}

func (c *planCache) set(identity string, plan models.PlanTier, maxUsage int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[identity] = cachedPlan{plan: plan, maxUsage: maxUsage, storedAt: c.now()}
}

func (c *planCache) clear(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, identity)
}
