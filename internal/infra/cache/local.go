package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/port"
)

const (
	defaultLocalSize = 10000
	defaultLocalTTL  = 30 * time.Second
)

// LocalDecisionCache is an in-process LRU in front of an optional shared cache.
// Entries are short lived; cross-node freshness relies on invalidation events
// calling PurgeUsers.
type LocalDecisionCache struct {
	entries *lru.LRU[string, bool]
	next    port.DecisionCache

	// mu orders local writes against purges; generations only grow.
	mu          sync.Mutex
	generations map[int64]uint64
}

// NewLocalDecisionCache creates the L1 cache. next may be nil.
func NewLocalDecisionCache(size int, ttl time.Duration, next port.DecisionCache) *LocalDecisionCache {
	if size <= 0 {
		size = defaultLocalSize
	}
	if ttl <= 0 {
		ttl = defaultLocalTTL
	}
	return &LocalDecisionCache{
		entries:     lru.NewLRU[string, bool](size, nil, ttl),
		next:        next,
		generations: make(map[int64]uint64),
	}
}

// GetDecision consults the local entries first and back-fills them from next on a hit.
func (c *LocalDecisionCache) GetDecision(ctx context.Context, userID int64, key string) (bool, bool, error) {
	localKey := entryKey(userID, key)
	if allowed, ok := c.entries.Get(localKey); ok {
		return allowed, true, nil
	}
	if c.next == nil {
		return false, false, nil
	}

	gen := c.generation(userID)
	allowed, found, err := c.next.GetDecision(ctx, userID, key)
	if err != nil || !found {
		return false, false, err
	}
	c.addIfCurrent(userID, localKey, allowed, gen)
	return allowed, true, nil
}

// Snapshot combines the local generation with the shared one.
func (c *LocalDecisionCache) Snapshot(ctx context.Context, userID int64) (port.DecisionToken, error) {
	token := port.DecisionToken{}
	if c.next != nil {
		shared, err := c.next.Snapshot(ctx, userID)
		if err != nil {
			return port.DecisionToken{}, err
		}
		token.Shared = shared.Shared
	}
	token.Local = c.generation(userID)
	return token, nil
}

// SetDecision writes through to next and keeps the local copy only when both
// generations still match token.
func (c *LocalDecisionCache) SetDecision(ctx context.Context, userID int64, key string, allowed bool, token port.DecisionToken) (bool, error) {
	if c.next != nil {
		stored, err := c.next.SetDecision(ctx, userID, key, allowed, token)
		if err != nil || !stored {
			return false, err
		}
	}
	return c.addIfCurrent(userID, entryKey(userID, key), allowed, token.Local), nil
}

// InvalidateUsers drops local entries and then the shared ones.
func (c *LocalDecisionCache) InvalidateUsers(ctx context.Context, userIDs ...int64) error {
	c.PurgeUsers(userIDs...)
	if c.next == nil {
		return nil
	}
	return c.next.InvalidateUsers(ctx, userIDs...)
}

// PurgeUsers drops local entries only and advances the users' local generations.
// Used when another node already cleared the shared cache.
func (c *LocalDecisionCache) PurgeUsers(userIDs ...int64) int {
	if len(userIDs) == 0 {
		return 0
	}
	prefixes := make([]string, 0, len(userIDs))

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		c.generations[id]++
		prefixes = append(prefixes, userPrefix(id))
	}

	removed := 0
	for _, key := range c.entries.Keys() {
		for _, prefix := range prefixes {
			if strings.HasPrefix(key, prefix) {
				if c.entries.Remove(key) {
					removed++
				}
				break
			}
		}
	}
	return removed
}

// Len reports the number of local entries.
func (c *LocalDecisionCache) Len() int {
	return c.entries.Len()
}

func (c *LocalDecisionCache) generation(userID int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[userID]
}

func (c *LocalDecisionCache) addIfCurrent(userID int64, localKey string, allowed bool, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[userID] != gen {
		return false
	}
	c.entries.Add(localKey, allowed)
	return true
}

func userPrefix(userID int64) string {
	return strconv.FormatInt(userID, 10) + "#"
}

func entryKey(userID int64, key string) string {
	return userPrefix(userID) + key
}

var _ port.DecisionCache = (*LocalDecisionCache)(nil)
