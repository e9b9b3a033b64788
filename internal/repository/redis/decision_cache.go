package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/port"
)

const (
	defaultDecisionPrefix = "rbac:perm"
	defaultDecisionTTL    = 5 * time.Minute
	// generationTTL outlives any decision written under the generation.
	generationTTL = 24 * time.Hour
)

// setDecisionScript writes the decision only while the user's generation still
// equals the one observed before the store read.
// KEYS[1] decision hash, KEYS[2] generation key.
// ARGV[1] expected generation, ARGV[2] field, ARGV[3] value, ARGV[4] ttl in ms.
var setDecisionScript = red.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[2], ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// DecisionCache stores permission decisions in one hash per user so a user's
// entries can be dropped with a single DEL. A per-user generation counter
// guards writes against invalidations that land while a decision is computed.
type DecisionCache struct {
	client *red.Client
	prefix string
	ttl    time.Duration
}

// NewDecisionCache constructs a Redis-backed decision cache.
func NewDecisionCache(client *red.Client, keyPrefix string, ttl time.Duration) *DecisionCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultDecisionPrefix
	}
	if ttl <= 0 {
		ttl = defaultDecisionTTL
	}
	return &DecisionCache{client: client, prefix: prefix, ttl: ttl}
}

// GetDecision reads a cached decision. A miss is not an error.
func (c *DecisionCache) GetDecision(ctx context.Context, userID int64, key string) (bool, bool, error) {
	value, err := c.client.HGet(ctx, c.userKey(userID), key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("redis hget decision: %w", err)
	}
	return value == "1", true, nil
}

// Snapshot reads the user's generation. A missing counter is generation 0.
func (c *DecisionCache) Snapshot(ctx context.Context, userID int64) (port.DecisionToken, error) {
	gen, err := c.client.Get(ctx, c.generationKey(userID)).Int64()
	if err != nil && !errors.Is(err, red.Nil) {
		return port.DecisionToken{}, fmt.Errorf("redis get generation: %w", err)
	}
	return port.DecisionToken{Shared: gen}, nil
}

// SetDecision stores a decision and refreshes the user's hash TTL, unless the
// user's generation moved past token.
func (c *DecisionCache) SetDecision(ctx context.Context, userID int64, key string, allowed bool, token port.DecisionToken) (bool, error) {
	value := "0"
	if allowed {
		value = "1"
	}

	stored, err := setDecisionScript.Run(ctx, c.client,
		[]string{c.userKey(userID), c.generationKey(userID)},
		strconv.FormatInt(token.Shared, 10), key, value, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis set decision: %w", err)
	}
	return stored == 1, nil
}

// InvalidateUsers drops every cached decision of the given users and advances
// their generations in one transaction.
func (c *DecisionCache) InvalidateUsers(ctx context.Context, userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	pipe := c.client.TxPipeline()
	for _, id := range userIDs {
		keys = append(keys, c.userKey(id))
		genKey := c.generationKey(id)
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
	}
	pipe.Del(ctx, keys...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete decisions: %w", err)
	}
	return nil
}

func (c *DecisionCache) userKey(userID int64) string {
	return c.prefix + ":user:" + strconv.FormatInt(userID, 10)
}

func (c *DecisionCache) generationKey(userID int64) string {
	return c.prefix + ":gen:" + strconv.FormatInt(userID, 10)
}

var _ port.DecisionCache = (*DecisionCache)(nil)
