package access

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hivedocs/hivedocs/pkg/observability"
)

const anonymousPrincipal = "anon"

// DecisionCache is a two-tier cache for access decisions: an in-process
// expiring LRU in front of a shared Redis tier. Redis is optional; with a
// nil client the cache runs L1-only. The cache never changes an answer, it
// only skips recomputation, so invalidation is aggressive: any grant or
// revoke clears the principal's entries and any document mutation clears
// the document's entries.
type DecisionCache struct {
	l1      *expirable.LRU[string, Decision]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewDecisionCache creates a decision cache. redisClient and metrics may be
// nil.
func NewDecisionCache(l1Size int, ttl time.Duration, redisClient *redis.Client, metrics *observability.Metrics, logger *observability.Logger) *DecisionCache {
	return &DecisionCache{
		l1:      expirable.NewLRU[string, Decision](l1Size, nil, ttl),
		redis:   redisClient,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Get returns a cached decision for (principal, document) if present
func (c *DecisionCache) Get(ctx context.Context, principalID *uuid.UUID, documentID uuid.UUID) (Decision, bool) {
	key := decisionKey(principalID, documentID)

	if decision, ok := c.l1.Get(key); ok {
		c.hit()
		return decision, true
	}

	if c.redis != nil {
		cached, err := c.redis.Get(ctx, key).Result()
		if err == nil {
			var decision Decision
			if err := json.Unmarshal([]byte(cached), &decision); err == nil {
				c.l1.Add(key, decision)
				c.hit()
				return decision, true
			}
		}
	}

	c.miss()
	return Decision{}, false
}

// Set stores a decision in both tiers
func (c *DecisionCache) Set(ctx context.Context, principalID *uuid.UUID, documentID uuid.UUID, decision Decision) {
	key := decisionKey(principalID, documentID)
	c.l1.Add(key, decision)

	if c.redis == nil {
		return
	}

	data, err := json.Marshal(decision)
	if err != nil {
		return
	}

	pipe := c.redis.Pipeline()
	pipe.Set(ctx, key, data, c.ttl)
	// Index sets drive targeted invalidation without SCAN
	principalIdx := principalIndexKey(principalID)
	documentIdx := documentIndexKey(documentID)
	pipe.SAdd(ctx, principalIdx, key)
	pipe.Expire(ctx, principalIdx, c.ttl)
	pipe.SAdd(ctx, documentIdx, key)
	pipe.Expire(ctx, documentIdx, c.ttl)

	if _, err := pipe.Exec(ctx); err != nil && c.logger != nil {
		c.logger.WithError(err).Debug("Decision cache write failed")
	}
}

// InvalidatePrincipal drops every cached decision for a principal. Called
// after any grant or revoke touching the principal.
func (c *DecisionCache) InvalidatePrincipal(ctx context.Context, principalID uuid.UUID) {
	prefix := fmt.Sprintf("decision:%s:", principalID)
	for _, key := range c.l1.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.l1.Remove(key)
		}
	}

	c.dropIndexed(ctx, principalIndexKey(&principalID))
}

// InvalidateDocument drops every cached decision for a document. Called
// after any document mutation.
func (c *DecisionCache) InvalidateDocument(ctx context.Context, documentID uuid.UUID) {
	suffix := fmt.Sprintf(":%s", documentID)
	for _, key := range c.l1.Keys() {
		if strings.HasSuffix(key, suffix) {
			c.l1.Remove(key)
		}
	}

	c.dropIndexed(ctx, documentIndexKey(documentID))
}

// Purge clears both tiers entirely
func (c *DecisionCache) Purge(ctx context.Context) {
	c.l1.Purge()
	if c.redis != nil {
		if err := c.redis.FlushDB(ctx).Err(); err != nil && c.logger != nil {
			c.logger.WithError(err).Warn("Decision cache flush failed")
		}
	}
}

func (c *DecisionCache) dropIndexed(ctx context.Context, indexKey string) {
	if c.redis == nil {
		return
	}

	keys, err := c.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		if c.logger != nil {
			c.logger.WithError(err).Warn("Decision cache invalidation failed")
		}
		return
	}

	keys = append(keys, indexKey)
	if err := c.redis.Del(ctx, keys...).Err(); err != nil && c.logger != nil {
		c.logger.WithError(err).Warn("Decision cache invalidation failed")
	}
}

func (c *DecisionCache) hit() {
	if c.metrics != nil {
		c.metrics.DecisionCacheHits.Inc()
	}
}

func (c *DecisionCache) miss() {
	if c.metrics != nil {
		c.metrics.DecisionCacheMisses.Inc()
	}
}

func decisionKey(principalID *uuid.UUID, documentID uuid.UUID) string {
	p := anonymousPrincipal
	if principalID != nil {
		p = principalID.String()
	}
	return fmt.Sprintf("decision:%s:%s", p, documentID)
}

func principalIndexKey(principalID *uuid.UUID) string {
	p := anonymousPrincipal
	if principalID != nil {
		p = principalID.String()
	}
	return fmt.Sprintf("decision:idx:principal:%s", p)
}

func documentIndexKey(documentID uuid.UUID) string {
	return fmt.Sprintf("decision:idx:document:%s", documentID)
}
