// Copyright 2025 Veraxis Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veraxis/scout/pkg/config"
)

// ============================================================================
// SUMMARY CACHE
// ============================================================================

// CachedSummary is the persisted summary state for one session.
type CachedSummary struct {
	Summary   string    `json:"summary"`
	Covered   int       `json:"covered"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SummaryStore persists summary state across restarts. A miss is not an
// error: the strategy recomputes from the session log.
type SummaryStore interface {
	Load(ctx context.Context, sessionID string) (*CachedSummary, bool, error)
	Save(ctx context.Context, sessionID string, state *CachedSummary) error
}

// SummaryCache is the Redis-backed SummaryStore. Entries expire after
// the configured TTL so abandoned sessions do not accumulate.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache connects a summary cache to Redis.
func NewSummaryCache(cfg config.RedisConfig) *SummaryCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &SummaryCache{
		client: client,
		ttl:    time.Duration(cfg.TTL),
	}
}

// Ping verifies the Redis connection.
func (c *SummaryCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Load fetches the cached summary state for a session.
func (c *SummaryCache) Load(ctx context.Context, sessionID string) (*CachedSummary, bool, error) {
	raw, err := c.client.Get(ctx, summaryKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get summary failed: %w", err)
	}

	var state CachedSummary
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached summary failed: %w", err)
	}
	return &state, true, nil
}

// Save stores the summary state with the configured TTL.
func (c *SummaryCache) Save(ctx context.Context, sessionID string, state *CachedSummary) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal summary state failed: %w", err)
	}
	if err := c.client.Set(ctx, summaryKey(sessionID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set summary failed: %w", err)
	}
	return nil
}

// Delete removes the cached state for a session.
func (c *SummaryCache) Delete(ctx context.Context, sessionID string) error {
	if err := c.client.Del(ctx, summaryKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete summary failed: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *SummaryCache) Close() error {
	return c.client.Close()
}

func summaryKey(sessionID string) string {
	return "scout:summary:" + sessionID
}

var _ SummaryStore = (*SummaryCache)(nil)
