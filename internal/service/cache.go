package service

import (
	"context"
	"fmt"
)

// Cache is the read-through cache the services use; *cache.Cache satisfies it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any) error
	Incr(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, keys ...string) error
}

// Stats entries are keyed by a per-campaign generation. A recompute bumps
// the generation before it counts, so an entry computed from older counts
// lands under a key no reader asks for again.
func statsGenerationKey(campaignID string) string { return "stats-gen:" + campaignID }

func statsKey(campaignID string, generation int64) string {
	return fmt.Sprintf("stats:%s:%d", campaignID, generation)
}
