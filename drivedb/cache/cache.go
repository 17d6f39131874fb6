package cache

import (
	"fmt"

	"github.com/golang/groupcache/lru"
	"github.com/jellydator/ttlcache/v3"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/drivelab/drived/params"
	"github.com/drivelab/drived/types/sample"
)

// LastKnownTTLCache holds the most recent enriched sample per participant,
// so the web daemon can answer "where is everyone now" without touching
// session stores.
var LastKnownTTLCache = ttlcache.New[string, *sample.EnrichedSample](
	ttlcache.WithTTL[string, *sample.EnrichedSample](params.CacheLastKnownTTL))

// LastPushTTLCache holds the last processed batch per participant; new
// websocket clients get it replayed on connect.
var LastPushTTLCache = ttlcache.New[string, []*sample.EnrichedSample](
	ttlcache.WithTTL[string, []*sample.EnrichedSample](params.CacheLastPushTTL))

func SetLastKnown(participantID string, es *sample.EnrichedSample) {
	LastKnownTTLCache.Set(participantID, es, ttlcache.DefaultTTL)
}

func SetLastPush(participantID string, batch []*sample.EnrichedSample) {
	LastPushTTLCache.Set(participantID, batch, ttlcache.DefaultTTL)
}

// NewDedupePassLRUFunc returns a predicate that is true the first time it
// sees a sample and false for any exact repeat, using a Least Recently
// Used (LRU) cache of structural hashes. Clients on flaky connections
// retry whole batches; repeats must not re-enter the engine.
func NewDedupePassLRUFunc(size int) func(sample.RawSample) bool {
	dedupeCache := lru.New(size)
	return func(s sample.RawSample) bool {
		hash, err := hashstructure.Hash(s, hashstructure.FormatV2, nil)
		if err != nil {
			return false
		}
		key := fmt.Sprintf("%d", hash)
		if _, ok := dedupeCache.Get(key); ok {
			return false
		}
		dedupeCache.Add(key, true)
		return true
	}
}
