package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/blogfeed/config"
)

const (
	// FeedCachePrefix namespaces every cached feed page.
	FeedCachePrefix = "cache:feed:"

	feedGenerationKey = FeedCachePrefix + "gen"
)

// GlobalFeedKey is the cache key of one page of the global feed in generation gen.
func GlobalFeedKey(gen int64, page int) string {
	return fmt.Sprintf("%sg%d:global:page=%d", FeedCachePrefix, gen, page)
}

// GroupFeedKey is the cache key of one page of a group feed in generation gen.
func GroupFeedKey(gen int64, slug string, page int) string {
	return fmt.Sprintf("%sg%d:group:%s:page=%d", FeedCachePrefix, gen, slug, page)
}

// FeedGeneration returns the current feed cache generation. Read it before
// loading a page so a page computed before a write lands in a stale generation.
func FeedGeneration() int64 {
	rc := GetRedis()
	if rc == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	gen, err := rc.Get(ctx, feedGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		Sugar.Warnf("cache generation read failed err=%v", err)
	}
	return gen
}

// BumpFeedGeneration retires every cached feed page. Old pages expire with their TTL.
func BumpFeedGeneration() {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Incr(ctx, feedGenerationKey).Err(); err != nil {
		Sugar.Warnf("cache generation bump failed err=%v", err)
	}
}

func cacheTTL() time.Duration {
	if s := config.Get().CacheTTLSeconds; s > 0 {
		return time.Duration(s) * time.Second
	}
	return time.Hour
}

// CacheGetBytes returns cached bytes for a key from Redis.
func CacheGetBytes(key string) ([]byte, bool) {
	rc := GetRedis()
	if rc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		Sugar.Debugf("cache miss key=%s err=%v", key, err)
		return nil, false
	}
	return b, true
}

// CacheSetJSON marshals v and stores it under key; ttl <= 0 uses the configured TTL.
func CacheSetJSON(key string, v interface{}, ttl time.Duration) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if ttl <= 0 {
		ttl = cacheTTL()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}
