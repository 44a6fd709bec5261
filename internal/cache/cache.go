package cache

import "time"

// Cache is the interface for the dedup memo cache. It is advisory only: a
// miss always falls through to the destination table, a hit skips the
// existence queries for keys this process already archived.
type Cache interface {
	Get(key string) bool
	Set(key string, ttl time.Duration)
}

// Key builds a namespaced cache key for one dedup dimension.
func Key(kind, value string) string {
	return "refinery:" + kind + ":" + value
}
