package config

import "time"

// CacheConfig tunes the redis response cache applied to the dashboard
// read endpoints.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      boolenv("CACHE_ENABLED", true),
		TTL:          durenv("CACHE_TTL", 30*time.Second),
		Prefix:       getenv("CACHE_PREFIX", "cache"),
		MaxBodyBytes: intenv("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}
