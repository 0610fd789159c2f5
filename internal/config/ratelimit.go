package config

import (
	"os"
	"time"
)

// RateLimitConfig tunes the redis token bucket applied to public
// routes. Capacity is the burst size; one token refills every
// RefillInterval.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}

func loadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        boolenv("RATE_LIMIT_ENABLED", true),
		Capacity:       intenv("RATE_LIMIT_CAPACITY", 60),
		RefillInterval: durenv("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            durenv("RATE_LIMIT_TTL", 10*time.Minute),
		Prefix:         getenv("RATE_LIMIT_PREFIX", "rl"),
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	// Bucket state must outlive at least a few refill cycles.
	if min := 5 * cfg.RefillInterval; cfg.TTL < min {
		cfg.TTL = min
	}
	return cfg
}

func boolenv(key string, fallback bool) bool {
	switch os.Getenv(key) {
	case "":
		return fallback
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	default:
		return false
	}
}

func durenv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
