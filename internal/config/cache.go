package config

import "time"

// CacheConfig defines settings for the analytics summary cache.  When
// Enabled is false or no Redis client is configured, every request
// recomputes the summary.  TTL bounds staleness between mutations;
// mutations also drop the entry directly.  MaxBodyBytes caps the size of
// a cached summary.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads the CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		Prefix:       envStr("CACHE_PREFIX", "crm"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}
