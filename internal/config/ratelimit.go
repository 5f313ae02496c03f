package config

import "time"

// Key strategies for the login limiter.
const (
	KeyByIP        = "ip"
	KeyBySession   = "session"
	KeyByIPSession = "ip_session"
)

// RateLimitConfig shapes the token bucket in front of POST /api/auth/login.
// Each key starts with Capacity tokens and regains RefillTokens every
// RefillInterval.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration // idle buckets expire after this
	KeyStrategy    string
	Prefix         string
}

// LoadRateLimitConfig reads RATE_LIMIT_*.  The defaults allow a burst of
// ten login attempts and one more every six seconds per address.
func LoadRateLimitConfig() RateLimitConfig {
	rl := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 10),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 6*time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", KeyByIP),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "crm:rl"),
	}
	rl.Capacity = max(rl.Capacity, 1)
	rl.RefillTokens = max(rl.RefillTokens, 1)
	if rl.RefillInterval <= 0 {
		rl.RefillInterval = time.Second
	}
	// a bucket must outlive several refills or it resets to full early
	rl.TTL = max(rl.TTL, 5*rl.RefillInterval)
	return rl
}
