package config

import "time"

// RateLimitConfig drives the token-bucket limiter in front of the API.
// Capacity is the burst size; RefillTokens are added every RefillInterval.
// Buckets idle for TTL are forgotten.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string // "ip", "user", "ip_user" or "ip_user_route"
    Prefix         string
    Debug          bool
}

// PerSecond is the sustained refill rate in tokens per second.
func (c RateLimitConfig) PerSecond() float64 {
    if c.RefillInterval <= 0 {
        return float64(c.RefillTokens)
    }
    return float64(c.RefillTokens) / c.RefillInterval.Seconds()
}

// normalize clamps values that would make the bucket useless.
func (c RateLimitConfig) normalize() RateLimitConfig {
    c.Capacity = max(c.Capacity, 1)
    c.RefillTokens = max(c.RefillTokens, 1)
    if c.RefillInterval <= 0 {
        c.RefillInterval = time.Second
    }
    // a bucket must outlive a few refills or it resets to full on every request
    c.TTL = max(c.TTL, 5*c.RefillInterval)
    return c
}

// LoadRateLimitConfig reads RATE_LIMIT_*.  Booking traffic is bursty around
// the start of the horizon, so the default burst is modest and refills at
// one request per second.
func LoadRateLimitConfig() RateLimitConfig {
    return RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 30),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "slots:rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }.normalize()
}
