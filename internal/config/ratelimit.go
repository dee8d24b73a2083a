package config

import (
	"strings"
	"time"
)

// RateLimitConfig controls the token bucket limiter. The bucket lives in
// Redis when a client is available and in process memory otherwise.
//
// KeyStrategy applies to authenticated routes, where the user id is known.
// AuthKeyStrategy applies to the unauthenticated /auth routes and must not
// depend on the user; strategies naming "user" fall back to ip_route.
type RateLimitConfig struct {
	Enabled         bool          `env:"RATE_LIMIT_ENABLED" env-default:"true"`
	Capacity        int           `env:"RATE_LIMIT_CAPACITY" env-default:"60"`
	RefillTokens    int           `env:"RATE_LIMIT_REFILL_TOKENS" env-default:"1"`
	RefillInterval  time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" env-default:"1s"`
	TTL             time.Duration `env:"RATE_LIMIT_TTL" env-default:"10m"`
	KeyStrategy     string        `env:"RATE_LIMIT_KEY_STRATEGY" env-default:"ip_user_route"`
	AuthKeyStrategy string        `env:"RATE_LIMIT_AUTH_KEY_STRATEGY" env-default:"ip_route"`
	Prefix          string        `env:"RATE_LIMIT_PREFIX" env-default:"rl"`
	Debug           bool          `env:"RATE_LIMIT_DEBUG" env-default:"false"`
}

func (c *RateLimitConfig) normalize() {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	minTTL := 5 * c.RefillInterval
	if c.TTL < minTTL {
		c.TTL = minTTL
	}
}

// ForAuth returns a copy keyed by AuthKeyStrategy.
func (c RateLimitConfig) ForAuth() RateLimitConfig {
	s := strings.ToLower(c.AuthKeyStrategy)
	if s == "" || strings.Contains(s, "user") {
		s = "ip_route"
	}
	c.KeyStrategy = s
	return c
}
