package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache middleware.
// When Enabled is false or no Redis client is configured, caching will be disabled.
// Methods lists the HTTP methods to cache (e.g. GET, HEAD). TTL defines the
// lifetime of cache entries. Prefix and MaxBodyBytes allow control over
// namespacing and the maximum size of responses to cache.
type CacheConfig struct {
	Enabled      bool          `env:"CACHE_ENABLED" env-default:"true"`
	Methods      []string      `env:"CACHE_METHODS" env-default:"GET"`
	TTL          time.Duration `env:"CACHE_TTL" env-default:"30s"`
	Prefix       string        `env:"CACHE_PREFIX" env-default:"cache"`
	MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES" env-default:"1048576"`
}

// MethodSet returns the cacheable methods upper-cased as a lookup set.
func (c CacheConfig) MethodSet() map[string]bool {
	m := map[string]bool{}
	for _, p := range c.Methods {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
