package config

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingEnvFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "HS256", cfg.JWT.Algorithm)
	assert.Equal(t, 30*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.True(t, cfg.Cache.MethodSet()["GET"])
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("REFRESH_TOKEN_TTL", "24h")
	t.Setenv("JWT_ALGORITHM", "HS512")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("CACHE_METHODS", "get,head")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 24*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, "HS512", cfg.JWT.Algorithm)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Cache.MethodSet())
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_PORT=9999\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("APP_PORT") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Port)
}

func TestLoadRejectsDefaultSecretInProd(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	_, err := Load(missingEnvFile(t))
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "a-real-secret")
	_, err = Load(missingEnvFile(t))
	assert.NoError(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"JWT_ALGORITHM":    "RS256",
		"DB_DRIVER":        "sqlite",
		"BCRYPT_COST":      "2",
		"ACCESS_TOKEN_TTL": "-1m",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			_, err := Load(missingEnvFile(t))
			assert.Error(t, err)
		})
	}
}

func TestRateLimitNormalize(t *testing.T) {
	c := RateLimitConfig{Capacity: 0, RefillTokens: 0, RefillInterval: 0, TTL: time.Second}
	c.normalize()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, time.Second, c.RefillInterval)
	assert.Equal(t, 5*time.Second, c.TTL)
}

func TestTrustedProxyNets(t *testing.T) {
	c := Config{TrustedProxies: []string{"10.0.0.0/8", " 192.0.2.7 ", "", "2001:db8::1"}}
	nets, err := c.TrustedProxyNets()
	require.NoError(t, err)
	require.Len(t, nets, 3)
	assert.True(t, nets[0].Contains(net.ParseIP("10.1.2.3")))
	assert.True(t, nets[1].Contains(net.ParseIP("192.0.2.7")))
	assert.False(t, nets[1].Contains(net.ParseIP("192.0.2.8")))
	assert.True(t, nets[2].Contains(net.ParseIP("2001:db8::1")))

	_, err = Config{TrustedProxies: []string{"not-an-ip"}}.TrustedProxyNets()
	assert.Error(t, err)
}

func TestLoadTrustedProxies(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,172.16.0.1")
	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.1"}, cfg.TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/99")
	_, err = Load(missingEnvFile(t))
	assert.Error(t, err)
}

func TestRateLimitForAuth(t *testing.T) {
	c := RateLimitConfig{KeyStrategy: "user", AuthKeyStrategy: "ip"}
	assert.Equal(t, "ip", c.ForAuth().KeyStrategy)
	assert.Equal(t, "user", c.KeyStrategy)

	c.AuthKeyStrategy = "ip_user"
	assert.Equal(t, "ip_route", c.ForAuth().KeyStrategy)
	c.AuthKeyStrategy = ""
	assert.Equal(t, "ip_route", c.ForAuth().KeyStrategy)
}
