package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// DefaultJWTSecret is the development secret. Load refuses to start a
// prod environment with it.
const DefaultJWTSecret = "change-me-in-production"

// Config holds all runtime configuration values. It is built once by Load
// and passed by value to the components that need it; nothing reads the
// environment after startup.
type Config struct {
	Env            string        `env:"APP_ENV" env-default:"dev"`           // application environment (local, dev, prod)
	Port           string        `env:"APP_PORT" env-default:"8080"`         // HTTP port to listen on
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" env-default:"5s"`    // per-request store deadline
	BcryptCost     int           `env:"BCRYPT_COST" env-default:"10"`        // bcrypt cost for password hashing
	TrustedProxies []string      `env:"TRUSTED_PROXIES" env-separator:","`    // CIDRs allowed to set X-Forwarded-For

	DB        DBConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
}

// DBConfig describes the relational store.
type DBConfig struct {
	Driver      string `env:"DB_DRIVER" env-default:"mysql"` // mysql or postgres
	User        string `env:"DB_USER" env-default:"root"`
	Pass        string `env:"DB_PASS"`                        // empty allowed
	Host        string `env:"DB_HOST" env-default:"127.0.0.1"`
	Port        string `env:"DB_PORT" env-default:"3306"`
	Name        string `env:"DB_NAME" env-default:"task_manager"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" env-default:"true"`
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret     string        `env:"JWT_SECRET" env-default:"change-me-in-production"`
	Algorithm  string        `env:"JWT_ALGORITHM" env-default:"HS256"`
	AccessTTL  time.Duration `env:"ACCESS_TOKEN_TTL" env-default:"30m"`
	RefreshTTL time.Duration `env:"REFRESH_TOKEN_TTL" env-default:"168h"`
}

// Load reads an optional .env file followed by the process environment and
// returns a validated Config.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	cfg.RateLimit.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cleanenv cannot express with tags.
func (c Config) Validate() error {
	switch c.DB.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q", c.DB.Driver)
	}
	switch c.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("invalid JWT_ALGORITHM %q", c.JWT.Algorithm)
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is empty")
	}
	if c.Env == "prod" && c.JWT.Secret == DefaultJWTSecret {
		return errors.New("JWT_SECRET must be set in prod")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("invalid BCRYPT_COST %d", c.BcryptCost)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	if _, err := c.TrustedProxyNets(); err != nil {
		return err
	}
	return nil
}

// TrustedProxyNets parses TrustedProxies. A bare IP is taken as a single
// host network.
func (c Config) TrustedProxyNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q", raw)
			}
			bits := 8 * len(ip.To16())
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", raw, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}
