package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "AUTHAPI"

var (
	ErrMissingJWTSecret  = errors.New("auth.jwt_secret is required (set JWT_SECRET or AUTHAPI_AUTH_JWT_SECRET)")
	ErrInvalidRateLimit  = errors.New("ratelimiter.limit and ratelimiter.window must be positive")
	ErrUnknownDriver     = errors.New("unknown driver")
	ErrMissingAdminToken = errors.New("admin.token is required when admin.enabled is true")
)

// legacyEnv maps config keys to the plain env names the service has always
// accepted. The prefixed name wins when both are set.
var legacyEnv = map[string]string{
	"auth.jwt_secret": "JWT_SECRET",
	"app.base_url":    "BASE_URL",
	"app.port":        "PORT",
	"notifier.from":   "EMAIL_ADDRESS",
	"notifier.region": "AWS_REGION",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.address", "")
	v.SetDefault("app.port", 3000)
	v.SetDefault("app.path_prefix", "/api")
	v.SetDefault("app.base_url", "http://localhost:3000")

	v.SetDefault("log.level", "info")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.echo_reset_token", true)

	v.SetDefault("ratelimiter.limit", 5)
	v.SetDefault("ratelimiter.window", time.Minute)
	v.SetDefault("ratelimiter.key_header", "")
	v.SetDefault("ratelimiter.trusted_proxies", []string{})

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "authapi")
	v.SetDefault("store.libsql.path", "authapi.db")
	v.SetDefault("store.libsql.url", "")
	v.SetDefault("store.libsql.auth_token", "")

	v.SetDefault("notifier.driver", "log")
	v.SetDefault("notifier.from", "")
	v.SetDefault("notifier.region", "us-east-1")
	v.SetDefault("notifier.rate_per_second", 1.0)
	v.SetDefault("notifier.burst", 5)

	v.SetDefault("healthchecker.healthy_freq", 30*time.Second)
	v.SetDefault("healthchecker.unhealthy_freq", 5*time.Second)
	v.SetDefault("healthchecker.timeout", 2*time.Second)

	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.token", "")
}

// LoadConfig reads defaults, then the YAML file, then .env, then the
// environment. An empty configFile looks for ./config.yaml and tolerates its
// absence.
func LoadConfig(configFile string) (*Config, error) {
	return load(viper.New(), configFile, ".env")
}

// LoadConfigWith is LoadConfig on a caller-owned viper, so cobra flags bound
// with BindPFlag take precedence.
func LoadConfigWith(v *viper.Viper, configFile string) (*Config, error) {
	return load(v, configFile, ".env")
}

func load(v *viper.Viper, configFile, envFile string) (*Config, error) {
	setDefaults(v)

	if err := readConfigFile(v, configFile); err != nil {
		return nil, err
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to load %s: %w", envFile, err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func readConfigFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to parse config file %s: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("unable to parse config file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	if c.RateLimiter.Limit <= 0 || c.RateLimiter.Window <= 0 {
		return ErrInvalidRateLimit
	}

	if c.Admin.Enabled && strings.TrimSpace(c.Admin.Token) == "" {
		return ErrMissingAdminToken
	}

	switch c.Store.Driver {
	case "memory", "redis", "libsql":
	default:
		return fmt.Errorf("store.driver %q: %w", c.Store.Driver, ErrUnknownDriver)
	}

	switch c.Notifier.Driver {
	case "log", "ses":
	default:
		return fmt.Errorf("notifier.driver %q: %w", c.Notifier.Driver, ErrUnknownDriver)
	}
	return nil
}
