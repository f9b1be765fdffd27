package config

import (
	"fmt"
	"time"
)

type App struct {
	Address    string `mapstructure:"address" yaml:"address"`
	Port       int    `mapstructure:"port" yaml:"port"`
	PathPrefix string `mapstructure:"path_prefix" yaml:"path_prefix"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
}

// ListenAddress prefers an explicit address and falls back to ":<port>".
func (a App) ListenAddress() string {
	if a.Address != "" {
		return a.Address
	}
	return fmt.Sprintf(":%d", a.Port)
}

type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
}

type Auth struct {
	JWTSecret      string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	Issuer         string        `mapstructure:"issuer" yaml:"issuer"`
	BcryptCost     int           `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`
	EchoResetToken bool          `mapstructure:"echo_reset_token" yaml:"echo_reset_token"`
}

type RateLimiter struct {
	Limit  int           `mapstructure:"limit" yaml:"limit"`
	Window time.Duration `mapstructure:"window" yaml:"window"`
	// KeyHeader switches client identity from the remote IP to a header. The
	// header must be set or stripped by a proxy in front of the service.
	KeyHeader string `mapstructure:"key_header" yaml:"key_header"`
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies []string `mapstructure:"trusted_proxies" yaml:"trusted_proxies"`
}

type Redis struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

type Libsql struct {
	Path      string `mapstructure:"path" yaml:"path"`
	URL       string `mapstructure:"url" yaml:"url"`
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token"`
}

type Store struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Redis  Redis  `mapstructure:"redis" yaml:"redis"`
	Libsql Libsql `mapstructure:"libsql" yaml:"libsql"`
}

type Notifier struct {
	Driver        string  `mapstructure:"driver" yaml:"driver"`
	From          string  `mapstructure:"from" yaml:"from"`
	Region        string  `mapstructure:"region" yaml:"region"`
	RatePerSecond float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst         int     `mapstructure:"burst" yaml:"burst"`
}

type HealthCheckerTime struct {
	HealthyServerFrequency   time.Duration `mapstructure:"healthy_freq" yaml:"healthy_freq"`
	UnhealthyServerFrequency time.Duration `mapstructure:"unhealthy_freq" yaml:"unhealthy_freq"`
	Timeout                  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type Admin struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Token is required in the X-Admin-Token header of every admin request.
	Token string `mapstructure:"token" yaml:"token"`
}

type Config struct {
	App           App               `mapstructure:"app" yaml:"app"`
	Log           Log               `mapstructure:"log" yaml:"log"`
	Auth          Auth              `mapstructure:"auth" yaml:"auth"`
	RateLimiter   RateLimiter       `mapstructure:"ratelimiter" yaml:"ratelimiter"`
	Store         Store             `mapstructure:"store" yaml:"store"`
	Notifier      Notifier          `mapstructure:"notifier" yaml:"notifier"`
	HealthChecker HealthCheckerTime `mapstructure:"healthchecker" yaml:"healthchecker"`
	Admin         Admin             `mapstructure:"admin" yaml:"admin"`
}
