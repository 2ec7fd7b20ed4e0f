// Package config loads runtime configuration from the environment with
// sensible defaults for local development. Every knob is overridable via a
// VAXSCHED_-prefixed environment variable.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPHost        string
	HTTPPort        int
	DBPath          string
	LogLevel        string
	ShutdownTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
}

// Addr is the host:port the HTTP server binds to.
func (c Config) Addr() string {
	return net.JoinHostPort(c.HTTPHost, fmt.Sprintf("%d", c.HTTPPort))
}

func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VAXSCHED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("database.path", "vaxsched.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("shutdown.timeout", "10s")
	v.SetDefault("ratelimit.rps", 20.0)
	v.SetDefault("ratelimit.burst", 40)

	_ = v.BindEnv("http.host", "VAXSCHED_HTTP_HOST", "HTTP_HOST")
	_ = v.BindEnv("http.port", "VAXSCHED_HTTP_PORT", "HTTP_PORT", "PORT")
	_ = v.BindEnv("database.path", "VAXSCHED_DATABASE_PATH", "DATABASE_PATH")
	_ = v.BindEnv("log.level", "VAXSCHED_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("shutdown.timeout", "VAXSCHED_SHUTDOWN_TIMEOUT", "SHUTDOWN_TIMEOUT")
	_ = v.BindEnv("ratelimit.rps", "VAXSCHED_RATELIMIT_RPS")
	_ = v.BindEnv("ratelimit.burst", "VAXSCHED_RATELIMIT_BURST")

	timeout, err := time.ParseDuration(v.GetString("shutdown.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("parse shutdown timeout: %w", err)
	}

	return Config{
		HTTPHost:        strings.TrimSpace(v.GetString("http.host")),
		HTTPPort:        v.GetInt("http.port"),
		DBPath:          v.GetString("database.path"),
		LogLevel:        v.GetString("log.level"),
		ShutdownTimeout: timeout,
		RateLimitRPS:    v.GetFloat64("ratelimit.rps"),
		RateLimitBurst:  v.GetInt("ratelimit.burst"),
	}, nil
}
