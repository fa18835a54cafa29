package config

import (
	"fmt"
	"time"
)

// Compile time variables are set by -ldflags.
var (
	ServiceVersion string
	CommitSHA      string
)

type (
	ServiceConfig struct {
		App          App          `json:"app"`
		HTTPServer   HTTPServer   `json:"http_server"`
		Store        Store        `json:"store"`
		Cache        Cache        `json:"cache"`
		RateLimiting RateLimiting `json:"rate_limiting"`
		Dedup        Dedup        `json:"dedup"`
		Commerce     Commerce     `json:"commerce"`
		Logging      Logging      `json:"logging"`
	}

	App struct {
		ServiceName string `envconfig:"APP_SERVICE_NAME" default:"svc-storefront" json:"service_name"`
		Environment string `envconfig:"APP_ENVIRONMENT" default:"development" json:"environment"`
	}

	HTTPServer struct {
		Host            string        `envconfig:"HTTP_SERVER_HOST" default:"0.0.0.0" json:"host"`
		Port            uint          `envconfig:"HTTP_SERVER_PORT" default:"8080" json:"port"`
		AdminPort       uint          `envconfig:"HTTP_SERVER_ADMIN_PORT" default:"8081" json:"admin_port"`
		ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s" json:"read_timeout"`
		WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s" json:"write_timeout"`
		IdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s" json:"idle_timeout"`
		ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s" json:"shutdown_timeout"`
	}

	// Store configures the shared key-value store connection. Offline
	// suppresses every network call, for builds and tooling that must run
	// without a live store.
	Store struct {
		Address             string        `envconfig:"STORE_ADDRESS" default:"localhost:6379" json:"address"`
		Password            string        `envconfig:"STORE_PASSWORD" default:"" json:"password,omitempty"`
		DB                  uint          `envconfig:"STORE_DB" default:"0" json:"db"`
		PoolSize            uint          `envconfig:"STORE_POOL_SIZE" default:"10" json:"pool_size"`
		MinIdleConns        uint          `envconfig:"STORE_MIN_IDLE_CONNS" default:"3" json:"min_idle_conns"`
		DialTimeout         time.Duration `envconfig:"STORE_DIAL_TIMEOUT" default:"5s" json:"dial_timeout"`
		ReadTimeout         time.Duration `envconfig:"STORE_READ_TIMEOUT" default:"2s" json:"read_timeout"`
		WriteTimeout        time.Duration `envconfig:"STORE_WRITE_TIMEOUT" default:"2s" json:"write_timeout"`
		PoolTimeout         time.Duration `envconfig:"STORE_POOL_TIMEOUT" default:"5s" json:"pool_timeout"`
		ReconnectAttempts   uint          `envconfig:"STORE_RECONNECT_ATTEMPTS" default:"10" json:"reconnect_attempts"`
		MinReconnectBackoff time.Duration `envconfig:"STORE_MIN_RECONNECT_BACKOFF" default:"1s" json:"min_reconnect_backoff"`
		MaxReconnectBackoff time.Duration `envconfig:"STORE_MAX_RECONNECT_BACKOFF" default:"3s" json:"max_reconnect_backoff"`
		Offline             bool          `envconfig:"STORE_OFFLINE" default:"false" json:"offline"`
		Breaker             Breaker       `json:"breaker"`
	}

	Breaker struct {
		Enabled          bool          `envconfig:"STORE_BREAKER_ENABLED" default:"true" json:"enabled"`
		MaxRequests      uint          `envconfig:"STORE_BREAKER_MAX_REQUESTS" default:"1" json:"max_requests"`
		FailureWindow    time.Duration `envconfig:"STORE_BREAKER_FAILURE_WINDOW" default:"60s" json:"failure_window"`
		OpenPeriod       time.Duration `envconfig:"STORE_BREAKER_OPEN_PERIOD" default:"60s" json:"open_period"`
		FailureThreshold uint          `envconfig:"STORE_BREAKER_FAILURE_THRESHOLD" default:"3" json:"failure_threshold"`
	}

	Cache struct {
		// Skip bypasses reads and writes entirely; every lookup goes to
		// the origin. Development convenience.
		Skip bool `envconfig:"CACHE_SKIP" default:"false" json:"skip"`
	}

	// RateLimiting configures the global GCRA middleware. Route-level
	// fixed-window rules live in the ratelimit package tiers.
	RateLimiting struct {
		Enabled           bool     `envconfig:"RATE_LIMITING_ENABLED" default:"true" json:"enabled"`
		RequestsPerSecond uint     `envconfig:"RATE_LIMITING_REQUESTS_PER_SECOND" default:"20" json:"requests_per_second"`
		BurstSize         uint     `envconfig:"RATE_LIMITING_BURST_SIZE" default:"40" json:"burst_size"`
		SkipPaths         []string `envconfig:"RATE_LIMITING_SKIP_PATHS" default:"/v1/health" json:"skip_paths"`
		GracefulDegraded  bool     `envconfig:"RATE_LIMITING_GRACEFUL_DEGRADED" default:"true" json:"graceful_degraded"`
	}

	Dedup struct {
		Enabled bool          `envconfig:"DEDUP_ENABLED" default:"true" json:"enabled"`
		Window  time.Duration `envconfig:"DEDUP_WINDOW" default:"60s" json:"window"`
	}

	Commerce struct {
		BaseURL    string        `envconfig:"COMMERCE_BASE_URL" default:"http://localhost:9000" json:"base_url"`
		Timeout    time.Duration `envconfig:"COMMERCE_TIMEOUT" default:"8s" json:"timeout"`
		MaxRetries uint          `envconfig:"COMMERCE_MAX_RETRIES" default:"3" json:"max_retries"`
	}

	Logging struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info" json:"level"`
		Format string `envconfig:"LOG_FORMAT" default:"json" json:"format"`
	}
)

// Addr returns the host:port the HTTP server binds to.
func (s HTTPServer) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AdminAddr returns the host:port of the internal admin listener.
func (s HTTPServer) AdminAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.AdminPort)
}
