// Package cachefactory validates configuration and assembles a Coordinator
// from chosen L1/L2 backends and a serializer.
package cachefactory

import (
	"strings"
	"time"

	"github.com/dclobato/resilient-cache/breaker"
	"github.com/dclobato/resilient-cache/cacheerrors"
	"github.com/dclobato/resilient-cache/remotestore"
	"github.com/dclobato/resilient-cache/serializer"
)

// Config is the full set of options controlling both tiers, the serializer,
// and the circuit breaker.
type Config struct {
	L1Enabled bool
	L1MaxSize int
	L1TTL     time.Duration
	L1Backend string // only "ttl" is recognized

	L2Enabled        bool
	L2KeyPrefix      string
	L2TTL            time.Duration
	L2Backend        string // "redis" or "valkey"; both dial go-redis
	L2Host           string
	L2Port           int
	L2DB             int
	L2Password       string
	L2ConnectTimeout time.Duration
	L2SocketTimeout  time.Duration

	Serializer string

	CircuitBreakerEnabled   bool
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

// Defaults returns a Config with every field set to its documented default
// value. Callers override fields before calling Validate/New.
func Defaults() Config {
	return Config{
		L1Enabled: false,
		L1MaxSize: 1000,
		L1TTL:     60 * time.Second,
		L1Backend: "ttl",

		L2Enabled:        true,
		L2KeyPrefix:      "cache",
		L2TTL:            3600 * time.Second,
		L2Backend:        "redis",
		L2Host:           "localhost",
		L2Port:           6379,
		L2DB:             0,
		L2ConnectTimeout: 5 * time.Second,
		L2SocketTimeout:  5 * time.Second,

		Serializer: "binary",

		CircuitBreakerEnabled:   true,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
	}
}

// Validate checks the fields of each enabled tier, the serializer name, and
// the circuit-breaker settings, and returns the first
// *cacheerrors.ConfigurationError found (unknown backend, out-of-range
// number, unknown serializer name). Fields of a disabled tier are not checked.
func (c Config) Validate() error {
	if _, err := serializer.Get(c.Serializer); err != nil {
		return cacheerrors.NewConfigurationError("serializer", c.Serializer, err.Error())
	}

	if c.L1Enabled {
		if c.L1MaxSize < 1 {
			return cacheerrors.NewConfigurationError("l1_maxsize", c.L1MaxSize, "must be >= 1")
		}
		if c.L1TTL < time.Second {
			return cacheerrors.NewConfigurationError("l1_ttl", c.L1TTL, "must be >= 1 second")
		}
		if c.L1Backend != "ttl" {
			return cacheerrors.NewConfigurationError("l1_backend", c.L1Backend, `must be "ttl"`)
		}
	}

	if c.L2Enabled {
		if strings.TrimSpace(c.L2KeyPrefix) == "" {
			return cacheerrors.NewConfigurationError("l2_key_prefix", c.L2KeyPrefix, "must not be empty")
		}
		if c.L2TTL < time.Second {
			return cacheerrors.NewConfigurationError("l2_ttl", c.L2TTL, "must be >= 1 second")
		}
		if c.L2Backend != "redis" && c.L2Backend != "valkey" {
			return cacheerrors.NewConfigurationError("l2_backend", c.L2Backend, `must be "redis" or "valkey"`)
		}
		if c.L2Port < 1 || c.L2Port > 65535 {
			return cacheerrors.NewConfigurationError("l2_port", c.L2Port, "must be in 1..65535")
		}
		if c.L2DB < 0 {
			return cacheerrors.NewConfigurationError("l2_db", c.L2DB, "must be >= 0")
		}
		if c.L2ConnectTimeout < time.Second {
			return cacheerrors.NewConfigurationError("l2_connect_timeout", c.L2ConnectTimeout, "must be >= 1 second")
		}
		if c.L2SocketTimeout < time.Second {
			return cacheerrors.NewConfigurationError("l2_socket_timeout", c.L2SocketTimeout, "must be >= 1 second")
		}
	}

	if err := (breaker.Config{
		Enabled:   c.CircuitBreakerEnabled,
		Threshold: c.CircuitBreakerThreshold,
		Timeout:   c.CircuitBreakerTimeout,
	}).Validate(); err != nil {
		return err
	}

	return nil
}

func (c Config) remoteStoreConfig() remotestore.Config {
	return remotestore.Config{
		Host:           c.L2Host,
		Port:           c.L2Port,
		DB:             c.L2DB,
		Password:       c.L2Password,
		KeyPrefix:      c.L2KeyPrefix,
		TTL:            c.L2TTL,
		ConnectTimeout: c.L2ConnectTimeout,
		SocketTimeout:  c.L2SocketTimeout,
	}
}
