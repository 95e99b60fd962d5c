package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Configuration keys. The matching environment variable is the upper-cased key
// with dots replaced by underscores, e.g. SPATIAL_DEFAULT_SRID.
const (
	KeyDefaultSRID = "spatial.default_srid"
	KeyEnv         = "app.env"
	KeyPort        = "server.port"
	KeyProvider    = "geocoder.provider"
	KeyAPIKey      = "geocoder.api_key"
	KeyWorkers     = "geocoder.workers"
	KeyRateLimit   = "geocoder.rate_limit"
	KeyAddrPrefix  = "geocoder.addr_prefix"
)

var (
	// ErrInvalidWorkers is returned when the worker count is not a positive integer.
	ErrInvalidWorkers = errors.New("workers must be a positive integer")
	// ErrInvalidRateLimit is returned when the rate limit is negative.
	ErrInvalidRateLimit = errors.New("rate limit must not be negative")
	// ErrInvalidSRID is returned when the default SRID is not an integer.
	ErrInvalidSRID = errors.New("default SRID must be an integer")
)

// Config holds the settings of the spatial service.
//
// Fields:
// - Env: The current environment (local, development, production).
// - Port: The port of the HTTP server.
// - ProviderType: The geocoding provider to use (google, nominatim).
// - APIKey: The API key of the provider (required for Google).
// - Workers: The number of concurrent geocoding workers.
// - RateLimit: Provider requests per second, 0 disables limiting.
// - AddrPrefix: Prefix prepended to every address before geocoding.
//
// The default SRID is not cached here; DefaultSRID reads it from the store on every call.
type Config struct {
	Env          string // Env is the current environment: local, development, production.
	Port         int    // Port is the HTTP server port.
	ProviderType string // ProviderType specifies which geocoding provider to use.
	APIKey       string // APIKey is the key for accessing the provider API.
	Workers      int    // Workers is the number of concurrent geocoding workers.
	RateLimit    int    // RateLimit is the number of provider requests per second.
	AddrPrefix   string // AddrPrefix is prepended to addresses for more accurate geocoding.

	mu    sync.RWMutex
	store *viper.Viper
}

// Load reads the configuration from a .env file (if any), the optional YAML
// file at path and the environment, in increasing order of precedence.
// It returns an error when a typed value cannot be parsed or is out of range.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	store := viper.New()
	store.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	store.AutomaticEnv()

	store.SetDefault(KeyEnv, "production")
	store.SetDefault(KeyPort, 8080)
	store.SetDefault(KeyProvider, "nominatim")
	store.SetDefault(KeyWorkers, 4)
	store.SetDefault(KeyRateLimit, 1)

	if path != "" {
		store.SetConfigFile(path)
		store.SetConfigType("yaml")
		if err := store.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	port, err := cast.ToIntE(store.Get(KeyPort))
	if err != nil {
		return nil, fmt.Errorf("failed to parse server port: %w", err)
	}

	workers, err := cast.ToIntE(store.Get(KeyWorkers))
	if err != nil {
		return nil, fmt.Errorf("failed to parse workers: %w", err)
	}
	if workers <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkers, workers)
	}

	rateLimit, err := cast.ToIntE(store.Get(KeyRateLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate limit: %w", err)
	}
	if rateLimit < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRateLimit, rateLimit)
	}

	if raw := store.Get(KeyDefaultSRID); raw != nil {
		if _, err = toSRID(raw); err != nil {
			return nil, fmt.Errorf("failed to parse default SRID: %w", err)
		}
	}

	return &Config{
		Env:          store.GetString(KeyEnv),
		Port:         port,
		ProviderType: store.GetString(KeyProvider),
		APIKey:       store.GetString(KeyAPIKey),
		Workers:      workers,
		RateLimit:    rateLimit,
		AddrPrefix:   store.GetString(KeyAddrPrefix),
		store:        store,
	}, nil
}

// MustLoad is like Load but panics when the configuration is invalid.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	return cfg
}

// DefaultSRID reports the configured default SRID. It looks the key up on
// every call, so a value changed with Set applies to the next point built.
// An absent, null or non-integer value reports false.
func (c *Config) DefaultSRID() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// IsSet ignores the defaults of bound flags that were never changed; Get does not.
	if !c.store.IsSet(KeyDefaultSRID) {
		return 0, false
	}

	raw := c.store.Get(KeyDefaultSRID)
	if raw == nil {
		return 0, false
	}

	srid, err := toSRID(raw)
	if err != nil {
		return 0, false
	}

	return srid, true
}

// toSRID converts a raw configuration value to an SRID. Only integral values
// are accepted: fractional numbers and booleans are rejected instead of being
// truncated or mapped to 0 and 1.
func toSRID(raw any) (int, error) {
	switch value := raw.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return cast.ToIntE(value)
	case float32:
		return wholeNumber(float64(value))
	case float64:
		return wholeNumber(value)
	case string:
		srid, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidSRID, value)
		}
		return srid, nil
	default:
		return 0, fmt.Errorf("%w: %v of type %T", ErrInvalidSRID, raw, raw)
	}
}

func wholeNumber(value float64) (int, error) {
	if value != math.Trunc(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSRID, value)
	}

	return int(value), nil
}

// Set overrides the value of key at runtime. Setting nil removes the override.
func (c *Config) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Set(key, value)
}

// BindFlag makes flag, once changed on the command line, take precedence for key.
func (c *Config) BindFlag(key string, flag *pflag.Flag) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("failed to bind flag for %s: %w", key, err)
	}

	return nil
}
