package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or from bare integers, which are taken as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("config: invalid duration node %q", value.Value)
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Weather   WeatherConfig   `yaml:"weather"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Auth      AuthConfig      `yaml:"auth"`
	Observe   ObserveConfig   `yaml:"observe"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// RedisConfig configures the shared cache connection.
type RedisConfig struct {
	// Addr is the host:port of the redis server. Empty disables the
	// shared cache; everything degrades to process-local behavior.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GeminiConfig configures the generative backend.
type GeminiConfig struct {
	// APIKey authenticates against the API. Empty disables the backend;
	// every request is served by the substitute generator.
	APIKey  string   `yaml:"api_key"`
	Model   string   `yaml:"model"`
	Timeout Duration `yaml:"timeout"`
}

// WeatherConfig configures trip weather enrichment.
type WeatherConfig struct {
	APIKey string `yaml:"api_key"`
	Units  string `yaml:"units"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig configures suggestion result TTLs.
type CacheConfig struct {
	TTL     Duration `yaml:"ttl"`
	MockTTL Duration `yaml:"mock_ttl"`
}

// BreakerConfig configures the cache circuit breaker.
type BreakerConfig struct {
	MaxFailures int      `yaml:"max_failures"`
	Cooldown    Duration `yaml:"cooldown"`
	OpTimeout   Duration `yaml:"op_timeout"`
}

// RateLimitConfig configures the default per-identity budget.
type RateLimitConfig struct {
	Limit  int      `yaml:"limit"`
	Window Duration `yaml:"window"`
}

// AuthConfig configures identity extraction.
type AuthConfig struct {
	SigningKey     string `yaml:"signing_key"`
	PrincipalClaim string `yaml:"principal_claim"`
}

// ObserveConfig configures telemetry.
type ObserveConfig struct {
	ServiceName     string  `yaml:"service_name"`
	LogLevel        string  `yaml:"log_level"`
	TracingExporter string  `yaml:"tracing_exporter"`
	MetricsExporter string  `yaml:"metrics_exporter"`
	SamplePct       float64 `yaml:"sample_pct"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:  ServerConfig{Port: "8080"},
		Gemini:  GeminiConfig{Model: "gemini-pro", Timeout: Duration(10 * time.Second)},
		Weather: WeatherConfig{Units: "metric"},
		Store:   StoreConfig{Path: "packops.db"},
		Cache:   CacheConfig{TTL: Duration(24 * time.Hour)},
		Breaker: BreakerConfig{
			MaxFailures: 5,
			Cooldown:    Duration(15 * time.Second),
			OpTimeout:   Duration(800 * time.Millisecond),
		},
		RateLimit: RateLimitConfig{Limit: 20, Window: Duration(time.Hour)},
		Auth:      AuthConfig{PrincipalClaim: "sub"},
		Observe: ObserveConfig{
			ServiceName:     "packops",
			LogLevel:        "info",
			TracingExporter: "none",
			MetricsExporter: "none",
			SamplePct:       1.0,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (or $PACKOPS_CONFIG when path is empty), then environment overrides.
// A .env file in the working directory is applied to the environment
// before anything reads it.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("PACKOPS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		expanded, err := ExpandEnvStrict(string(data))
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("config: server port is required")
	}
	if c.RateLimit.Limit < 0 {
		return fmt.Errorf("config: rate limit must not be negative")
	}
	if c.RateLimit.Window < 0 {
		return fmt.Errorf("config: rate window must not be negative")
	}
	if c.Cache.TTL < 0 || c.Cache.MockTTL < 0 {
		return fmt.Errorf("config: cache TTLs must not be negative")
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Gemini.Model, "GEMINI_MODEL")
	setDuration(&cfg.Gemini.Timeout, "GEMINI_TIMEOUT")
	setString(&cfg.Weather.APIKey, "OPENWEATHER_API_KEY")
	setString(&cfg.Weather.Units, "WEATHER_UNITS")
	setString(&cfg.Store.Path, "STORE_PATH")
	setDuration(&cfg.Cache.TTL, "CACHE_TTL")
	setDuration(&cfg.Cache.MockTTL, "MOCK_CACHE_TTL")
	setInt(&cfg.Breaker.MaxFailures, "BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Cooldown, "BREAKER_COOLDOWN")
	setDuration(&cfg.Breaker.OpTimeout, "BREAKER_OP_TIMEOUT")
	setInt(&cfg.RateLimit.Limit, "RATE_LIMIT")
	setDuration(&cfg.RateLimit.Window, "RATE_WINDOW")
	setString(&cfg.Auth.SigningKey, "JWT_SIGNING_KEY")
	setString(&cfg.Auth.PrincipalClaim, "JWT_PRINCIPAL_CLAIM")
	setString(&cfg.Observe.ServiceName, "SERVICE_NAME")
	setString(&cfg.Observe.LogLevel, "LOG_LEVEL")
	setString(&cfg.Observe.TracingExporter, "TRACING_EXPORTER")
	setString(&cfg.Observe.MetricsExporter, "METRICS_EXPORTER")
	setFloat(&cfg.Observe.SamplePct, "TRACE_SAMPLE_PCT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}
