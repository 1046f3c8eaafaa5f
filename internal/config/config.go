package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// placeholderAPIKey is the sample value shipped in docs; it counts as unset.
const placeholderAPIKey = "YOUR_API_KEY_HERE"

// Cache backends accepted in cache.backend / CACHE_BACKEND.
const (
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"
	BackendRedis     = "redis"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string
	StaticDir  string

	// PlacesAPIKey is optional; without it every lookup falls back to sample reviews.
	PlacesAPIKey     string
	PlacesAPIURL     string
	PlacesAPITimeout time.Duration
	PlacesMaxReviews int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	RequestTimeout time.Duration
	CacheTTL       time.Duration
	CacheBackend   string

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	WarmHospitals []Hospital

	FallbackMinSample int
	FallbackMaxSample int

	RateLimitRPS       int
	RateLimitBurst     int
	CORSAllowedOrigins []string

	TrafficWindow   time.Duration
	ShutdownTimeout time.Duration
}

// Hospital names one cache warming target.
type Hospital struct {
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
}

type fileConfig struct {
	Server struct {
		Port      string `yaml:"port"`
		StaticDir string `yaml:"static_dir"`
	} `yaml:"server"`

	PlacesAPI struct {
		URL            string `yaml:"url"`
		Timeout        string `yaml:"timeout"`
		MaxReviews     int    `yaml:"max_reviews"`
		CircuitBreaker struct {
			Enabled          bool   `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"places_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
		} `yaml:"redis"`
		WarmHospitals []Hospital `yaml:"warm_hospitals"`
	} `yaml:"cache"`

	Fallback struct {
		MinSample *int `yaml:"min_sample"`
		MaxSample *int `yaml:"max_sample"`
	} `yaml:"fallback"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	Metrics struct {
		TrafficWindow string `yaml:"traffic_window"`
	} `yaml:"metrics"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	PlacesAPIKey  string `yaml:"places_api_key"`
	RedisPassword string `yaml:"redis_password"`
}

// Load reads configuration relative to the working directory. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom reads dir/.env (optional), dir/config/{ENV_NAME}.yaml (default dev) and
// dir/config/secrets.yaml (optional). Environment variables already set win over .env.
func LoadFrom(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(dir, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(dir, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("SERVER_PORT"), fc.Server.Port, "5000")
	cfg.StaticDir = firstNonEmpty(fc.Server.StaticDir, "web")

	cfg.PlacesAPIKey = firstNonEmpty(
		usableKey(os.Getenv("PLACES_API_KEY")),
		usableKey(os.Getenv("GOOGLE_PLACES_API_KEY")),
		usableKey(sec.PlacesAPIKey),
	)
	cfg.PlacesAPIURL = strings.TrimSpace(fc.PlacesAPI.URL)
	cfg.PlacesAPITimeout = parseDurationOrZero(fc.PlacesAPI.Timeout, 10*time.Second)
	cfg.PlacesMaxReviews = fc.PlacesAPI.MaxReviews
	if cfg.PlacesMaxReviews <= 0 {
		cfg.PlacesMaxReviews = 5
	}

	cb := fc.PlacesAPI.CircuitBreaker
	cfg.CircuitBreakerEnabled = cb.Enabled
	cfg.CircuitBreakerFailureThreshold = cb.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = cb.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 25*time.Second)
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 5*time.Minute)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = BackendInMemory
	}

	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RedisAddr = firstNonEmpty(os.Getenv("REDIS_ADDR"), fc.Cache.Redis.Addr, "localhost:6379")
	cfg.RedisPassword = firstNonEmpty(os.Getenv("REDIS_PASSWORD"), sec.RedisPassword)
	cfg.RedisDB = fc.Cache.Redis.DB

	for _, h := range fc.Cache.WarmHospitals {
		name, loc := strings.TrimSpace(h.Name), strings.TrimSpace(h.Location)
		if name == "" || loc == "" {
			continue
		}
		cfg.WarmHospitals = append(cfg.WarmHospitals, Hospital{Name: name, Location: loc})
	}

	cfg.FallbackMinSample = 5
	if fc.Fallback.MinSample != nil {
		cfg.FallbackMinSample = *fc.Fallback.MinSample
	}
	cfg.FallbackMaxSample = 8
	if fc.Fallback.MaxSample != nil {
		cfg.FallbackMaxSample = *fc.Fallback.MaxSample
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}
	cfg.CORSAllowedOrigins = fc.CORS.AllowedOrigins
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	cfg.TrafficWindow = parseDuration(fc.Metrics.TrafficWindow, 60*time.Second)
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

// usableKey trims k and drops the documentation placeholder.
func usableKey(k string) string {
	k = strings.TrimSpace(k)
	if k == placeholderAPIKey {
		return ""
	}
	return k
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is for validate to reject.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate rejects settings the service cannot run with. RequestTimeout is raised
// to cover the two sequential places calls of one lookup.
func validate(cfg *Config) error {
	if cfg.PlacesAPITimeout <= 0 {
		return fmt.Errorf("places_api.timeout must be positive")
	}
	if floor := 2*cfg.PlacesAPITimeout + time.Second; cfg.RequestTimeout < floor {
		cfg.RequestTimeout = floor
	}
	switch cfg.CacheBackend {
	case BackendInMemory, BackendMemcached, BackendRedis:
	default:
		return fmt.Errorf("cache.backend must be in_memory, memcached or redis, got %q", cfg.CacheBackend)
	}
	if cfg.FallbackMinSample < 1 {
		return fmt.Errorf("fallback.min_sample must be at least 1, got %d", cfg.FallbackMinSample)
	}
	if cfg.FallbackMinSample > cfg.FallbackMaxSample {
		return fmt.Errorf("fallback.min_sample (%d) must not exceed fallback.max_sample (%d)", cfg.FallbackMinSample, cfg.FallbackMaxSample)
	}
	if _, err := strconv.Atoi(cfg.ServerPort); err != nil {
		return fmt.Errorf("server.port must be numeric, got %q", cfg.ServerPort)
	}
	return nil
}
