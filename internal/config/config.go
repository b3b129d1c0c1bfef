package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// WarmLocation is a coordinate to pre-fetch into the snapshot cache at startup.
type WarmLocation struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	RequestTimeout time.Duration

	CacheTTL        time.Duration
	CacheBackend    string // "in_memory" or "memcached"
	CacheMaxEntries int

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	GeocoderURL     string
	GeocoderTimeout time.Duration

	SatelliteURL     string
	SatelliteToken   string
	SatelliteTimeout time.Duration

	GroundURL      string
	GroundAPIKey   string
	GroundRadiusKM float64
	GroundTimeout  time.Duration

	CoalesceTimeout time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout time.Duration

	StatsWindow time.Duration

	WarmLocations []WarmLocation
	WarmInterval  time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend    string `yaml:"backend"`
		TTL        string `yaml:"ttl"`
		MaxEntries int    `yaml:"max_entries"`
		Memcached  struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Geocoder struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"geocoder"`

	Satellite struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"satellite"`

	Ground struct {
		URL      string  `yaml:"url"`
		RadiusKM float64 `yaml:"radius_km"`
		Timeout  string  `yaml:"timeout"`
	} `yaml:"ground"`

	Reliability struct {
		CoalesceTimeout string `yaml:"coalesce_timeout"`
		RateLimitRPS    int    `yaml:"rate_limit_rps"`
		RateLimitBurst  int    `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Stats struct {
		Window string `yaml:"window"`
	} `yaml:"stats"`

	Warming struct {
		Locations []WarmLocation `yaml:"locations"`
		Interval  string         `yaml:"interval"`
	} `yaml:"warming"`
}

type secretsFile struct {
	SatelliteAPIToken string `yaml:"satellite_api_token"`
	GroundAPIKey      string `yaml:"ground_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml. Credentials come from SATELLITE_API_TOKEN and
// GROUND_API_KEY env or the secrets file; both are optional, the cascade
// degrades without them. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 5*time.Minute)
	cfg.CacheMaxEntries = fc.Cache.MaxEntries
	if cfg.CacheMaxEntries <= 0 {
		cfg.CacheMaxEntries = 10000
	}
	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.GeocoderURL = fc.Geocoder.URL
	if cfg.GeocoderURL == "" {
		cfg.GeocoderURL = "https://nominatim.openstreetmap.org/reverse"
	}
	cfg.GeocoderTimeout = parseDuration(fc.Geocoder.Timeout, 10*time.Second)

	cfg.SatelliteURL = fc.Satellite.URL
	cfg.SatelliteTimeout = parseDuration(fc.Satellite.Timeout, 3*time.Second)
	cfg.SatelliteToken, err = loadSecret(cwd, "SATELLITE_API_TOKEN", func(s secretsFile) string { return s.SatelliteAPIToken })
	if err != nil {
		return nil, err
	}

	cfg.GroundURL = fc.Ground.URL
	cfg.GroundRadiusKM = fc.Ground.RadiusKM
	if cfg.GroundRadiusKM <= 0 {
		cfg.GroundRadiusKM = 25
	}
	cfg.GroundTimeout = parseDuration(fc.Ground.Timeout, 5*time.Second)
	cfg.GroundAPIKey, err = loadSecret(cwd, "GROUND_API_KEY", func(s secretsFile) string { return s.GroundAPIKey })
	if err != nil {
		return nil, err
	}

	cfg.CoalesceTimeout = parseDuration(fc.Reliability.CoalesceTimeout, 10*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.StatsWindow = parseDuration(fc.Stats.Window, time.Hour)

	cfg.WarmLocations = fc.Warming.Locations
	cfg.WarmInterval = parseDuration(fc.Warming.Interval, 0)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSecret reads a credential from env first, then config/secrets.yaml.
// Missing secrets are not an error: connectors report unavailable instead.
func loadSecret(cwd, envName string, pick func(secretsFile) string) (string, error) {
	if v := os.Getenv(envName); v != "" {
		return v, nil
	}
	secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
	data, err := os.ReadFile(secretsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return pick(sec), nil
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the string is empty. Negative durations fall back to the default.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values. The request
// timeout must comfortably cover a full cascade (satellite + ground + geocoder).
func validate(cfg *Config) error {
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	cascade := cfg.SatelliteTimeout + cfg.GroundTimeout + cfg.GeocoderTimeout
	if cfg.RequestTimeout <= cascade {
		cfg.RequestTimeout = cascade + time.Second
	}
	for _, loc := range cfg.WarmLocations {
		if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
			return fmt.Errorf("warming.locations: invalid coordinate %.4f,%.4f", loc.Latitude, loc.Longitude)
		}
	}
	return nil
}
