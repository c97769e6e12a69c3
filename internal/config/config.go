package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/air-quality-service/internal/alerts"
	"github.com/kjstillabower/air-quality-service/internal/models"
	"github.com/kjstillabower/air-quality-service/internal/notify"
	"github.com/kjstillabower/air-quality-service/internal/validation"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	// Path is the file the configuration was read from.
	Path string

	ServerPort      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	MockSeed uint64
	Stations []models.Station

	CacheTTL              time.Duration
	CacheBackend          string // "in_memory", "memcached" or "redis"
	CacheCleanupInterval  time.Duration
	CacheWarmSchedule     string
	CacheWarmConcurrency  int
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	RedisPoolSize         int
	RedisTimeout          time.Duration

	KafkaBrokers      []string
	KafkaTopic        string
	KafkaBatchTimeout time.Duration
	KafkaWriteTimeout time.Duration

	AlertSchedule      string
	AlertNotifyTimeout time.Duration
	AlertRules         []alerts.Rule
	Webhooks           []notify.WebhookConfig

	StreamInterval time.Duration
	StreamRegion   string

	RateLimitRPS       int
	RateLimitBurst     int
	VizRateLimit       int
	VizRateLimitWindow time.Duration

	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	IdleThresholdReqPerMin int
	IdleWindow             time.Duration
	MinimumLifespan        time.Duration
	DegradedWindow         time.Duration
	DegradedErrorPct       int

	TrackedStations []string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Mock struct {
		Seed     *uint64          `yaml:"seed"`
		Stations []models.Station `yaml:"stations"`
	} `yaml:"mock"`

	Cache struct {
		Backend         string `yaml:"backend"`
		TTL             string `yaml:"ttl"`
		CleanupInterval string `yaml:"cleanup_interval"`
		Warm            struct {
			Schedule    string `yaml:"schedule"`
			Concurrency int    `yaml:"concurrency"`
		} `yaml:"warm"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size"`
			Timeout  string `yaml:"timeout"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		BatchTimeout string   `yaml:"batch_timeout"`
		WriteTimeout string   `yaml:"write_timeout"`
	} `yaml:"kafka"`

	Alerts struct {
		Schedule      string        `yaml:"schedule"`
		NotifyTimeout string        `yaml:"notify_timeout"`
		Rules         []ruleFile    `yaml:"rules"`
		Webhooks      []webhookFile `yaml:"webhooks"`
	} `yaml:"alerts"`

	Stream struct {
		Interval string `yaml:"interval"`
		Region   string `yaml:"region"`
	} `yaml:"stream"`

	Reliability struct {
		RateLimitRPS       int    `yaml:"rate_limit_rps"`
		RateLimitBurst     int    `yaml:"rate_limit_burst"`
		VizRateLimit       int    `yaml:"viz_rate_limit"`
		VizRateLimitWindow string `yaml:"viz_rate_limit_window"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow         string `yaml:"overload_window"`
		OverloadThresholdPct   int    `yaml:"overload_threshold_pct"`
		IdleThresholdReqPerMin int    `yaml:"idle_threshold_req_per_min"`
		IdleWindow             string `yaml:"idle_window"`
		MinimumLifespan        string `yaml:"minimum_lifespan"`
		DegradedWindow         string `yaml:"degraded_window"`
		DegradedErrorPct       int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Metrics struct {
		TrackedStations []string `yaml:"tracked_stations"`
	} `yaml:"metrics"`
}

type ruleFile struct {
	Name        string  `yaml:"name"`
	Pollutant   string  `yaml:"pollutant"`
	Threshold   float64 `yaml:"threshold"`
	Mode        string  `yaml:"mode"`
	WindowHours int     `yaml:"window_hours"`
	Cooldown    string  `yaml:"cooldown"`
}

type webhookFile struct {
	Name             string `yaml:"name"`
	URL              string `yaml:"url"`
	Timeout          string `yaml:"timeout"`
	RetryAttempts    int    `yaml:"retry_attempts"`
	RetryBaseDelay   string `yaml:"retry_base_delay"`
	RetryMaxDelay    string `yaml:"retry_max_delay"`
	FailureThreshold int    `yaml:"failure_threshold"`
	SuccessThreshold int    `yaml:"success_threshold"`
	BreakerTimeout   string `yaml:"breaker_timeout"`
}

// Path returns config/{ENV_NAME}.yaml (default dev) under the working directory.
func Path() (string, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: get working directory: %w", err)
	}
	return filepath.Join(cwd, "config", env+".yaml"), nil
}

// Load reads configuration from config/{ENV_NAME}.yaml. Call from project root.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads configuration from path and applies environment overrides:
// SERVER_PORT, CACHE_BACKEND, MEMCACHED_ADDRS, REDIS_ADDR, KAFKA_BROKERS, MOCK_SEED.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{Path: path}

	cfg.ServerPort = envOr("SERVER_PORT", fc.Server.Port, "8000")
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.MockSeed = 42
	if fc.Mock.Seed != nil {
		cfg.MockSeed = *fc.Mock.Seed
	}
	if v := strings.TrimSpace(os.Getenv("MOCK_SEED")); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("MOCK_SEED must be an unsigned integer, got %q", v)
		}
		cfg.MockSeed = seed
	}
	cfg.Stations = fc.Mock.Stations

	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 5*time.Minute)
	cfg.CacheBackend = strings.ToLower(envOr("CACHE_BACKEND", fc.Cache.Backend, "in_memory"))
	cfg.CacheCleanupInterval = parseDuration(fc.Cache.CleanupInterval, 10*time.Minute)
	cfg.CacheWarmSchedule = strings.TrimSpace(fc.Cache.Warm.Schedule)
	if cfg.CacheWarmSchedule == "" {
		cfg.CacheWarmSchedule = "@every 15m"
	}
	cfg.CacheWarmConcurrency = fc.Cache.Warm.Concurrency
	if cfg.CacheWarmConcurrency <= 0 {
		cfg.CacheWarmConcurrency = 4
	}
	cfg.MemcachedAddrs = envOr("MEMCACHED_ADDRS", fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.RedisAddr = envOr("REDIS_ADDR", fc.Cache.Redis.Addr, "localhost:6379")
	cfg.RedisPassword = fc.Cache.Redis.Password
	cfg.RedisDB = fc.Cache.Redis.DB
	cfg.RedisPoolSize = fc.Cache.Redis.PoolSize
	if cfg.RedisPoolSize <= 0 {
		cfg.RedisPoolSize = 10
	}
	cfg.RedisTimeout = parseDuration(fc.Cache.Redis.Timeout, 500*time.Millisecond)

	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))
	if len(cfg.KafkaBrokers) == 0 {
		cfg.KafkaBrokers = trimAll(fc.Kafka.Brokers)
	}
	cfg.KafkaTopic = strings.TrimSpace(fc.Kafka.Topic)
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "air-quality-events"
	}
	cfg.KafkaBatchTimeout = parseDuration(fc.Kafka.BatchTimeout, 50*time.Millisecond)
	cfg.KafkaWriteTimeout = parseDuration(fc.Kafka.WriteTimeout, 5*time.Second)

	cfg.AlertSchedule = strings.TrimSpace(fc.Alerts.Schedule)
	if cfg.AlertSchedule == "" {
		cfg.AlertSchedule = "@every 1m"
	}
	cfg.AlertNotifyTimeout = parseDuration(fc.Alerts.NotifyTimeout, 10*time.Second)
	if cfg.AlertRules, err = parseRules(fc.Alerts.Rules); err != nil {
		return nil, err
	}
	for _, wf := range fc.Alerts.Webhooks {
		cfg.Webhooks = append(cfg.Webhooks, notify.WebhookConfig{
			Name:             strings.TrimSpace(wf.Name),
			URL:              strings.TrimSpace(wf.URL),
			Timeout:          parseDuration(wf.Timeout, 2*time.Second),
			RetryAttempts:    wf.RetryAttempts,
			RetryBaseDelay:   parseDuration(wf.RetryBaseDelay, 100*time.Millisecond),
			RetryMaxDelay:    parseDuration(wf.RetryMaxDelay, 2*time.Second),
			FailureThreshold: wf.FailureThreshold,
			SuccessThreshold: wf.SuccessThreshold,
			BreakerTimeout:   parseDuration(wf.BreakerTimeout, 30*time.Second),
		})
	}

	cfg.StreamInterval = parseDuration(fc.Stream.Interval, 30*time.Second)
	cfg.StreamRegion = strings.TrimSpace(fc.Stream.Region)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}
	cfg.VizRateLimit = fc.Reliability.VizRateLimit
	if cfg.VizRateLimit <= 0 {
		cfg.VizRateLimit = 60
	}
	cfg.VizRateLimitWindow = parseDuration(fc.Reliability.VizRateLimitWindow, time.Minute)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.IdleThresholdReqPerMin = fc.Lifecycle.IdleThresholdReqPerMin
	if cfg.IdleThresholdReqPerMin <= 0 {
		cfg.IdleThresholdReqPerMin = 5
	}
	cfg.IdleWindow = parseDuration(fc.Lifecycle.IdleWindow, 5*time.Minute)
	cfg.MinimumLifespan = parseDuration(fc.Lifecycle.MinimumLifespan, 5*time.Minute)
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}
	cfg.TrackedStations = fc.Metrics.TrackedStations

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// KafkaEnabled reports whether events should be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// parseRules converts file rules, falling back to alerts.DefaultRules when none are listed.
func parseRules(in []ruleFile) ([]alerts.Rule, error) {
	if len(in) == 0 {
		return alerts.DefaultRules(), nil
	}
	rules := make([]alerts.Rule, 0, len(in))
	for _, rf := range in {
		var cooldown time.Duration
		if s := strings.TrimSpace(rf.Cooldown); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, fmt.Errorf("alerts.rules %s: cooldown: %w", rf.Name, err)
			}
			cooldown = d
		}
		rules = append(rules, alerts.Rule{
			Name:        rf.Name,
			Pollutant:   rf.Pollutant,
			Threshold:   rf.Threshold,
			Mode:        rf.Mode,
			WindowHours: rf.WindowHours,
			Cooldown:    cooldown,
		})
	}
	return rules, nil
}

// envOr returns the first non-empty of the env var, the file value and the default, trimmed.
func envOr(key, fileVal, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	if v := strings.TrimSpace(fileVal); v != "" {
		return v
	}
	return defaultVal
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return trimAll(strings.Split(s, ","))
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. It normalises alert rules in place.
func validate(cfg *Config) error {
	if _, err := strconv.Atoi(cfg.ServerPort); err != nil {
		return fmt.Errorf("server.port must be numeric, got %q", cfg.ServerPort)
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached", "redis":
	default:
		return fmt.Errorf("cache.backend must be in_memory, memcached or redis, got %q", cfg.CacheBackend)
	}
	if err := alerts.ValidateRules(cfg.AlertRules); err != nil {
		return fmt.Errorf("alerts.rules: %w", err)
	}
	seen := make(map[string]struct{}, len(cfg.Webhooks))
	for i, wh := range cfg.Webhooks {
		if wh.Name == "" || wh.URL == "" {
			return fmt.Errorf("alerts.webhooks[%d]: name and url are required", i)
		}
		if _, dup := seen[wh.Name]; dup {
			return fmt.Errorf("alerts.webhooks: duplicate name %q", wh.Name)
		}
		seen[wh.Name] = struct{}{}
	}
	for i, st := range cfg.Stations {
		id, err := validation.ValidateStationID(st.StationID)
		if err != nil {
			return fmt.Errorf("mock.stations[%d]: station_id %q: %w", i, st.StationID, err)
		}
		cfg.Stations[i].StationID = id
	}
	return nil
}
