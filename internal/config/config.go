package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/patrickwarner/openwrap-setup/internal/gam"
	"github.com/patrickwarner/openwrap-setup/internal/macros"
	"github.com/patrickwarner/openwrap-setup/internal/ratelimit"
)

// defaultRatePerSecond is the sustained ad server API call rate. A
// non-positive GAM_RATE_LIMIT_PER_SECOND falls back to it; throttling is
// switched off with GAM_RATE_LIMIT_ENABLED=false.
const defaultRatePerSecond = 4.0

// Config holds application configuration derived from environment variables.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ServiceName  string
	Environment  string

	RedisAddr     string
	ClickHouseDSN string
	PostgresDSN   string

	// Ad server API
	GAMEndpoint        string
	GAMNetworkCode     string
	GAMApplicationName string
	GAMAccessToken     string
	GAMTimeout         time.Duration
	GAMPageSize        int
	GAMRateLimit       bool
	GAMRateCapacity    int
	GAMRatePerSecond   float64

	// Setup runner
	OrderLimit         int
	TargetingCacheSize int
	LockTTL            time.Duration
	LockWait           time.Duration
	DryRun             bool

	// Creative name templates; empty values fall back to the defaults.
	DisplayNameTemplate  string
	NativeNameTemplate   string
	VideoNameTemplate    string
	AdPodNameTemplate    string
	AdPodVastURLTemplate string

	// Database connection pooling configuration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// Load reads .env files when present, then parses environment variables and
// returns a Config populated with defaults when variables are absent.
func Load(envFiles ...string) Config {
	_ = godotenv.Load(envFiles...)

	cfg := Config{}

	cfg.Port = getenv("PORT", "8787")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	// setup runs create hundreds of objects; give them room
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 10*time.Minute)
	cfg.ServiceName = getenv("SERVICE_NAME", "owsetup")
	cfg.Environment = getenv("ENV", "development")

	// Storage is optional; an empty value disables the sink.
	cfg.RedisAddr = getenv("REDIS_ADDR", "")
	cfg.ClickHouseDSN = getenv("CLICKHOUSE_DSN", "")
	cfg.PostgresDSN = getenv("POSTGRES_DSN", "")

	cfg.GAMEndpoint = getenv("GAM_ENDPOINT", gam.DefaultEndpoint)
	cfg.GAMNetworkCode = getenv("GAM_NETWORK_CODE", "")
	cfg.GAMApplicationName = getenv("GAM_APPLICATION_NAME", "owsetup")
	cfg.GAMAccessToken = getenv("GAM_ACCESS_TOKEN", "")
	cfg.GAMTimeout = envDuration("GAM_TIMEOUT", 60*time.Second)
	cfg.GAMPageSize = envInt("GAM_PAGE_SIZE", 500)
	cfg.GAMRateLimit = envBool("GAM_RATE_LIMIT_ENABLED", true)
	cfg.GAMRateCapacity = envInt("GAM_RATE_LIMIT_CAPACITY", 8)
	cfg.GAMRatePerSecond = envFloat("GAM_RATE_LIMIT_PER_SECOND", defaultRatePerSecond)
	if cfg.GAMRatePerSecond <= 0 {
		cfg.GAMRatePerSecond = defaultRatePerSecond
	}

	cfg.OrderLimit = envInt("ORDER_LINE_ITEM_LIMIT", 450)
	cfg.TargetingCacheSize = envInt("TARGETING_CACHE_SIZE", 65536)
	cfg.LockTTL = envDuration("LOCK_TTL", 30*time.Second)
	cfg.LockWait = envDuration("LOCK_WAIT", 10*time.Second)
	cfg.DryRun = envBool("DRY_RUN", false)

	cfg.DisplayNameTemplate = getenv("DISPLAY_NAME_TEMPLATE", "")
	cfg.NativeNameTemplate = getenv("NATIVE_NAME_TEMPLATE", "")
	cfg.VideoNameTemplate = getenv("VIDEO_NAME_TEMPLATE", "")
	cfg.AdPodNameTemplate = getenv("ADPOD_NAME_TEMPLATE", "")
	cfg.AdPodVastURLTemplate = getenv("ADPOD_VAST_URL_TEMPLATE", "")

	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 2)
	cfg.DBConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.DBConnMaxIdleTime = envDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute)

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	return cfg
}

// GAMClientConfig returns the SOAP client settings.
func (c Config) GAMClientConfig() gam.ClientConfig {
	return gam.ClientConfig{
		Endpoint:        c.GAMEndpoint,
		NetworkCode:     c.GAMNetworkCode,
		ApplicationName: c.GAMApplicationName,
		AccessToken:     c.GAMAccessToken,
		Timeout:         c.GAMTimeout,
		PageSize:        c.GAMPageSize,
		RateLimit: ratelimit.Config{
			Capacity:   c.GAMRateCapacity,
			RefillRate: c.GAMRatePerSecond,
			Enabled:    c.GAMRateLimit,
		},
	}
}

// NameTemplates overlays configured templates on the defaults.
func (c Config) NameTemplates() macros.Templates {
	t := macros.DefaultTemplates()
	if c.DisplayNameTemplate != "" {
		t.DisplayName = c.DisplayNameTemplate
	}
	if c.NativeNameTemplate != "" {
		t.NativeName = c.NativeNameTemplate
	}
	if c.VideoNameTemplate != "" {
		t.VideoName = c.VideoNameTemplate
	}
	if c.AdPodNameTemplate != "" {
		t.AdPodName = c.AdPodNameTemplate
	}
	if c.AdPodVastURLTemplate != "" {
		t.AdPodVastURL = c.AdPodVastURLTemplate
	}
	return t
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}

// envList splits a comma separated variable, dropping blanks.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envInts parses a comma separated list of integers. Invalid entries are
// kept as zero so validation reports them.
func envInts(key string) []int {
	var out []int
	for _, part := range envList(key) {
		i, err := strconv.Atoi(part)
		if err != nil {
			i = 0
		}
		out = append(out, i)
	}
	return out
}

// envInt64s parses a comma separated list of ids.
func envInt64s(key string) []int64 {
	var out []int64
	for _, part := range envList(key) {
		i, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			i = 0
		}
		out = append(out, i)
	}
	return out
}
