package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName       string
	AppVersion    string
	Environment   string
	HTTPAddr      string
	AuthJWTSecret string
	AuthIssuer    string
	SnowflakeNode int64

	// PlatformOperators may provision companies and grant license seats.
	PlatformOperators []string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Store     StoreConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Events    EventsConfig
	Scheduler SchedulerConfig
	Bootstrap BootstrapConfig
}

// StoreConfig bounds every store round-trip.
type StoreConfig struct {
	Timeout       time.Duration
	RetryAttempts uint
	RetryDelay    time.Duration
	RetryMaxDelay time.Duration
}

// RedisConfig is shared by rate limiting, the scheduler lock and the event relay.
// An empty Addr leaves all three on their redis-free fallbacks.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled           bool
	InviteAccessRate  float64
	InviteAccessBurst int
}

type EventsConfig struct {
	Stream       string
	StreamMaxLen int64
	RelayBatch   int
}

type SchedulerConfig struct {
	Enabled             bool
	RunInterval         time.Duration
	BatchSize           int
	ReservationStaleAge time.Duration
	EnabledJobs         []string
}

type BootstrapConfig struct {
	CompanyName  string
	AdminUserID  string
	LicenseCount int
	MaxProjects  int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "assessly"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthIssuer:    strings.TrimSpace(getenv("AUTH_JWT_ISSUER", "")),
		SnowflakeNode: getenvInt64("SNOWFLAKE_NODE", 1),

		PlatformOperators: parseList(getenv("AUTH_PLATFORM_OPERATORS", "")),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "assessly"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "assessly.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Store: StoreConfig{
			Timeout:       getenvDuration("STORE_TIMEOUT", 5*time.Second),
			RetryAttempts: uint(getenvInt("STORE_RETRY_ATTEMPTS", 3)),
			RetryDelay:    getenvDuration("STORE_RETRY_DELAY", 50*time.Millisecond),
			RetryMaxDelay: getenvDuration("STORE_RETRY_MAX_DELAY", time.Second),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getenvBool("RATE_LIMIT_ENABLED", false),
			InviteAccessRate:  getenvFloat("RATE_LIMIT_INVITE_ACCESS_RATE", 2),
			InviteAccessBurst: getenvInt("RATE_LIMIT_INVITE_ACCESS_BURST", 20),
		},
		Events: EventsConfig{
			Stream:       getenv("EVENTS_STREAM", "assessly:lifecycle"),
			StreamMaxLen: getenvInt64("EVENTS_STREAM_MAX_LEN", 100000),
			RelayBatch:   getenvInt("EVENTS_RELAY_BATCH", 200),
		},
		Scheduler: SchedulerConfig{
			Enabled:             getenvBool("SCHEDULER_ENABLED", true),
			RunInterval:         getenvDuration("SCHEDULER_INTERVAL", time.Minute),
			BatchSize:           getenvInt("SCHEDULER_BATCH_SIZE", 100),
			ReservationStaleAge: getenvDuration("SCHEDULER_RESERVATION_STALE_AGE", 15*time.Minute),
			EnabledJobs:         parseList(getenv("SCHEDULER_JOBS", "")),
		},
		Bootstrap: BootstrapConfig{
			CompanyName:  strings.TrimSpace(getenv("BOOTSTRAP_COMPANY_NAME", "")),
			AdminUserID:  strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_USER_ID", "")),
			LicenseCount: getenvInt("BOOTSTRAP_LICENSE_COUNT", 10),
			MaxProjects:  getenvInt("BOOTSTRAP_MAX_PROJECTS", 5),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go duration strings ("5s") or bare milliseconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
