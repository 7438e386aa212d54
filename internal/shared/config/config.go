package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	KurrentDB KurrentDBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Log       LogConfig
	Workflow  WorkflowConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Pool limits
	MaxConns          int
	MinConns          int
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB), which
// receives the notification stream.
type KurrentDBConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
	// StreamPrefix is prepended to every stream name, e.g. "precinct-case-status_changed".
	StreamPrefix string
}

// RedisConfig configures the most-wanted snapshot cache.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type LogConfig struct {
	Level string
}

// WorkflowConfig carries the numeric rules of the case and reward workflows.
type WorkflowConfig struct {
	// MaxSubmissionAttempts is the attempt count at which a trainee rejection cancels the case.
	MaxSubmissionAttempts int
	// RewardUnit is the amount, in the smallest currency unit, paid per score point.
	RewardUnit int64
	// MostWantedMinDays is exclusive: a group must be pursued for more days than this.
	MostWantedMinDays  int
	TrackingCodeLength int
	RewardCodeLength   int
	// CodeAttempts bounds the retry-until-unused loop for tracking and reward codes.
	CodeAttempts       int
	RankingRefreshSpec string
	RankingCacheTTL    time.Duration
}

type RateLimitConfig struct {
	PublicRPS   int
	PublicBurst int
}

// DefaultWorkflow returns the workflow rules used when nothing is configured.
func DefaultWorkflow() WorkflowConfig {
	return WorkflowConfig{
		MaxSubmissionAttempts: 3,
		RewardUnit:            20_000_000,
		MostWantedMinDays:     30,
		TrackingCodeLength:    10,
		RewardCodeLength:      6,
		CodeAttempts:          20,
		RankingRefreshSpec:    "@every 10m",
		RankingCacheTTL:       15 * time.Minute,
	}
}

func Load() (*Config, error) {
	def := DefaultWorkflow()
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "precinct"),
			Password: getEnv("DB_PASSWORD", "precinct"),
			Database: getEnv("DB_NAME", "precinct"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxConns:          getEnvInt("DB_MAX_CONNS", 25),
			MinConns:          getEnvInt("DB_MIN_CONNS", 2),
			MaxConnLifetime:   getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime:   getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
			HealthCheckPeriod: getEnvDuration("DB_HEALTH_CHECK_PERIOD", time.Minute),
			ConnectTimeout:    getEnvDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		},
		KurrentDB: KurrentDBConfig{
			Enabled:      getEnvBool("KURRENTDB_ENABLED", true),
			Host:         getEnv("KURRENTDB_HOST", "localhost"),
			Port:         getEnvInt("KURRENTDB_PORT", 2113),
			Insecure:     getEnvBool("KURRENTDB_INSECURE", true),
			Username:     getEnv("KURRENTDB_USERNAME", ""),
			Password:     getEnv("KURRENTDB_PASSWORD", ""),
			StreamPrefix: getEnv("KURRENTDB_STREAM_PREFIX", "precinct"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			Issuer:    getEnv("JWT_ISSUER", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Workflow: WorkflowConfig{
			MaxSubmissionAttempts: getEnvInt("CASE_MAX_SUBMISSION_ATTEMPTS", def.MaxSubmissionAttempts),
			RewardUnit:            int64(getEnvInt("REWARD_UNIT", int(def.RewardUnit))),
			MostWantedMinDays:     getEnvInt("MOST_WANTED_MIN_DAYS", def.MostWantedMinDays),
			TrackingCodeLength:    getEnvInt("REWARD_TRACKING_CODE_LENGTH", def.TrackingCodeLength),
			RewardCodeLength:      getEnvInt("REWARD_CODE_LENGTH", def.RewardCodeLength),
			CodeAttempts:          getEnvInt("REWARD_CODE_ATTEMPTS", def.CodeAttempts),
			RankingRefreshSpec:    getEnv("RANKING_REFRESH_SPEC", def.RankingRefreshSpec),
			RankingCacheTTL:       getEnvDuration("RANKING_CACHE_TTL", def.RankingCacheTTL),
		},
		RateLimit: RateLimitConfig{
			PublicRPS:   getEnvInt("PUBLIC_RATE_LIMIT_RPS", 5),
			PublicBurst: getEnvInt("PUBLIC_RATE_LIMIT_BURST", 10),
		},
	}

	if err := cfg.Database.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Workflow.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the pool limits
func (d DatabaseConfig) Validate() error {
	switch {
	case d.MaxConns < 1:
		return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", d.MaxConns)
	case d.MinConns < 0 || d.MinConns > d.MaxConns:
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS, got %d", d.MinConns)
	case d.ConnectTimeout <= 0:
		return fmt.Errorf("DB_CONNECT_TIMEOUT must be positive, got %s", d.ConnectTimeout)
	}
	return nil
}

// Validate rejects workflow settings that would break the state machines.
func (w WorkflowConfig) Validate() error {
	switch {
	case w.MaxSubmissionAttempts < 2:
		return fmt.Errorf("CASE_MAX_SUBMISSION_ATTEMPTS must be at least 2, got %d", w.MaxSubmissionAttempts)
	case w.RewardUnit <= 0:
		return fmt.Errorf("REWARD_UNIT must be positive, got %d", w.RewardUnit)
	case w.MostWantedMinDays < 0:
		return fmt.Errorf("MOST_WANTED_MIN_DAYS must not be negative, got %d", w.MostWantedMinDays)
	case w.TrackingCodeLength < 6 || w.TrackingCodeLength > 18:
		return fmt.Errorf("REWARD_TRACKING_CODE_LENGTH must be between 6 and 18, got %d", w.TrackingCodeLength)
	case w.RewardCodeLength < 4:
		return fmt.Errorf("REWARD_CODE_LENGTH must be at least 4, got %d", w.RewardCodeLength)
	case w.CodeAttempts < 1:
		return fmt.Errorf("REWARD_CODE_ATTEMPTS must be at least 1, got %d", w.CodeAttempts)
	}
	return nil
}

// IsDevelopment reports whether the server runs in a local environment.
func (s ServerConfig) IsDevelopment() bool {
	return s.Env == "development" || s.Env == "local"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
