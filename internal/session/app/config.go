package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/cryptox"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/jwtx"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	HTTPAddr string   // listen address (default: :8080)
	Issuer   string   // iss claim of access tokens
	Audience []string // aud claim; the first entry is also what the verifier requires

	AccessTTL  time.Duration // default: 15m
	RefreshTTL time.Duration // default: 168h
	Leeway     time.Duration // clock skew tolerated when verifying access tokens

	SigningAlg     string // EdDSA, ES256 or HS256 (default: EdDSA)
	SigningSecret  string // HS256 only, at least 32 bytes
	SigningKID     string // optional; HS256 replicas must agree on it
	SigningKeyFile string // optional PKCS8 PEM for EdDSA/ES256, sealed if MasterKeyFile is set
	MasterKeyFile  string // optional master secret that seals SigningKeyFile

	StoreDriver      string // memory, sqlite, postgres or redis (default: sqlite)
	DBDSN            string // sqlite DSN
	PostgresDSN      string
	PostgresMaxConns int32
	RedisAddr        string // comma separated for a cluster
	RedisPassword    string
	RedisDB          int
	RedisPrefix      string
	AutoMigrate      bool // apply schema migrations at startup (default: true)

	IssueToken string // shared secret the login flow presents to POST /v1/sessions

	PurgeInterval time.Duration // 0 disables the sweep (default: 1h)
	ShutdownGrace time.Duration // default: 15s

	Env       string // development, production (default: development)
	LogLevel  string // debug, info, warn, error (default: info)
	LogFormat string // json, text (default: json)
	Version   string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr: getEnvOrDefault("SESSION_HTTP_ADDR", ":8080"),
		Issuer:   getEnvOrDefault("SESSION_ISSUER", "http://localhost:8080"),
		Audience: splitList(os.Getenv("SESSION_AUDIENCE")),

		AccessTTL:  getEnvDurationOrDefault("SESSION_ACCESS_TTL", 15*time.Minute),
		RefreshTTL: getEnvDurationOrDefault("SESSION_REFRESH_TTL", 7*24*time.Hour),
		Leeway:     getEnvDurationOrDefault("SESSION_CLOCK_LEEWAY", 0),

		SigningAlg:     getEnvOrDefault("SESSION_SIGNING_ALG", jwtx.AlgorithmEdDSA),
		SigningSecret:  os.Getenv("SESSION_SIGNING_SECRET"),
		SigningKID:     os.Getenv("SESSION_SIGNING_KID"),
		SigningKeyFile: os.Getenv("SESSION_SIGNING_KEY_FILE"),
		MasterKeyFile:  os.Getenv("SESSION_MASTER_KEY_FILE"),

		StoreDriver:      getEnvOrDefault("SESSION_STORE_DRIVER", DriverSQLite),
		DBDSN:            getEnvOrDefault("SESSION_DB_DSN", "file:sessions.db?_pragma=busy_timeout(5000)"),
		PostgresDSN:      os.Getenv("SESSION_POSTGRES_DSN"),
		PostgresMaxConns: int32(getEnvIntOrDefault("SESSION_POSTGRES_MAX_CONNS", 0)),
		RedisAddr:        getEnvOrDefault("SESSION_REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("SESSION_REDIS_PASSWORD"),
		RedisDB:          getEnvIntOrDefault("SESSION_REDIS_DB", 0),
		RedisPrefix:      os.Getenv("SESSION_REDIS_PREFIX"),
		AutoMigrate:      getEnvBoolOrDefault("SESSION_AUTO_MIGRATE", true),

		IssueToken: os.Getenv("SESSION_ISSUE_TOKEN"),

		PurgeInterval: getEnvDurationOrDefault("SESSION_PURGE_INTERVAL", time.Hour),
		ShutdownGrace: getEnvDurationOrDefault("SESSION_SHUTDOWN_GRACE", 15*time.Second),

		Env:       getEnvOrDefault("ENV", "development"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Version:   getEnvOrDefault("VERSION", "dev"),
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Issuer == "" {
		add("SESSION_ISSUER must not be empty")
	}
	if c.AccessTTL <= 0 {
		add("SESSION_ACCESS_TTL must be positive, got %s", c.AccessTTL)
	}
	if c.RefreshTTL <= 0 {
		add("SESSION_REFRESH_TTL must be positive, got %s", c.RefreshTTL)
	}
	if c.AccessTTL > 0 && c.RefreshTTL > 0 && c.AccessTTL >= c.RefreshTTL {
		add("SESSION_ACCESS_TTL (%s) must be shorter than SESSION_REFRESH_TTL (%s)", c.AccessTTL, c.RefreshTTL)
	}
	if c.Leeway < 0 {
		add("SESSION_CLOCK_LEEWAY must not be negative")
	}

	switch c.SigningAlg {
	case jwtx.AlgorithmEdDSA, jwtx.AlgorithmES256:
		if c.MasterKeyFile != "" && c.SigningKeyFile == "" {
			add("SESSION_MASTER_KEY_FILE is set but SESSION_SIGNING_KEY_FILE is not")
		}
	case jwtx.AlgorithmHS256:
		if len(c.SigningSecret) < cryptox.MinSecretLen {
			add("SESSION_SIGNING_SECRET must be at least %d bytes for HS256", cryptox.MinSecretLen)
		}
		if c.SigningKeyFile != "" {
			add("SESSION_SIGNING_KEY_FILE is not used with HS256")
		}
	default:
		add("unknown SESSION_SIGNING_ALG %q (supported: EdDSA, ES256, HS256)", c.SigningAlg)
	}

	switch c.StoreDriver {
	case DriverMemory, DriverRedis:
	case DriverSQLite:
		if c.DBDSN == "" {
			add("SESSION_DB_DSN must not be empty for the sqlite driver")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			add("SESSION_POSTGRES_DSN is required for the postgres driver")
		}
	default:
		add("unknown SESSION_STORE_DRIVER %q (supported: memory, sqlite, postgres, redis)", c.StoreDriver)
	}

	if c.IssueToken == "" {
		add("SESSION_ISSUE_TOKEN is required")
	} else if len(c.IssueToken) < cryptox.MinSecretLen {
		add("SESSION_ISSUE_TOKEN must be at least %d bytes", cryptox.MinSecretLen)
	}

	if c.PurgeInterval < 0 {
		add("SESSION_PURGE_INTERVAL must not be negative")
	}

	return errors.Join(errs...)
}

// VerifyAudience is the audience access tokens must carry, if any.
func (c Config) VerifyAudience() string {
	if len(c.Audience) == 0 {
		return ""
	}
	return c.Audience[0]
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
