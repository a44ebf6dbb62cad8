package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/space-operator/spo-go/pkg/signer"
)

type (
	// Config holds configuration settings for the relay
	Config struct {
		// Service
		WSURL          string
		RESTURL        string
		RequestTimeout time.Duration

		// Credentials
		Token      string
		TokenRedis RedisConfig

		// Work
		FlowRunID     string
		FlowRunToken  string
		SignerKeypair string

		// Archiving
		ArchiveBucketURL string
		ArchivePrefix    string

		LogLevel        string
		ShutdownTimeout time.Duration
	}

	// RedisConfig locates a token stored in Redis
	RedisConfig struct {
		Addr     string
		Password string
		Key      string
		DB       int
	}
)

const (
	DefaultWSURL           = "wss://dev-api.spaceoperator.com/ws"
	DefaultRESTURL         = "https://dev-api.spaceoperator.com"
	DefaultRequestTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultRedisKey        = "spo:token"
	DefaultArchivePrefix   = "flow-runs"

	MaxRedisDB = 15
)

var (
	ErrInvalidWSURL           = errors.New("invalid WebSocket URL")
	ErrInvalidRESTURL         = errors.New("invalid REST URL")
	ErrInvalidRequestTimeout  = errors.New("request timeout must be positive")
	ErrInvalidShutdownTimeout = errors.New(
		"shutdown timeout must be positive",
	)
	ErrConflictingCredentials = errors.New(
		"token and token redis address are mutually exclusive",
	)
	ErrRedisKeyRequired  = errors.New("token redis key is required")
	ErrFlowRunIDRequired = errors.New("flow run token requires flow run id")
	ErrInvalidKeypair    = errors.New("invalid signer keypair")
)

// NewDefaultConfig creates a configuration pointing at the development
// service with no credentials
func NewDefaultConfig() *Config {
	return &Config{
		WSURL:          DefaultWSURL,
		RESTURL:        DefaultRESTURL,
		RequestTimeout: DefaultRequestTimeout,
		TokenRedis: RedisConfig{
			Key: DefaultRedisKey,
		},
		ArchivePrefix:   DefaultArchivePrefix,
		LogLevel:        "info",
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed
func (c *Config) LoadFromEnv() error {
	loadEnvString("SPO_WS_URL", &c.WSURL)
	loadEnvString("SPO_REST_URL", &c.RESTURL)
	loadEnvString("SPO_TOKEN", &c.Token)
	loadEnvString("SPO_TOKEN_REDIS_ADDR", &c.TokenRedis.Addr)
	loadEnvString("SPO_TOKEN_REDIS_PASSWORD", &c.TokenRedis.Password)
	loadEnvString("SPO_TOKEN_REDIS_KEY", &c.TokenRedis.Key)
	loadEnvString("SPO_FLOW_RUN_ID", &c.FlowRunID)
	loadEnvString("SPO_FLOW_RUN_TOKEN", &c.FlowRunToken)
	loadEnvString("SPO_SIGNER_KEYPAIR", &c.SignerKeypair)
	loadEnvString("SPO_ARCHIVE_BUCKET_URL", &c.ArchiveBucketURL)
	loadEnvString("SPO_ARCHIVE_PREFIX", &c.ArchivePrefix)
	loadEnvString("LOG_LEVEL", &c.LogLevel)

	if err := loadEnvInt(
		"SPO_TOKEN_REDIS_DB", &c.TokenRedis.DB, -1, MaxRedisDB,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"SPO_REQUEST_TIMEOUT", &c.RequestTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout,
	); err != nil {
		return err
	}
	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if !hasScheme(c.WSURL, "ws", "wss") {
		return fmt.Errorf("%w: %q", ErrInvalidWSURL, c.WSURL)
	}

	if !hasScheme(c.RESTURL, "http", "https") {
		return fmt.Errorf("%w: %q", ErrInvalidRESTURL, c.RESTURL)
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidRequestTimeout
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	if c.Token != "" && c.TokenRedis.Addr != "" {
		return ErrConflictingCredentials
	}

	if c.TokenRedis.Addr != "" && c.TokenRedis.Key == "" {
		return ErrRedisKeyRequired
	}

	if c.FlowRunToken != "" && c.FlowRunID == "" {
		return ErrFlowRunIDRequired
	}

	if c.SignerKeypair != "" {
		if _, err := signer.FromBase58(c.SignerKeypair); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidKeypair, err)
		}
	}

	return nil
}

func hasScheme(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return true
		}
	}
	return false
}

func loadEnvString(key string, dst *string) {
	if s := os.Getenv(key); s != "" {
		*dst = s
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

func loadEnvDuration(key string, dst *time.Duration) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	*dst = d
	return nil
}
