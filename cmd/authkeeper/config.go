package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/authkeeper/internal/lifetime"
	"github.com/nkiryanov/authkeeper/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultRedisURL     = "redis://localhost:6379/0"
	defaultJWTExp       = "15m"
	defaultEnvironment  = logger.EnvProduction
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Redis to cache users in, redis://...
	RedisURL string

	// Secret key to sign access tokens
	SecretKey string

	// Access token lifetime ("30", "15m", "1h", ...). Users are cached for the same time
	JWTExp string

	// Environment: dev or prod
	// Refresh cookie is marked Secure in prod
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		RedisURL:    defaultRedisURL,
		JWTExp:      defaultJWTExp,
		Environment: defaultEnvironment,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":  setString(&c.ListenAddr),
		"DATABASE_URI": setString(&c.DatabaseDSN),
		"REDIS_URL":    setString(&c.RedisURL),
		"SECRET_KEY":   setString(&c.SecretKey),
		"JWT_EXP":      setString(&c.JWTExp),
		"LOG_LEVEL":    setString(&c.LogLevel),
		"ENVIRONMENT":  setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("authkeeper", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.RedisURL, "redis", "r", c.RedisURL, "Redis URL")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.JWTExp, "jwt-exp", "j", c.JWTExp, "Access token lifetime (e.g. 30, 15m, 1h, 1d)")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

// AccessTTL is parsed JWTExp
func (c *Config) AccessTTL() (time.Duration, error) {
	return lifetime.Duration(c.JWTExp)
}

// LogValue hides the secret key and URL passwords, so config could be logged on start
func (c *Config) LogValue() slog.Value {
	secret := ""
	if c.SecretKey != "" {
		secret = "[set]"
	}

	return slog.GroupValue(
		slog.String("address", c.ListenAddr),
		slog.String("database", redactURL(c.DatabaseDSN)),
		slog.String("redis", redactURL(c.RedisURL)),
		slog.String("jwt_exp", c.JWTExp),
		slog.String("log_level", c.LogLevel),
		slog.String("environment", c.Environment),
		slog.String("secret_key", secret),
	)
}

// Keyword/value DSN is not parsed, it's hidden entirely
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "[hidden]"
	}
	return u.Redacted()
}

// Validate options service could not start without
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("secret key must be set")
	}

	if c.DatabaseDSN == "" {
		return errors.New("database DSN must be set")
	}

	ttl, err := c.AccessTTL()
	if err != nil {
		return fmt.Errorf("JWT_EXP is not valid: %w", err)
	}
	if ttl <= 0 {
		return errors.New("JWT_EXP must be positive")
	}

	return nil
}
