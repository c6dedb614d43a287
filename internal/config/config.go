// Package config builds the service configuration from the environment.
// An optional .env file is loaded first; real environment variables win.
package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	EnvLocal      = "local"
	EnvProduction = "production"

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// DevnetRPCURL is the ledger endpoint used when none is configured outside production
const DevnetRPCURL = "https://api.devnet.solana.com"

// SecretsDir is where secret files are read from. Tests override it.
var SecretsDir = "/run/secrets"

// Config holds runtime settings
type Config struct {
	App     AppConfig
	Ledger  LedgerConfig
	Access  AccessConfig
	Nonce   NonceConfig
	Session SessionConfig
	Events  EventsConfig
	Agent   AgentConfig
}

type AppConfig struct {
	Env      string `validate:"required,oneof=local production"`
	HTTPAddr string `validate:"required"`
	LogLevel string `validate:"required,oneof=debug info warn error"`
}

type LedgerConfig struct {
	RPCURL     string        `validate:"required,url"`
	Commitment string        `validate:"required,oneof=confirmed finalized"`
	Timeout    time.Duration `validate:"gt=0"`
	Retries    uint64        `validate:"lte=5"`
}

type AccessConfig struct {
	// Empty outside production makes the gated endpoints answer 500
	Mint      string
	Threshold decimal.Decimal `validate:"-"`
}

type NonceConfig struct {
	TTL      time.Duration `validate:"gt=0"`
	Store    string        `validate:"required,oneof=memory redis"`
	RedisURL string        `validate:"required_if=Store redis"`
}

type SessionConfig struct {
	TTL        time.Duration `validate:"gt=0"`
	Issuer     string        `validate:"required"`
	SigningKey string        `validate:"-"` // PEM, may be empty outside production
}

type EventsConfig struct {
	Enabled  bool
	RedisURL string `validate:"required_if=Enabled true"`
}

type AgentConfig struct {
	// Empty makes the chat endpoint answer 500
	APIKey  string `validate:"-"`
	Model   string `validate:"required"`
	BaseURL string `validate:"omitempty,url"`
}

// IsProduction reports whether the service runs with production guarantees
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

// Load reads .env (if present) and the process environment, then validates
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables alone
func FromEnv() (*Config, error) {
	var errs []error
	duration := func(key string, def time.Duration) time.Duration {
		v := GetEnvVar(key)
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return d
	}

	cfg := &Config{
		App: AppConfig{
			Env:      valueOr(GetEnvVar("APP_ENV"), EnvLocal),
			HTTPAddr: valueOr(GetEnvVar("HTTP_ADDR"), ":9000"),
			LogLevel: strings.ToLower(valueOr(GetEnvVar("LOG_LEVEL"), "info")),
		},
		Ledger: LedgerConfig{
			RPCURL:     GetEnvVar("SOLANA_RPC_URL"),
			Commitment: valueOr(GetEnvVar("LEDGER_COMMITMENT"), "confirmed"),
			Timeout:    duration("LEDGER_TIMEOUT", 10*time.Second),
			Retries:    2,
		},
		Access: AccessConfig{
			Mint:      GetEnvVar("TOKEN_MINT"),
			Threshold: decimal.NewFromInt(1),
		},
		Nonce: NonceConfig{
			TTL:      duration("NONCE_TTL", 5*time.Minute),
			Store:    valueOr(GetEnvVar("NONCE_STORE"), StoreMemory),
			RedisURL: GetEnvVar("REDIS_URL"),
		},
		Session: SessionConfig{
			TTL:        duration("SESSION_TTL", 3*time.Minute),
			Issuer:     valueOr(GetEnvVar("SESSION_ISSUER"), "tokengate"),
			SigningKey: GetSecretOrEnv("session_signing_key", "SESSION_SIGNING_KEY"),
		},
		Events: EventsConfig{
			RedisURL: GetEnvVar("REDIS_URL"),
		},
		Agent: AgentConfig{
			APIKey:  GetSecretOrEnv("openai_api_key", "OPENAI_API_KEY"),
			Model:   valueOr(GetEnvVar("OPENAI_MODEL"), "gpt-4o-mini"),
			BaseURL: GetEnvVar("OPENAI_BASE_URL"),
		},
	}

	if v := GetEnvVar("LEDGER_RETRIES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid LEDGER_RETRIES: %w", err))
		}
		cfg.Ledger.Retries = n
	}
	if v := GetEnvVar("ACCESS_THRESHOLD"); v != "" {
		th, err := decimal.NewFromString(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid ACCESS_THRESHOLD: %w", err))
		}
		cfg.Access.Threshold = th
	}
	if v := GetEnvVar("EVENTS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid EVENTS_ENABLED: %w", err))
		}
		cfg.Events.Enabled = b
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if cfg.Ledger.RPCURL == "" && !cfg.IsProduction() {
		cfg.Ledger.RPCURL = DevnetRPCURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and production-only rules
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if !c.Access.Threshold.IsPositive() {
		return errors.New("invalid configuration: ACCESS_THRESHOLD must be positive")
	}

	if c.IsProduction() {
		if c.Access.Mint == "" {
			return errors.New("invalid configuration: TOKEN_MINT is required in production")
		}
		u, err := url.Parse(c.Ledger.RPCURL)
		if err != nil || u.Scheme != "https" {
			return errors.New("invalid configuration: SOLANA_RPC_URL must use https in production")
		}
		if c.Session.SigningKey == "" {
			return errors.New("invalid configuration: SESSION_SIGNING_KEY is required in production")
		}
	}

	if c.Session.SigningKey != "" {
		if _, err := c.SigningKey(); err != nil {
			return err
		}
	}

	return nil
}

// SigningKey parses the PEM encoded session signing key
func (c *Config) SigningKey() (*ecdsa.PrivateKey, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(c.Session.SigningKey))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: SESSION_SIGNING_KEY: %w", err)
	}
	return key, nil
}

// GetEnvVar returns the trimmed value of an environment variable
func GetEnvVar(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// GetSecretOrEnv prefers a mounted secret file over the environment variable
func GetSecretOrEnv(secretName, envVarName string) string {
	content, err := os.ReadFile(filepath.Join(SecretsDir, secretName))
	if err == nil {
		return strings.TrimSpace(string(content))
	}
	return GetEnvVar(envVarName)
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
