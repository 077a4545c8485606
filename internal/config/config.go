// Package config loads the callflow server configuration.
//
// Precedence, lowest first: DefaultConfig, the YAML file, CALLFLOW_* environment
// variables, then command-line flags applied by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by applyEnvOverrides.
const (
	EnvListen       = "CALLFLOW_LISTEN"
	EnvCatalog      = "CALLFLOW_CATALOG"
	EnvPublicURL    = "CALLFLOW_PUBLIC_URL"
	EnvAgentNumber  = "CALLFLOW_AGENT_NUMBER"
	EnvVoice        = "CALLFLOW_VOICE"
	EnvLogLevel     = "CALLFLOW_LOG_LEVEL"
	EnvLogFormat    = "CALLFLOW_LOG_FORMAT"
	EnvIdleTimeout  = "CALLFLOW_IDLE_TIMEOUT"
	EnvReapInterval = "CALLFLOW_REAP_INTERVAL"
	EnvRedisAddr    = "CALLFLOW_REDIS_ADDR"
	EnvRedisPass    = "CALLFLOW_REDIS_PASSWORD"
	EnvRedisDB      = "CALLFLOW_REDIS_DB"
	EnvLookupURL    = "CALLFLOW_LOOKUP_URL"
	EnvAccountSID   = "TWILIO_ACCOUNT_SID"
	EnvAuthToken    = "TWILIO_AUTH_TOKEN"
	EnvFromNumber   = "TWILIO_PHONE_NUMBER"
	EnvMaskPII      = "CALLFLOW_MASK_PII"
	EnvEncryptKey   = "CALLFLOW_ENCRYPTION_KEY"
)

// Config is the full server configuration.
type Config struct {
	Listen      string `yaml:"listen"`
	Catalog     string `yaml:"catalog"`
	PublicURL   string `yaml:"public_url"`
	AgentNumber string `yaml:"agent_number"`
	Voice       string `yaml:"voice"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	ReapInterval time.Duration `yaml:"reap_interval"`
	MaxInputSize int           `yaml:"max_input_size"`

	Redis  RedisConfig  `yaml:"redis"`
	Twilio TwilioConfig `yaml:"twilio"`
	Lookup  LookupConfig  `yaml:"lookup"`
	Privacy PrivacyConfig `yaml:"privacy"`
}

// RedisConfig selects the redis session store when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// TwilioConfig holds REST credentials for outbound dialing.
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
}

// LookupConfig selects the HTTP record resolver when URL is set.
type LookupConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// PrivacyConfig controls what reaches the session store.
type PrivacyConfig struct {
	// MaskPII masks caller addresses and redacts PIIPatterns in speech transcripts.
	MaskPII     bool     `yaml:"mask_pii"`
	PIIPatterns []string `yaml:"pii_patterns"`

	// EncryptionKey is a base64 AES-256 key; when set, caller addresses are
	// encrypted at rest. FallbackKeys still decrypt after a rotation.
	EncryptionKey string   `yaml:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys"`
}

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() *Config {
	return &Config{
		Listen:       ":8080",
		Catalog:      "airline",
		AgentNumber:  "+911234567890",
		Voice:        "Polly.Aditi",
		LogLevel:     "info",
		LogFormat:    "text",
		IdleTimeout:  10 * time.Minute,
		ReapInterval: 30 * time.Second,
		Redis: RedisConfig{
			Prefix: "callflow:",
		},
		Lookup: LookupConfig{
			Timeout: 5 * time.Second,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	str := map[string]*string{
		EnvListen:      &c.Listen,
		EnvCatalog:     &c.Catalog,
		EnvPublicURL:   &c.PublicURL,
		EnvAgentNumber: &c.AgentNumber,
		EnvVoice:       &c.Voice,
		EnvLogLevel:    &c.LogLevel,
		EnvLogFormat:   &c.LogFormat,
		EnvRedisAddr:   &c.Redis.Addr,
		EnvRedisPass:   &c.Redis.Password,
		EnvLookupURL:   &c.Lookup.URL,
		EnvAccountSID:  &c.Twilio.AccountSID,
		EnvAuthToken:   &c.Twilio.AuthToken,
		EnvFromNumber:  &c.Twilio.From,
		EnvEncryptKey:  &c.Privacy.EncryptionKey,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		EnvIdleTimeout:  &c.IdleTimeout,
		EnvReapInterval: &c.ReapInterval,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv(EnvRedisDB); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRedisDB, err)
		}
		c.Redis.DB = db
	}

	if v := os.Getenv(EnvMaskPII); v != "" {
		mask, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaskPII, err)
		}
		c.Privacy.MaskPII = mask
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.Catalog == "" {
		errs = append(errs, errors.New("catalog is required"))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("idle_timeout must not be negative, got %s", c.IdleTimeout))
	}
	if c.ReapInterval < 0 {
		errs = append(errs, fmt.Errorf("reap_interval must not be negative, got %s", c.ReapInterval))
	}
	if c.IdleTimeout > 0 && c.ReapInterval == 0 {
		errs = append(errs, errors.New("reap_interval is required when idle_timeout is set"))
	}
	if c.Redis.TTL < 0 {
		errs = append(errs, fmt.Errorf("redis.ttl must not be negative, got %s", c.Redis.TTL))
	}
	if c.Lookup.Timeout < 0 {
		errs = append(errs, fmt.Errorf("lookup.timeout must not be negative, got %s", c.Lookup.Timeout))
	}
	if c.MaxInputSize < 0 {
		errs = append(errs, fmt.Errorf("max_input_size must not be negative, got %d", c.MaxInputSize))
	}
	if c.Twilio.AccountSID != "" || c.Twilio.AuthToken != "" {
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" || c.Twilio.From == "" {
			errs = append(errs, errors.New("twilio requires account_sid, auth_token and from together"))
		}
	}
	for _, p := range c.Privacy.PIIPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("privacy.pii_patterns: %w", err))
		}
	}
	if len(c.Privacy.FallbackKeys) > 0 && c.Privacy.EncryptionKey == "" {
		errs = append(errs, errors.New("privacy.fallback_keys require an encryption_key"))
	}
	return errors.Join(errs...)
}

// DialingEnabled reports whether outbound calls can be placed.
func (c *Config) DialingEnabled() bool {
	return c.Twilio.AccountSID != "" && c.Twilio.AuthToken != "" && c.Twilio.From != ""
}
