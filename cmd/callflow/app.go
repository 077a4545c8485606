package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/callflow"
	"github.com/aretw0/callflow/internal/config"
	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/callflow/pkg/adapters/redis"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/lookup"
	"github.com/aretw0/callflow/pkg/persistence/middleware"
	"github.com/aretw0/callflow/pkg/ports"
	"github.com/spf13/cobra"
)

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"catalog":    &cfg.Catalog,
		"log-level":  &cfg.LogLevel,
		"log-format": &cfg.LogFormat,
		"listen":     &cfg.Listen,
	}
	for name, dst := range overrides {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(level, cfg.LogFormat), nil
}

// engineOptions translates the config into engine options. The returned
// cleanup closes the redis client when one was opened.
func engineOptions(cfg *config.Config, logger *slog.Logger, hooks domain.LifecycleHooks) ([]callflow.Option, func(), error) {
	opts := []callflow.Option{
		callflow.WithLogger(logger),
		callflow.WithLifecycleHooks(hooks),
		callflow.WithIdleTimeout(cfg.IdleTimeout),
	}
	cleanup := func() {}

	var store ports.SessionStore = memory.NewStore()
	if cfg.Redis.Addr != "" {
		storeOpts := []redisAdapter.Option{redisAdapter.WithPrefix(cfg.Redis.Prefix)}
		if cfg.Redis.TTL > 0 {
			storeOpts = append(storeOpts, redisAdapter.WithTTL(cfg.Redis.TTL))
		}
		rs := redisAdapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, storeOpts...)
		store = rs
		opts = append(opts, callflow.WithLocker(redisAdapter.NewLocker(rs.Client(), cfg.Redis.Prefix)))
		cleanup = func() {
			if err := rs.Close(); err != nil {
				logger.Warn("failed to close redis client", "err", err)
			}
		}
		logger.Info("using redis session store", "addr", cfg.Redis.Addr)
	}

	mws, err := privacyMiddleware(cfg.Privacy)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	opts = append(opts, callflow.WithStore(middleware.Wrap(store, mws...)))

	if cfg.Lookup.URL != "" {
		timeout := cfg.Lookup.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		opts = append(opts, callflow.WithResolver(lookup.NewHTTP(cfg.Lookup.URL, 0, lookup.WithTimeout(timeout))))
		logger.Info("using http record resolver", "url", cfg.Lookup.URL)
	}

	return opts, cleanup, nil
}

// privacyMiddleware masks before it encrypts, so only masked values are ever sealed.
func privacyMiddleware(p config.PrivacyConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if p.MaskPII {
		mws = append(mws, middleware.NewPIIMiddleware(p.PIIPatterns))
	}
	if p.EncryptionKey == "" {
		return mws, nil
	}

	active, err := middleware.ParseKey(p.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("privacy.encryption_key: %w", err)
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range p.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("privacy.fallback_keys[%d]: %w", i, err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	mw, err := middleware.NewEncryptionMiddleware(enc)
	if err != nil {
		return nil, err
	}
	return append(mws, mw), nil
}

// openEngine builds the engine for commands that do not need a full server.
func openEngine(cmd *cobra.Command, args []string) (*callflow.Engine, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if len(args) > 0 && !cmd.Flags().Changed("catalog") {
		cfg.Catalog = args[0]
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	eng, err := callflow.New(cfg.Catalog, callflow.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing callflow: %w", err)
	}
	return eng, logger, nil
}
