package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/callflow"
	httpAdapter "github.com/aretw0/callflow/pkg/adapters/http"
	"github.com/aretw0/callflow/pkg/adapters/twilio"
	"github.com/aretw0/callflow/pkg/observability"
	"github.com/aretw0/callflow/pkg/runner"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const twilioBasePath = "/twilio"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and Twilio voice webhooks",
	Long: `Starts the session manager behind a JSON API, the Twilio voice webhook and a
Prometheus /metrics endpoint. Idle calls are reaped in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		if cfg.MaxInputSize > 0 {
			runner.DefaultMaxInputSize = cfg.MaxInputSize
		}

		metrics, err := observability.NewMetrics(nil)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}

		opts, cleanup, err := engineOptions(cfg, logger, observability.Hooks(metrics, logger))
		if err != nil {
			return err
		}
		defer cleanup()

		eng, err := callflow.New(cfg.Catalog, opts...)
		if err != nil {
			return fmt.Errorf("error initializing callflow: %w", err)
		}
		m := eng.Manager()

		voice := twilio.NewHandler(m,
			twilio.WithPublicURL(cfg.PublicURL),
			twilio.WithBasePath(twilioBasePath),
			twilio.WithVoice(cfg.Voice),
			twilio.WithAgentNumber(cfg.AgentNumber),
			twilio.WithLogger(logger),
		)

		handlerOpts := []httpAdapter.Option{
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetrics(metrics.Handler()),
			httpAdapter.WithMount(twilioBasePath, voice),
		}
		if cfg.DialingEnabled() {
			client, err := twilio.NewClient(twilio.Config{
				AccountSID: cfg.Twilio.AccountSID,
				AuthToken:  cfg.Twilio.AuthToken,
				From:       cfg.Twilio.From,
				VoiceURL:   cfg.PublicURL + twilioBasePath + "/voice",
				StatusURL:  cfg.PublicURL + twilioBasePath + "/status",
			})
			if err != nil {
				return err
			}
			handlerOpts = append(handlerOpts, httpAdapter.WithDialer(client))
			logger.Info("outbound dialing enabled", "from", cfg.Twilio.From)
		}

		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           httpAdapter.NewHandler(m, handlerOpts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("callflow server listening", "address", srv.Addr, "catalog", eng.Name, "version", callflow.Version)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			return m.RunReaper(gctx, cfg.ReapInterval)
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown did not complete: %w", err)
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			return err
		}
		logger.Info("callflow server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on (overrides config)")
}
