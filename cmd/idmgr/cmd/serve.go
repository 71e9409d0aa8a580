package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terraconstructs/idmgr/internal/metadata"
	"github.com/terraconstructs/idmgr/internal/server"
	"github.com/terraconstructs/idmgr/internal/services/identity"
	"github.com/terraconstructs/idmgr/internal/telemetry"
)

var (
	autoMigrate bool
	seedDemo    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin API server",
	Long:  `Starts the HTTP server exposing the user and role administration API under /api.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(ctx); err != nil {
				logger.Warn("telemetry shutdown failed", zap.Error(err))
			}
		}()

		metrics, err := telemetry.NewServerMetrics()
		if err != nil {
			return fmt.Errorf("failed to create server metrics: %w", err)
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if autoMigrate && store.db != nil {
			group, err := migrateDB(ctx, store.db)
			if err != nil {
				return err
			}
			logger.Info("migrations applied", zap.Int64("group", group.ID))
		}

		// Metadata problems are fatal at startup, not on first request.
		meta := metadata.NewProvider(identity.DefaultMetadata(cfg.Identity.PasswordCost))
		md, err := meta.Get()
		if err != nil {
			return fmt.Errorf("invalid identity metadata: %w", err)
		}

		policy := identity.NewStorePolicy(store.users, store.roles).
			WithRoleClaimType(md.Roles.RoleClaimType)
		mgr, err := identity.NewManager(store.users, store.roles, meta, policy)
		if err != nil {
			return fmt.Errorf("failed to create identity manager: %w", err)
		}
		mgr.WithLogger(logger)

		if seedDemo || cfg.Identity.SeedDemo {
			data, err := identity.DecodeSeed(identity.DemoSeed())
			if err != nil {
				return err
			}
			if _, err := identity.Seed(ctx, store.users, store.roles, data, cfg.Identity.PasswordCost, logger); err != nil {
				return fmt.Errorf("failed to seed demo data: %w", err)
			}
		}

		corsOpts := server.CORSOptionsFor(cfg.CORSOrigins)
		handler, err := server.NewH2CHandler(server.RouterOptions{
			Service:       mgr,
			Logger:        logger,
			Metrics:       metrics,
			CORSOptions:   &corsOpts,
			LocalhostOnly: cfg.Security.LocalhostOnly,
			AccessLog:     cfg.Debug,
		})
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server",
				zap.String("addr", cfg.ServerAddr),
				zap.String("store", cfg.Store),
				zap.Bool("localhost_only", cfg.Security.LocalhostOnly))
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down gracefully", zap.String("signal", sig.String()))

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			logger.Info("server stopped")
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Apply pending migrations before serving (sql store)")
	serveCmd.Flags().BoolVar(&seedDemo, "seed-demo", false, "Load the demo users and roles at startup (env: IDMGR_IDENTITY_SEED_DEMO)")
	rootCmd.AddCommand(serveCmd)
}
