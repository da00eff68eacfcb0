package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/msomdec/workville/internal/config"
	"github.com/msomdec/workville/internal/domain"
	"github.com/msomdec/workville/internal/handler"
	"github.com/msomdec/workville/internal/notify"
	"github.com/msomdec/workville/internal/repository/sqlite"
	"github.com/msomdec/workville/internal/repository/sqlite/migrations"
	"github.com/msomdec/workville/internal/service"
)

func main() {
	logOpts := &slog.HandlerOptions{Level: slog.LevelInfo}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "workville",
		Short:         "Team presence and work-session tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("WORKVILLE_CONFIG"), "YAML config file (optional)")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newLoginCmd())
	root.AddCommand(newStatusCmd())
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	var dbPath string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := sqlite.New(dbPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			pending, err := migrations.Pending(cmd.Context(), db.SqlDB)
			if err != nil {
				return err
			}
			for _, name := range pending {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pending: %s\n", name)
			}
			if dryRun || len(pending) == 0 {
				return nil
			}
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(pending))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", envOrDefault("DATABASE_PATH", "workville.db"), "SQLite database path")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending migrations without applying them")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	calendar, err := service.LoadCalendar(cfg.BusinessTimezone)
	if err != nil {
		return err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(parent); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var notifier domain.Notifier = notify.Nop{}
	if cfg.WebhookURL != "" {
		webhook := notify.NewWebhook(cfg.WebhookURL, notify.WithQueueSize(cfg.WebhookQueueSize))
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := webhook.Close(flushCtx); err != nil {
				slog.Warn("webhook flush incomplete", "error", err)
			}
		}()
		notifier = webhook
		slog.Info("webhook notifications enabled")
	}

	hub := service.NewPresenceHub(32)
	authService := service.NewAuthService(db.Users(), cfg.JWTSecret, cfg.BcryptCost)
	worklogService := service.NewWorkLogService(db.WorkLogs(), db.WorkLogTemplate(), db.Sessions(), calendar, service.SystemClock)
	statusService := service.NewStatusService(db, db.Repositories(), db.Users(), calendar,
		service.WithNotifier(notifier), service.WithPresenceHub(hub), service.WithWorkLogs(worklogService))
	statsService := service.NewStatsService(db.Repositories(), calendar, service.SystemClock)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Dependencies{
		Auth:          authService,
		Status:        statusService,
		Stats:         statsService,
		Presence:      hub,
		WorkLogs:      worklogService,
		DB:            db.SqlDB,
		StatusLimiter: service.NewRateLimiter(ctx, cfg.StatusRateLimit.RefillPerSecond, cfg.StatusRateLimit.Capacity),
		LoginLimiter:  service.NewRateLimiter(ctx, cfg.LoginRateLimit.RefillPerSecond, cfg.LoginRateLimit.Capacity),
		CookieSecure:  cfg.CookieSecure,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Wrap(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
		// Streams end when the process is asked to stop.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "timezone", cfg.BusinessTimezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
