package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/diewo77/toiture-backoffice/internal/config"
	"github.com/diewo77/toiture-backoffice/internal/db"
	"github.com/diewo77/toiture-backoffice/internal/jobs"
	"github.com/diewo77/toiture-backoffice/internal/realtime"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "toiture",
		Short:        "Back office for roofing leads and quotes",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server, realtime relay and jobs",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				_, _, _, err := bootstrap(cmd.Context(), false)
				return err
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Migrate and seed the configuration and admin account",
			RunE: func(cmd *cobra.Command, args []string) error {
				_, _, _, err := bootstrap(cmd.Context(), true)
				return err
			},
		},
		&cobra.Command{
			Use:   "sweep-orphans",
			Short: "Report (or delete with ORPHAN_DELETE) accounts without a profile",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, gdb, logger, err := bootstrap(cmd.Context(), false)
				if err != nil {
					return err
				}
				app := NewApp(cfg, gdb, logger)
				sweep := &jobs.OrphanSweep{
					Store:  app.Users,
					Grace:  cfg.Jobs.OrphanGrace,
					Delete: cfg.Jobs.OrphanDelete,
					Logger: logger,
				}
				n, err := sweep.Run(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d orphan account(s)\n", n)
				return nil
			},
		},
	)
	return root
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Database.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// bootstrap loads config, connects and migrates. seed also runs the seeders.
func bootstrap(ctx context.Context, seed bool) (*config.Config, *gorm.DB, *slog.Logger, error) {
	cfg := config.Load()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	gdb, err := db.Connect(cfg.Database, logger)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		return nil, nil, nil, err
	}
	if err := db.Migrate(gdb, cfg, logger); err != nil {
		logger.Error("migration failed", "err", err)
		return nil, nil, nil, err
	}
	if seed {
		if err := db.Seed(ctx, gdb, cfg.App, logger); err != nil {
			logger.Error("seed failed", "err", err)
			return nil, nil, nil, err
		}
	}
	return cfg, gdb, logger, nil
}

func serve(ctx context.Context) error {
	cfg, gdb, logger, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	if cfg.Realtime.Mode == config.RealtimePostgres && cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("REALTIME_MODE=%s needs DB_DRIVER=%s", config.RealtimePostgres, config.DriverPostgres)
	}
	app := NewApp(cfg, gdb, logger)
	defer app.Registry.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      withRecover(logger, withLogging(logger, app)),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	sched := jobs.NewScheduler(logger, 0)
	orphans := &jobs.OrphanSweep{
		Store:  app.Users,
		Grace:  cfg.Jobs.OrphanGrace,
		Delete: cfg.Jobs.OrphanDelete,
		Logger: logger,
	}
	sessions := &jobs.SessionSweep{Sessions: app.Registry, Idle: cfg.App.SessionIdle, Logger: logger}
	if err := sched.Add("orphan-accounts", cfg.Jobs.OrphanSweepSchedule, orphans.Func()); err != nil {
		return err
	}
	if err := sched.Add("idle-sessions", cfg.Jobs.SessionSweepSchedule, sessions.Func()); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", "addr", srv.Addr, "env", cfg.App.Env, "realtime", cfg.Realtime.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Realtime.Mode == config.RealtimePostgres {
		listener := &realtime.PGListener{
			DSN:     cfg.Database.DSN(),
			Channel: cfg.Realtime.Channel,
			Out:     app.Hub,
			Logger:  logger,
		}
		g.Go(func() error { return listener.Run(ctx) })
	}

	if sched.Len() > 0 {
		g.Go(func() error { return sched.Run(ctx) })
	}

	return g.Wait()
}
