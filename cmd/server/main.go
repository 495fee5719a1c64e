package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/taxledger/recon/internal/config"
	"github.com/taxledger/recon/internal/ledger"
	"github.com/taxledger/recon/internal/logging"
	"github.com/taxledger/recon/internal/recon"
	"github.com/taxledger/recon/internal/store"
	"github.com/taxledger/recon/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"review_mode", cfg.Recon.ReviewMode,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	// Connect to database
	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		dbName := strings.TrimPrefix(u.Path, "/")
		slog.Info("connected to database", "name", dbName)
	} else {
		slog.Info("connected to database")
	}

	repo, err := store.NewPostgres(ctx, pool)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}

	// Resolve category keyword rules, possibly from a YAML override
	rules := ledger.DefaultCategoryRules()
	if cfg.Recon.CategoryRulesPath != "" {
		rules, err = ledger.LoadCategoryRules(cfg.Recon.CategoryRulesPath)
		if err != nil {
			slog.Error("failed to load category rules", "path", cfg.Recon.CategoryRulesPath, "error", err)
			os.Exit(1)
		}
		slog.Info("loaded category rules", "path", cfg.Recon.CategoryRulesPath)
	}

	engine := recon.New(repo,
		recon.WithAuditLogger(repo),
		recon.WithCategoryRules(rules),
	)
	engine.SetReviewMode(cfg.Recon.ReviewMode)
	engine.SetAutoUpdate(cfg.Recon.AutoUpdate)

	// Pick up a previously persisted ledger, if any
	if out := engine.LoadFromStore(ctx); out.Status == recon.StatusOK {
		slog.Info("restored ledger from store", "rows", out.Stats.RemainingRows)
	} else {
		slog.Info("no stored ledger; waiting for import")
	}

	server := web.NewServer(cfg, engine, repo)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && err != http.ErrServerClosed {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
