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

	"github.com/JonMunkholm/prodcheck/internal/config"
	"github.com/JonMunkholm/prodcheck/internal/core"
	"github.com/JonMunkholm/prodcheck/internal/erp"
	"github.com/JonMunkholm/prodcheck/internal/lock"
	"github.com/JonMunkholm/prodcheck/internal/logging"
	"github.com/JonMunkholm/prodcheck/internal/store/postgres"
	"github.com/JonMunkholm/prodcheck/internal/store/sqlite"
	"github.com/JonMunkholm/prodcheck/internal/web"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	svcCfg := core.ServiceConfig{
		UploadDir:     cfg.Upload.Dir,
		MaxFileSize:   cfg.Upload.MaxFileSize,
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
		Timeout:       cfg.Upload.Timeout,
		Tenant:        cfg.ERP.TenantID,
	}

	if cfg.ERP.Enabled() {
		client := erp.New(erp.Config{
			BaseURL:            cfg.ERP.BaseURL,
			TenantID:           cfg.ERP.TenantID,
			Timeout:            cfg.ERP.Timeout,
			Username:           cfg.ERP.Username,
			Password:           cfg.ERP.Password,
			ProductLookupPath:  cfg.ERP.ProductLookupPath,
			SupplierLookupPath: cfg.ERP.SupplierLookupPath,
		})
		svcCfg.Registry = client
		svcCfg.Orders = client
		slog.Info("erp integration enabled", "base_url", cfg.ERP.BaseURL, "tenant", cfg.ERP.TenantID)
	} else {
		slog.Warn("erp integration disabled: validation and order submission are unavailable")
	}

	if cfg.Redis.URL != "" {
		locker, err := lock.NewRedis(ctx, cfg.Redis.URL, cfg.Redis.LockTTL)
		if err != nil {
			return err
		}
		defer locker.Close()
		svcCfg.Locker = locker
		slog.Info("distributed upload locking enabled")
	}

	service, err := core.NewService(store, svcCfg)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	server := web.NewServer(service, cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		service.StartUploadSweeper(gctx, core.SweeperConfig{
			StaleAfter:    cfg.Upload.StaleAfter,
			CheckInterval: cfg.Upload.SweepInterval,
		})
		return nil
	})

	g.Go(func() error {
		return server.SweepClients(gctx, time.Minute)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", status.Active)
			if err := service.WaitForUploads(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// openStore connects to the database chosen by DATABASE_URL.
func openStore(ctx context.Context, cfg *config.Config) (core.Store, func(), error) {
	switch cfg.Database.Driver() {
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		slog.Info("connected to database", "driver", "postgres")
		return pg, pg.Close, nil

	case "sqlite":
		lite, err := sqlite.Open(ctx, cfg.Database.SQLitePath())
		if err != nil {
			return nil, nil, err
		}
		slog.Info("connected to database", "driver", "sqlite", "path", cfg.Database.SQLitePath())
		return lite, func() { _ = lite.Close() }, nil

	default:
		return nil, nil, errors.New("unsupported DATABASE_URL scheme")
	}
}
