// Command searcher serves the committed indexes under indexer.dataDir over
// HTTP, caching results in Redis when it is enabled. SIGHUP reloads every
// index from its latest commit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "data_dir", cfg.Indexer.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdown(context.Background())
	}

	opts := []service.Option{service.WithMetrics(m)}
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			opts = append(opts, service.WithCache(cache.New[service.Result](redisClient, cfg.Redis.CacheTTL, m)))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	svc, err := service.New(cfg, opts...)
	if err != nil {
		slog.Error("invalid search configuration", "error", err)
		os.Exit(1)
	}
	defer svc.Close()
	if err := svc.Load(); err != nil {
		slog.Error("failed to load indexes", "error", err)
		os.Exit(1)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := svc.ReloadAll(); err != nil {
					slog.Error("reload failed", "error", err)
					continue
				}
				slog.Info("indexes reloaded", "indexes", svc.Names())
			}
		}
	}()

	checker := health.NewChecker(2 * time.Second)
	checker.Register("indexes", func(ctx context.Context) health.ComponentHealth {
		names := svc.Names()
		if len(names) == 0 {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no indexes loaded"}
		}
		for _, name := range names {
			if err := svc.Ping(name); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d indexes", len(names))}
	})
	if redisClient != nil {
		checker.RegisterOptional("redis", health.PingCheck(redisClient.Ping))
	}

	mux := http.NewServeMux()
	handler.New(svc).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)
		go limiter.RunSweeper(ctx)
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr, "indexes", svc.Names())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}
