// Command ingestion publishes CACM records to the Kafka document topic.
//
// With a corpus argument it streams the file and exits. Without one it
// serves POST /api/v1/documents until interrupted.
//
// Usage:
//
//	ingestion [-index english] [-layout lab] <cacm.txt>
//	ingestion -serve
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

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/cacm"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	index := flag.String("index", "english", "target index for published records")
	layout := flag.String("layout", string(cacm.LayoutLab), "document layout: lab or fielded")
	batch := flag.Int("batch", 200, "events per kafka write")
	serve := flag.Bool("serve", false, "serve the ingest HTTP API")
	flag.Parse()

	if flag.NArg() < 1 && !*serve {
		fmt.Fprintln(os.Stderr, "usage: ingestion [flags] <cacm.txt> | ingestion -serve")
		os.Exit(2)
	}

	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()
	pub := publisher.New(producer, *batch)

	if *serve {
		err = serveAPI(ctx, cfg, pub, producer)
	} else {
		err = publishFile(ctx, pub, flag.Arg(0), *index, *layout)
	}
	if err != nil {
		slog.Error("ingestion failed", "error", err)
		os.Exit(1)
	}
}

func publishFile(ctx context.Context, pub *publisher.Publisher, path, index, layoutName string) error {
	if err := validator.ValidateIndexName(index); err != nil {
		return err
	}
	layout, err := cacm.ParseLayout(layoutName)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	start := time.Now()
	n, err := pub.PublishCorpus(ctx, index, layout, f)
	if err != nil {
		return err
	}
	slog.Info("corpus published", "index", index, "records", n, "took", time.Since(start))
	return nil
}

func serveAPI(ctx context.Context, cfg *config.Config, pub *publisher.Publisher, producer *kafka.Producer) error {
	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdown(context.Background())
	}

	checker := health.NewChecker(2 * time.Second)
	checker.Register("kafka", health.PingCheck(producer.Ping))

	h := handler.New(pub)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents", h.Ingest)
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

	slog.Info("ingestion service listening", "addr", server.Addr, "topic", producer.Topic())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("ingestion service stopped")
	return nil
}
