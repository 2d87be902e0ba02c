// Command indexer builds a named index from a CACM corpus file, or keeps
// indexes up to date from the Kafka document topic.
//
// Usage:
//
//	indexer -corpus cacm.txt -analyzer english [-name english] [-stopwords file]
//	indexer -kafka [-analyzer english]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/cacm"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/metrics"
)

type buildOptions struct {
	corpus     string
	name       string
	analyzer   string
	stopWords  string
	layout     string
	forceMerge int
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	corpus := flag.String("corpus", "", "CACM corpus file to index")
	analyzerName := flag.String("analyzer", "english", "analyzer for new indexes")
	name := flag.String("name", "", "index name (default: the analyzer name)")
	stopWords := flag.String("stopwords", "", "custom stop word file")
	layout := flag.String("layout", string(cacm.LayoutLab), "document layout: lab or fielded")
	forceMerge := flag.Int("force-merge", 0, "merge down to at most N segments after indexing")
	fromKafka := flag.Bool("kafka", false, "consume documents from kafka instead of a corpus file")
	flag.Parse()

	if *corpus == "" && !*fromKafka {
		fmt.Fprintln(os.Stderr, "one of -corpus or -kafka is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdown(context.Background())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *fromKafka {
		err = consume(ctx, cfg, m, *analyzerName)
	} else {
		err = build(ctx, cfg.Indexer, m, buildOptions{
			corpus:     *corpus,
			name:       *name,
			analyzer:   *analyzerName,
			stopWords:  *stopWords,
			layout:     *layout,
			forceMerge: *forceMerge,
		})
	}
	if err != nil {
		slog.Error("indexer failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer stopped")
}

func build(ctx context.Context, icfg config.IndexerConfig, m *metrics.Metrics, opts buildOptions) error {
	layout, err := cacm.ParseLayout(opts.layout)
	if err != nil {
		return err
	}
	var stop analysis.StopWords
	if opts.stopWords != "" {
		if stop, err = analysis.LoadStopWordsFile(opts.stopWords); err != nil {
			return err
		}
	}
	a, err := analysis.ForName(opts.analyzer, stop)
	if err != nil {
		return err
	}
	if opts.name == "" {
		opts.name = a.Name()
	}

	f, err := os.Open(opts.corpus)
	if err != nil {
		return fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	cat := catalog.New(icfg, indexer.WithMetrics(m))
	e, err := cat.Open(opts.name, a, indexer.WithStopWords(stop))
	if err != nil {
		return err
	}
	count := 0
	err = cacm.Scan(f, func(rec cacm.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		count++
		return e.AddDocument(layout.Document(rec))
	})
	if err == nil && opts.forceMerge > 0 {
		if err = e.Commit(); err == nil {
			err = e.ForceMerge(opts.forceMerge)
		}
	}
	if cerr := cat.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	slog.Info("index built",
		"index", opts.name,
		"analyzer", a.Name(),
		"layout", layout,
		"documents", count,
		"dir", catalog.Dir(icfg.DataDir, opts.name),
	)
	return nil
}

// consume applies document events until ctx is cancelled. Indexes named
// after an analyzer use it; any other new index gets defaultAnalyzer.
func consume(ctx context.Context, cfg *config.Config, m *metrics.Metrics, defaultAnalyzer string) error {
	if _, err := analysis.ForName(defaultAnalyzer, nil); err != nil {
		return err
	}
	cat := catalog.New(cfg.Indexer, indexer.WithMetrics(m))
	defer func() {
		slog.Info("committing all indexes before shutdown")
		if err := cat.Close(); err != nil {
			slog.Error("final commit failed", "error", err)
		}
	}()

	names, err := catalog.Discover(cfg.Indexer.DataDir)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := cat.Open(name, nil); err != nil {
			return err
		}
	}
	cat.StartCommitLoops(ctx)

	handler := consumer.HandleMessage(cat, func(name string) (analysis.Analyzer, error) {
		a, err := analysis.ForName(name, nil)
		if err != nil {
			a, err = analysis.ForName(defaultAnalyzer, nil)
		}
		if err != nil {
			return nil, err
		}
		slog.Info("creating index from kafka", "index", name, "analyzer", a.Name())
		return a, nil
	})
	kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, handler)

	slog.Info("indexer consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
		"indexes", names,
	)
	return consumer.New(kc).Start(ctx)
}
