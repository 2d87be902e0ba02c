// Command evaluator builds the standard, whitespace, english and
// english-custom indexes over a CACM corpus, runs the query set against each
// and reports precision at the standard recall levels.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/cacm"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/similarity"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/postgres"
)

var missing = []string{
	"Missing first argument. Provide a cacm.txt file path.",
	"Missing second argument. Provide a common_words.txt file path.",
	"Missing third argument. Provide a query.txt file path.",
	"Missing fourth argument. Provide a qrels.txt file path.",
}

type labIndex struct {
	name     string
	analyzer analysis.Analyzer
	stop     analysis.StopWords
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	csvPath := flag.String("csv", "", "precision-recall CSV output (default evaluation.csvPath)")
	rebuild := flag.Bool("rebuild", false, "rebuild indexes that already exist")
	store := flag.Bool("store", false, "save runs to PostgreSQL")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: evaluator [flags] <cacm.txt> <common_words.txt> <query.txt> <qrels.txt>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if n := flag.NArg(); n < len(missing) {
		fmt.Println(missing[n])
		os.Exit(2)
	}

	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.SetupTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if *csvPath == "" {
		*csvPath = cfg.Evaluation.CSVPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdown(context.Background())
	}

	if err := run(ctx, cfg, m, flag.Args(), *csvPath, *rebuild, *store || cfg.Evaluation.StoreRuns); err != nil {
		slog.Error("evaluation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, m *metrics.Metrics, args []string, csvPath string, rebuild, storeRuns bool) error {
	corpusPath, stopPath, queryPath, qrelsPath := args[0], args[1], args[2], args[3]

	custom, err := analysis.LoadStopWordsFile(stopPath)
	if err != nil {
		return err
	}
	labIndexes := []labIndex{
		{name: "standard", analyzer: analysis.Standard(nil)},
		{name: "whitespace", analyzer: analysis.Whitespace()},
		{name: "english", analyzer: analysis.English(nil)},
		{name: "english-custom", analyzer: analysis.English(custom), stop: custom},
	}

	if err := buildIndexes(ctx, cfg.Indexer, m, labIndexes, corpusPath, rebuild); err != nil {
		return err
	}

	queries, err := evaluation.ReadQueriesFile(queryPath)
	if err != nil {
		return err
	}
	judgments, err := evaluation.ReadQrelsFile(qrelsPath)
	if err != nil {
		return err
	}
	sim, err := similarity.ForName(cfg.Search.Similarity)
	if err != nil {
		return err
	}
	op, err := parser.ParseOperator(cfg.Search.DefaultOperator)
	if err != nil {
		return err
	}

	fmt.Println("Querying indexes...")
	fmt.Println()
	report := evaluation.Report{Queries: queries, Judgments: judgments}
	for i, li := range labIndexes {
		res, numDocs, err := evaluate(ctx, cfg, li.name, sim, op, queries, judgments)
		if err != nil {
			return err
		}
		if i == 0 {
			report.TotalDocs = numDocs
		}
		m.EvaluationMAP.WithLabelValues(li.name).Set(res.MAP)
		report.Results = append(report.Results, res)
	}

	if err := report.Write(os.Stdout); err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("Writing CSV file...")
	if err := evaluation.WriteCSVFile(csvPath, report.Rows()); err != nil {
		return err
	}
	slog.Info("precision-recall csv written", "path", csvPath)

	if storeRuns {
		if err := saveRuns(ctx, cfg, report); err != nil {
			return err
		}
	}
	fmt.Println("DONE! Check CSV files.")
	return nil
}

// buildIndexes builds the missing indexes concurrently, one directory each.
func buildIndexes(ctx context.Context, base config.IndexerConfig, m *metrics.Metrics, labIndexes []labIndex, corpusPath string, rebuild bool) error {
	var todo []labIndex
	for _, li := range labIndexes {
		dir := catalog.Dir(base.DataDir, li.name)
		if rebuild {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("removing index %s: %w", li.name, err)
			}
		}
		if indexer.IndexExists(dir) {
			slog.Info("index exists, skipping build", "index", li.name, "dir", dir)
			continue
		}
		todo = append(todo, li)
	}
	if len(todo) == 0 {
		return nil
	}

	records, err := cacm.ReadFile(corpusPath)
	if err != nil {
		return err
	}
	cat := catalog.New(base, indexer.WithMetrics(m))
	g, ctx := errgroup.WithContext(ctx)
	for _, li := range todo {
		g.Go(func() error {
			fmt.Printf("Creating index with %s analyser...\n", li.name)
			e, err := cat.Open(li.name, li.analyzer, indexer.WithStopWords(li.stop))
			if err != nil {
				return err
			}
			for _, rec := range records {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := e.AddDocument(cacm.LabDocument(rec)); err != nil {
					return fmt.Errorf("index %s: doc %d: %w", li.name, rec.ID, err)
				}
			}
			return e.Commit()
		})
	}
	err = g.Wait()
	if cerr := cat.Close(); err == nil {
		err = cerr
	}
	return err
}

func evaluate(ctx context.Context, cfg *config.Config, name string, sim similarity.Similarity, op parser.Operator,
	queries []evaluation.Query, judgments *evaluation.Judgments) (evaluation.Result, int, error) {
	r, err := indexer.OpenReader(catalog.Dir(cfg.Indexer.DataDir, name), cfg.Indexer.PostingsCacheSize)
	if err != nil {
		return evaluation.Result{}, 0, err
	}
	defer r.Close()
	a, err := r.Analyzer()
	if err != nil {
		return evaluation.Result{}, 0, err
	}
	p := parser.New(a, strings.Split(cfg.Evaluation.Fields, ",")...)
	p.Operator = op
	runner := evaluation.Runner{Searcher: executor.New(r, sim), Parser: p, MaxHits: cfg.Search.MaxHits}
	run, err := runner.Run(ctx, name, queries)
	if err != nil {
		return evaluation.Result{}, 0, err
	}
	res := evaluation.Evaluate(run, judgments)
	slog.Info("index evaluated", "index", name, "docs", r.NumDocs(), "map", res.MAP)
	return res, r.NumDocs(), nil
}

func saveRuns(ctx context.Context, cfg *config.Config, report evaluation.Report) error {
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	store := evaluation.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	for _, res := range report.Results {
		if _, err := store.SaveRun(ctx, evaluation.NewRunRecord(res, cfg.Search.Similarity, report.TotalDocs)); err != nil {
			return err
		}
	}
	return nil
}
