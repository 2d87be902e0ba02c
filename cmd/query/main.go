// Command query indexes a CACM corpus with one analyzer, using separate
// author, title and summary fields, and runs a single query over title and
// summary.
//
// Usage:
//
//	query [flags] <cacm.txt> <common_words.txt> <analyzer> <query>
//	query -top 10 -field title <cacm.txt> <common_words.txt> <analyzer>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/cacm"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/similarity"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/logger"
)

type options struct {
	corpus     string
	stopWords  string
	analyzer   string
	query      string
	dir        string
	top        int
	field      string
	limit      int
	similarity string
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	dir := flag.String("dir", "", "index directory (default: a temporary directory removed on exit)")
	top := flag.Int("top", 0, "print the N terms with the highest document frequency")
	field := flag.String("field", cacm.FieldTitle, "field for -top")
	limit := flag.Int("limit", 1000, "maximum results printed")
	sim := flag.String("similarity", "", "scoring model (default search.similarity)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: query [flags] <cacm.txt> <common_words.txt> <analyzer> <query>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 3 || (len(args) < 4 && *top <= 0) {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.SetupTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	opts := options{
		corpus:     args[0],
		stopWords:  args[1],
		analyzer:   args[2],
		query:      strings.Join(args[3:], " "),
		dir:        *dir,
		top:        *top,
		field:      *field,
		limit:      *limit,
		similarity: *sim,
	}
	if opts.similarity == "" {
		opts.similarity = cfg.Search.Similarity
	}
	if err := run(context.Background(), os.Stdout, cfg.Indexer, opts); err != nil {
		slog.Error("query failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, icfg config.IndexerConfig, opts options) error {
	stop, err := analysis.LoadStopWordsFile(opts.stopWords)
	if err != nil {
		return err
	}
	a, err := analysis.ForName(opts.analyzer, stop)
	if err != nil {
		return err
	}
	sim, err := similarity.ForName(opts.similarity)
	if err != nil {
		return err
	}

	if opts.dir == "" {
		tmp, err := os.MkdirTemp("", "cacm-query-")
		if err != nil {
			return fmt.Errorf("creating index directory: %w", err)
		}
		defer os.RemoveAll(tmp)
		opts.dir = tmp
	} else if err := clearIndexDir(opts.dir); err != nil {
		return err
	}
	icfg.DataDir = opts.dir
	if err := buildIndex(icfg, a, stop, opts.corpus); err != nil {
		return err
	}

	r, err := indexer.OpenReader(opts.dir, icfg.PostingsCacheSize)
	if err != nil {
		return err
	}
	defer r.Close()

	if opts.top > 0 {
		fmt.Fprintf(w, "Top %d terms in %s:\n", opts.top, opts.field)
		for _, ts := range r.HighFreqTerms(opts.field, opts.top) {
			fmt.Fprintf(w, "%s: %d\n", ts.Text, ts.DocFreq)
		}
		if opts.query == "" {
			return nil
		}
	}

	q, err := parser.New(a, cacm.FieldTitle, cacm.FieldSummary).Parse(opts.query)
	if err != nil {
		return err
	}
	if q == nil {
		fmt.Fprintln(w, "Results found: 0")
		return nil
	}
	limit := opts.limit
	if limit <= 0 {
		limit = 1000
	}
	s := executor.New(r, sim)
	top, err := s.Search(ctx, q, limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Results found: %d\n", len(top.ScoreDocs))
	for _, sd := range top.ScoreDocs {
		doc, err := s.Doc(sd.Doc)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s (%s)\n", doc.Get(cacm.FieldID), doc.Get(cacm.FieldTitle),
			strconv.FormatFloat(sd.Score, 'f', -1, 32))
	}
	return nil
}

// clearIndexDir removes a previous index from dir so the corpus is indexed
// from scratch. Only index files are removed; a non-empty directory that
// holds no index is refused.
func clearIndexDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading index directory: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	if !indexer.IndexExists(dir) {
		return apperrors.Invalid("%s is not empty and holds no index", dir)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if name != indexer.ManifestFile && name != indexer.LockFile && filepath.Ext(name) != segment.FileExt {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("clearing index directory: %w", err)
		}
	}
	return nil
}

func buildIndex(icfg config.IndexerConfig, a analysis.Analyzer, stop analysis.StopWords, corpus string) error {
	f, err := os.Open(corpus)
	if err != nil {
		return fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	e, err := indexer.NewEngine(icfg, a, indexer.WithName("query"), indexer.WithStopWords(stop))
	if err != nil {
		return err
	}
	err = cacm.Scan(f, func(rec cacm.Record) error {
		return e.AddDocument(cacm.FieldedDocument(rec))
	})
	if cerr := e.Close(); err == nil {
		err = cerr
	}
	return err
}
