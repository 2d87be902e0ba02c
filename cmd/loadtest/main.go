// Command loadtest replays a CACM query file against the search service
// with a fixed number of concurrent workers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/evaluation"
)

type Config struct {
	BaseURL     string
	Index       string
	Limit       int
	Concurrency int
	Duration    time.Duration
	Queries     []string
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	index := flag.String("index", "", "index to query (default: the only loaded index)")
	limit := flag.Int("limit", 10, "results per query")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: loadtest [flags] <query.txt>")
		os.Exit(2)
	}
	topics, err := evaluation.ReadQueriesFile(flag.Arg(0))
	if err != nil || len(topics) == 0 {
		fmt.Fprintf(os.Stderr, "no queries loaded: %v\n", err)
		os.Exit(1)
	}
	queries := make([]string, len(topics))
	for i, q := range topics {
		queries[i] = q.Text
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Index:       *index,
		Limit:       *limit,
		Concurrency: *concurrency,
		Duration:    *duration,
		Queries:     queries,
	}
	fmt.Println("=== cacm-search load test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d\n", len(cfg.Queries))
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()
	start := time.Now()
	stats := Run(ctx, http.DefaultClient, cfg)
	stats.Report(os.Stdout, time.Since(start))
	if stats.Total() == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

// Run issues searches from cfg.Concurrency workers until ctx is done.
func Run(ctx context.Context, client *http.Client, cfg Config) *Stats {
	stats := NewStats()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				q := cfg.Queries[i%len(cfg.Queries)]
				begin := time.Now()
				status, hit, err := search(ctx, client, cfg, q)
				if ctx.Err() != nil {
					return nil
				}
				stats.Record(time.Since(begin), status, hit, err)
			}
			return nil
		})
	}
	g.Wait()
	return stats
}

func search(ctx context.Context, client *http.Client, cfg Config, q string) (int, bool, error) {
	params := url.Values{"q": {q}, "limit": {fmt.Sprint(cfg.Limit)}}
	if cfg.Index != "" {
		params.Set("index", cfg.Index)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/api/v1/search?"+params.Encode(), nil)
	if err != nil {
		return 0, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	var body struct {
		CacheHit bool `json:"cache_hit"`
	}
	if resp.StatusCode == http.StatusOK {
		_ = json.NewDecoder(resp.Body).Decode(&body)
	}
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, body.CacheHit, nil
}
