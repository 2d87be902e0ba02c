// Package service serves searches over the committed indexes of a data
// directory. Each index is held open as a point-in-time reader that Reload
// swaps for the latest commit.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/similarity"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/tracing"
)

// Request describes one search.
type Request struct {
	Index    string
	Query    string
	Limit    int
	Fields   []string
	Operator string
}

// Hit is one ranked document.
type Hit struct {
	Doc    int                  `json:"doc"`
	Score  float64              `json:"score"`
	ID     string               `json:"id,omitempty"`
	Fields index.StoredDocument `json:"fields"`
}

// Result is the answer to a Request.
type Result struct {
	Index      string  `json:"index"`
	Query      string  `json:"query"`
	Parsed     string  `json:"parsed"`
	Generation int64   `json:"generation"`
	TotalHits  int     `json:"total_hits"`
	MaxScore   float64 `json:"max_score"`
	Hits       []Hit   `json:"hits"`
	CacheHit   bool    `json:"cache_hit"`
	TookMs     int64   `json:"took_ms"`
}

// IndexStats summarises one loaded index.
type IndexStats struct {
	Name       string   `json:"name"`
	Analyzer   string   `json:"analyzer"`
	Generation int64    `json:"generation"`
	NumDocs    int      `json:"num_docs"`
	MaxDoc     int      `json:"max_doc"`
	Deleted    int      `json:"deleted"`
	Segments   int      `json:"segments"`
	Fields     []string `json:"fields"`
}

type handle struct {
	mu       sync.RWMutex
	searcher *executor.Searcher
	analyzer analysis.Analyzer
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables result caching.
func WithCache(c *cache.QueryCache[Result]) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service owns the open readers.
type Service struct {
	dataDir   string
	cacheSize int
	cfg       config.SearchConfig
	sim       similarity.Similarity
	cache     *cache.QueryCache[Result]
	metrics   *metrics.Metrics

	mu      sync.RWMutex
	indexes map[string]*handle
	logger  *slog.Logger
}

// New creates a Service over cfg.Indexer.DataDir. No index is loaded until
// Load or Reload is called.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	sim, err := similarity.ForName(cfg.Search.Similarity)
	if err != nil {
		return nil, err
	}
	if _, err := parser.ParseOperator(cfg.Search.DefaultOperator); err != nil {
		return nil, err
	}
	if len(cfg.Search.DefaultFields) == 0 {
		return nil, apperrors.Invalid("search.defaultFields is empty")
	}
	s := &Service{
		dataDir:   cfg.Indexer.DataDir,
		cacheSize: cfg.Indexer.PostingsCacheSize,
		cfg:       cfg.Search,
		sim:       sim,
		indexes:   make(map[string]*handle),
		logger:    slog.Default().With("component", "search-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Load opens every committed index under the data directory.
func (s *Service) Load() error {
	names, err := catalog.Discover(s.dataDir)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := s.Reload(name); err != nil {
			return err
		}
	}
	s.logger.Info("indexes loaded", "count", len(names), "names", names)
	return nil
}

// Reload opens the latest commit of name and swaps it in. In-flight searches
// finish on the old reader before it is closed.
func (s *Service) Reload(name string) error {
	r, err := indexer.OpenReader(catalog.Dir(s.dataDir, name), s.cacheSize)
	if err != nil {
		return fmt.Errorf("opening index %q: %w", name, err)
	}
	a, err := r.Analyzer()
	if err != nil {
		r.Close()
		return fmt.Errorf("index %q: %w", name, err)
	}

	searcher := executor.New(r, s.sim)
	s.mu.Lock()
	h, ok := s.indexes[name]
	if !ok {
		s.indexes[name] = &handle{searcher: searcher, analyzer: a}
	}
	s.mu.Unlock()

	if ok {
		h.mu.Lock()
		old := h.searcher
		h.searcher = searcher
		h.analyzer = a
		h.mu.Unlock()
		old.Reader().Close()
	}
	s.logger.Info("index reloaded",
		"index", name,
		"generation", r.Generation(),
		"num_docs", r.NumDocs(),
		"analyzer", a.Name(),
	)
	return nil
}

// ReloadAll reloads every loaded index and opens new ones.
func (s *Service) ReloadAll() error {
	return s.Load()
}

// Names lists the loaded indexes.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.indexes))
	for n := range s.indexes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Service) lookup(name string) (string, *handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name == "" {
		if len(s.indexes) != 1 {
			return "", nil, apperrors.Invalid("index is required when %d indexes are loaded", len(s.indexes))
		}
		for n, h := range s.indexes {
			return n, h, nil
		}
	}
	h, ok := s.indexes[name]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q is not loaded", apperrors.ErrIndexNotFound, name)
	}
	return name, h, nil
}

// Search parses req.Query with the index's analyzer and returns the top
// hits with their stored fields.
func (s *Service) Search(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "search")
	defer func() {
		span.End()
		span.Log(ctx, s.logger)
	}()
	name, h, err := s.lookup(req.Index)
	if err != nil {
		return nil, err
	}
	limit, err := s.limit(req.Limit)
	if err != nil {
		return nil, err
	}
	opName := req.Operator
	if opName == "" {
		opName = s.cfg.DefaultOperator
	}
	op, err := parser.ParseOperator(opName)
	if err != nil {
		return nil, apperrors.Invalid("%v", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	reader := h.searcher.Reader()

	fields := req.Fields
	if len(fields) == 0 {
		fields = s.cfg.DefaultFields
	}
	p := parser.New(h.analyzer, fields...)
	p.Operator = op
	_, parseSpan := tracing.Start(ctx, "parse")
	q, err := p.Parse(req.Query)
	parseSpan.End()
	span.SetAttr("index", name)
	if err != nil {
		s.observe(name, "error", "none", start, 0)
		return nil, err
	}
	base := Result{Index: name, Query: req.Query, Generation: reader.Generation(), Hits: []Hit{}}
	if q == nil {
		s.observe(name, "zero_result", "none", start, 0)
		base.TookMs = time.Since(start).Milliseconds()
		return &base, nil
	}
	base.Parsed = q.String()

	compute := func() (Result, error) {
		sctx, cancel := s.withTimeout(ctx)
		defer cancel()
		_, execSpan := tracing.Start(ctx, "execute")
		td, err := h.searcher.Search(sctx, q, limit)
		execSpan.End()
		if err != nil {
			return Result{}, err
		}
		execSpan.SetAttr("total_hits", td.TotalHits)
		_, fetchSpan := tracing.Start(ctx, "fetch")
		defer fetchSpan.End()
		res := base
		res.TotalHits = td.TotalHits
		res.MaxScore = td.MaxScore
		res.Hits = make([]Hit, 0, len(td.ScoreDocs))
		for _, sd := range td.ScoreDocs {
			stored, err := h.searcher.Doc(sd.Doc)
			if err != nil {
				return Result{}, err
			}
			res.Hits = append(res.Hits, Hit{Doc: sd.Doc, Score: sd.Score, ID: stored.Get("id"), Fields: stored})
		}
		return res, nil
	}

	var res Result
	cacheStatus := "none"
	if s.cache != nil {
		key := cache.Key{
			Index:      name,
			Generation: reader.Generation(),
			Query:      base.Parsed,
			Limit:      limit,
			Similarity: s.sim.Name(),
		}
		var hit bool
		res, hit, err = s.cache.GetOrCompute(ctx, key, compute)
		res.CacheHit = hit
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
	} else {
		res, err = compute()
	}
	if err != nil {
		s.observe(name, "error", cacheStatus, start, 0)
		return nil, err
	}
	res.Query = req.Query
	res.TookMs = time.Since(start).Milliseconds()
	resultType := "hit"
	if res.TotalHits == 0 {
		resultType = "zero_result"
	}
	s.observe(name, resultType, cacheStatus, start, res.TotalHits)
	span.SetAttr("cache", cacheStatus)
	return &res, nil
}

func (s *Service) limit(n int) (int, error) {
	switch {
	case n == 0:
		return s.cfg.DefaultLimit, nil
	case n < 0:
		return 0, apperrors.Invalid("limit must be positive, got %d", n)
	case n > s.cfg.MaxResults:
		return s.cfg.MaxResults, nil
	}
	return n, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

func (s *Service) observe(index, resultType, cacheStatus string, start time.Time, hits int) {
	if s.metrics == nil {
		return
	}
	s.metrics.SearchQueriesTotal.WithLabelValues(index, resultType).Inc()
	s.metrics.SearchLatency.WithLabelValues(index, cacheStatus).Observe(time.Since(start).Seconds())
	if resultType != "error" {
		s.metrics.SearchResultsCount.Observe(float64(hits))
	}
}

// Stats describes index name.
func (s *Service) Stats(name string) (*IndexStats, error) {
	name, h, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	r := h.searcher.Reader()
	return &IndexStats{
		Name:       name,
		Analyzer:   r.AnalyzerName(),
		Generation: r.Generation(),
		NumDocs:    r.NumDocs(),
		MaxDoc:     r.MaxDoc(),
		Deleted:    r.NumDeleted(),
		Segments:   len(r.Leaves()),
		Fields:     r.Fields(),
	}, nil
}

// DefaultField is the field searched and listed when a request names none.
func (s *Service) DefaultField() string {
	return s.cfg.DefaultFields[0]
}

// Terms returns the n most frequent terms of field in index name.
func (s *Service) Terms(name, field string, n int) ([]indexer.TermStat, error) {
	if field == "" {
		field = s.DefaultField()
	}
	if n <= 0 {
		return nil, apperrors.Invalid("top must be positive, got %d", n)
	}
	_, h, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.searcher.Reader().HighFreqTerms(field, n), nil
}

// Ping fails when index name is not loaded or has been removed from disk.
func (s *Service) Ping(name string) error {
	_, h, err := s.lookup(name)
	if err != nil {
		return err
	}
	h.mu.RLock()
	dir := h.searcher.Reader().Dir()
	h.mu.RUnlock()
	if !indexer.IndexExists(dir) {
		return fmt.Errorf("%w: manifest missing in %s", apperrors.ErrIndexNotFound, dir)
	}
	return nil
}

// InvalidateCache drops cached results of index (all when empty).
func (s *Service) InvalidateCache(ctx context.Context, index string) (int64, error) {
	if s.cache == nil {
		return 0, apperrors.Invalid("result cache is disabled")
	}
	return s.cache.Invalidate(ctx, index)
}

// Cache returns the result cache, or nil when disabled.
func (s *Service) Cache() *cache.QueryCache[Result] { return s.cache }

// Close closes every reader.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for name, h := range s.indexes {
		h.mu.Lock()
		if err := h.searcher.Reader().Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing index %q: %w", name, err)
		}
		h.mu.Unlock()
	}
	s.indexes = make(map[string]*handle)
	return firstErr
}
