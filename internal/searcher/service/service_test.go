package service

import (
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

var titles = []string{
	"Computing Systems for Sorting",
	"Hash Table Methods",
	"Computer Sorting Networks",
}

func addDocs(t *testing.T, cfg *config.Config, name string, a analysis.Analyzer, firstID int, texts ...string) {
	t.Helper()
	c := catalog.New(cfg.Indexer)
	e, err := c.Open(name, a)
	require.NoError(t, err)
	for i, text := range texts {
		var d index.Document
		d.Add(index.StringField("id", itoa(firstID+i)))
		d.Add(index.TextField("content", text))
		require.NoError(t, e.AddDocument(d))
	}
	require.NoError(t, c.Close())
}

func itoa(i int) string {
	return string(rune('0' + i))
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Indexer.DataDir = t.TempDir()
	cfg.Indexer.MaxSegmentsBeforeMerge = 0
	cfg.Search.MaxResults = 2
	return cfg
}

func TestSearchSingleIndex(t *testing.T) {
	cfg := testConfig(t)
	addDocs(t, cfg, "english", analysis.English(nil), 1, titles...)
	svc, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Load())
	defer svc.Close()

	res, err := svc.Search(context.Background(), Request{Query: "computers"})
	require.NoError(t, err)
	assert.Equal(t, "english", res.Index)
	assert.Equal(t, "content:comput", res.Parsed)
	assert.Equal(t, 2, res.TotalHits)
	require.Len(t, res.Hits, 2)
	assert.ElementsMatch(t, []string{"1", "3"}, []string{res.Hits[0].ID, res.Hits[1].ID})
	assert.NotEmpty(t, res.Hits[0].Fields.Get("content"))

	res, err = svc.Search(context.Background(), Request{Query: "computer sorting", Operator: "AND", Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalHits)
	assert.Len(t, res.Hits, 2, "limit is clamped to the configured maximum")

	res, err = svc.Search(context.Background(), Request{Query: "the"})
	require.NoError(t, err)
	assert.Zero(t, res.TotalHits)
	assert.Empty(t, res.Hits)
}

func TestSearchErrors(t *testing.T) {
	cfg := testConfig(t)
	addDocs(t, cfg, "english", analysis.English(nil), 1, titles...)
	addDocs(t, cfg, "standard", analysis.Standard(nil), 1, titles...)
	svc, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Load())
	defer svc.Close()
	assert.Equal(t, []string{"english", "standard"}, svc.Names())

	ctx := context.Background()
	_, err = svc.Search(ctx, Request{Query: "hash"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = svc.Search(ctx, Request{Index: "klingon", Query: "hash"})
	assert.ErrorIs(t, err, apperrors.ErrIndexNotFound)
	_, err = svc.Search(ctx, Request{Index: "standard", Query: `"unterminated`})
	assert.ErrorIs(t, err, apperrors.ErrQuerySyntax)
	_, err = svc.Search(ctx, Request{Index: "standard", Query: "hash", Limit: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = svc.Search(ctx, Request{Index: "standard", Query: "hash", Operator: "XOR"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUnknownSimilarityRejected(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.Similarity = "lm-dirichlet"
	_, err := New(cfg)
	assert.ErrorIs(t, err, apperrors.ErrUnknownSimilarity)
}

func TestReloadSeesNewCommit(t *testing.T) {
	cfg := testConfig(t)
	addDocs(t, cfg, "standard", analysis.Standard(nil), 1, titles...)
	svc, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Load())
	defer svc.Close()

	before, err := svc.Stats("standard")
	require.NoError(t, err)
	assert.Equal(t, 3, before.NumDocs)
	assert.Equal(t, "standard", before.Analyzer)

	addDocs(t, cfg, "standard", analysis.Standard(nil), 4, "Hash Coding Revisited")
	res, err := svc.Search(context.Background(), Request{Query: "revisited"})
	require.NoError(t, err)
	assert.Zero(t, res.TotalHits, "old reader is point in time")

	require.NoError(t, svc.Reload("standard"))
	after, err := svc.Stats("standard")
	require.NoError(t, err)
	assert.Equal(t, 4, after.NumDocs)
	assert.Greater(t, after.Generation, before.Generation)

	res, err = svc.Search(context.Background(), Request{Query: "revisited"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "4", res.Hits[0].ID)
}

func TestTerms(t *testing.T) {
	cfg := testConfig(t)
	addDocs(t, cfg, "standard", analysis.Standard(nil), 1, titles...)
	svc, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Load())
	defer svc.Close()

	terms, err := svc.Terms("standard", "content", 1)
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "sorting", terms[0].Text)
	assert.Equal(t, 2, terms[0].DocFreq)

	_, err = svc.Terms("standard", "content", 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.NoError(t, svc.Ping("standard"))
	assert.ErrorIs(t, svc.Ping("missing"), apperrors.ErrIndexNotFound)
}

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = string(value.([]byte))
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func TestCachedSearch(t *testing.T) {
	cfg := testConfig(t)
	addDocs(t, cfg, "english", analysis.English(nil), 1, titles...)
	qc := cache.New[Result](&memStore{data: make(map[string]string)}, time.Minute, nil)
	svc, err := New(cfg, WithCache(qc))
	require.NoError(t, err)
	require.NoError(t, svc.Load())
	defer svc.Close()

	ctx := context.Background()
	first, err := svc.Search(ctx, Request{Query: "sorting"})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	// same parsed query, different surface form
	second, err := svc.Search(ctx, Request{Query: "SORTED"})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.TotalHits, second.TotalHits)
	assert.Equal(t, "SORTED", second.Query)

	n, err := svc.InvalidateCache(ctx, "english")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDefaultFieldsFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.DefaultFields = []string{"title"}
	c := catalog.New(cfg.Indexer)
	e, err := c.Open("fielded", analysis.Standard(nil))
	require.NoError(t, err)
	for i, title := range titles {
		var d index.Document
		d.Add(index.StringField("id", itoa(i+1)))
		d.Add(index.TextField("title", title))
		require.NoError(t, e.AddDocument(d))
	}
	require.NoError(t, c.Close())

	svc, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Load())
	defer svc.Close()

	res, err := svc.Search(context.Background(), Request{Query: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "title:hash", res.Parsed)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "2", res.Hits[0].ID)

	terms, err := svc.Terms("fielded", "", 1)
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "sorting", terms[0].Text)

	cfg.Search.DefaultFields = nil
	_, err = New(cfg)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestFirstReloadPublishesReadyIndex(t *testing.T) {
	cfg := testConfig(t)
	addDocs(t, cfg, "standard", analysis.Standard(nil), 1, titles...)

	for i := 0; i < 50; i++ {
		svc, err := New(cfg)
		require.NoError(t, err)

		var wg sync.WaitGroup
		stop := make(chan struct{})
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					st, err := svc.Stats("standard")
					if err != nil {
						assert.ErrorIs(t, err, apperrors.ErrIndexNotFound)
						continue
					}
					assert.Equal(t, 3, st.NumDocs)
				}
			}()
		}
		require.NoError(t, svc.Reload("standard"))
		close(stop)
		wg.Wait()
		require.NoError(t, svc.Close())
	}
}
