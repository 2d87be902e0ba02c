package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/config"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Indexer.DataDir = t.TempDir()

	c := catalog.New(cfg.Indexer)
	e, err := c.Open("standard", analysis.Standard(nil))
	require.NoError(t, err)
	for i, title := range []string{"Hash Table Methods", "Binary Search Trees", "Hash Coding"} {
		var d index.Document
		d.Add(index.StringField("id", string(rune('1'+i))))
		d.Add(index.TextField("content", title))
		require.NoError(t, e.AddDocument(d))
	}
	require.NoError(t, c.Close())

	svc, err := service.New(cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Load())
	t.Cleanup(func() { svc.Close() })

	mux := http.NewServeMux()
	New(svc).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestSearchEndpoint(t *testing.T) {
	srv := newServer(t)

	var res service.Result
	code := getJSON(t, srv.URL+"/api/v1/search?q=hash&limit=5", &res)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, res.TotalHits)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "standard", res.Index)
	assert.Equal(t, "content:hash", res.Parsed)
}

func TestSearchEndpointErrors(t *testing.T) {
	srv := newServer(t)
	cases := map[string]int{
		"/api/v1/search":                       http.StatusBadRequest,
		"/api/v1/search?q=hash&limit=zero":     http.StatusBadRequest,
		"/api/v1/search?q=%22open":             http.StatusBadRequest,
		"/api/v1/search?q=hash&index=missing":  http.StatusNotFound,
		"/api/v1/indexes/missing/stats":        http.StatusNotFound,
		"/api/v1/indexes/standard/terms?top=x": http.StatusBadRequest,
		"/api/v1/indexes/standard/terms?top=0": http.StatusBadRequest,
	}
	for path, want := range cases {
		var body map[string]string
		code := getJSON(t, srv.URL+path, &body)
		assert.Equal(t, want, code, path)
		assert.NotEmpty(t, body["error"], path)
		if want == http.StatusNotFound {
			assert.Equal(t, "index_not_found", body["code"], path)
		}
	}
}

func TestStatsAndTerms(t *testing.T) {
	srv := newServer(t)

	var stats service.IndexStats
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/indexes/standard/stats", &stats))
	assert.Equal(t, 3, stats.NumDocs)
	assert.Equal(t, []string{"content", "id"}, stats.Fields)

	var terms struct {
		Field string `json:"field"`
		Terms []struct {
			Text    string `json:"Text"`
			DocFreq int    `json:"DocFreq"`
		} `json:"terms"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/indexes/standard/terms?top=1", &terms))
	require.Len(t, terms.Terms, 1)
	assert.Equal(t, "hash", terms.Terms[0].Text)
	assert.Equal(t, 2, terms.Terms[0].DocFreq)

	var list map[string][]string
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/indexes", &list))
	assert.Equal(t, []string{"standard"}, list["indexes"])
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	srv := newServer(t)

	var stats map[string]string
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/v1/cache/stats", &stats))
	assert.Equal(t, "disabled", stats["status"])

	resp, err := http.Post(srv.URL+"/api/v1/cache/invalidate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestReloadEndpoint(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Post(srv.URL+"/api/v1/indexes/standard/reload", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
