// Package e2e drives the whole document path in one process: the ingest
// API publishes events onto an in-memory topic, the indexer consumer applies
// them, and the search API answers over the committed index.
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/consumer"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/cacm-search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/ingestion/publisher"
	searchhandler "github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/middleware"
)

// loopback delivers every published event straight to a consumer handler.
type loopback struct {
	mu      sync.Mutex
	handle  kafka.MessageHandler
	applied int
}

func (l *loopback) Publish(ctx context.Context, events ...kafka.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range events {
		value, err := json.Marshal(ev.Value)
		if err != nil {
			return err
		}
		if err := l.handle(ctx, []byte(ev.Key), value); err != nil {
			return err
		}
		l.applied++
	}
	return nil
}

type platform struct {
	cfg     *config.Config
	cat     *catalog.Catalog
	topic   *loopback
	ingest  *httptest.Server
	search  *httptest.Server
	service *service.Service
}

func newPlatform(t *testing.T) *platform {
	t.Helper()
	cfg := config.Default()
	cfg.Indexer.DataDir = t.TempDir()
	cfg.Search.DefaultLimit = 10

	cat := catalog.New(cfg.Indexer)
	t.Cleanup(func() { cat.Close() })
	topic := &loopback{handle: consumer.HandleMessage(cat, func(name string) (analysis.Analyzer, error) {
		return analysis.ForName(name, nil)
	})}

	imux := http.NewServeMux()
	imux.HandleFunc("POST /api/v1/documents", ingesthandler.New(publisher.New(topic, 2)).Ingest)
	ingest := httptest.NewServer(middleware.RequestID(imux))
	t.Cleanup(ingest.Close)

	svc, err := service.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	smux := http.NewServeMux()
	searchhandler.New(svc).Register(smux)
	search := httptest.NewServer(middleware.RequestID(smux))
	t.Cleanup(search.Close)

	return &platform{cfg: cfg, cat: cat, topic: topic, ingest: ingest, search: search, service: svc}
}

func (p *platform) post(t *testing.T, body string) int {
	t.Helper()
	resp, err := http.Post(p.ingest.URL+"/api/v1/documents", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

// commit makes consumed events visible to the search service.
func (p *platform) commit(t *testing.T) {
	t.Helper()
	require.NoError(t, p.cat.CommitAll())
	require.NoError(t, p.service.ReloadAll())
}

func (p *platform) query(t *testing.T, params url.Values) (int, service.Result) {
	t.Helper()
	resp, err := http.Get(p.search.URL + "/api/v1/search?" + params.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	var res service.Result
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	}
	return resp.StatusCode, res
}

func ids(res service.Result) []string {
	out := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		out[i] = h.ID
	}
	return out
}

const records = `{"index":"english","records":[
	{"id":1,"title":"Sorting Networks and their Applications","authors":["Batcher, K. E."]},
	{"id":2,"title":"Hash Coding with Allowable Errors","summary":"A space time tradeoff for hash coding."},
	{"id":3,"title":"Sorting by Replacement Selecting","authors":["Knuth, D. E."]}
]}`

func TestIngestIndexSearch(t *testing.T) {
	p := newPlatform(t)
	require.Equal(t, http.StatusAccepted, p.post(t, records))
	assert.Equal(t, 3, p.topic.applied)
	p.commit(t)

	status, res := p.query(t, url.Values{"q": {"sorting"}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "english", res.Index)
	assert.Equal(t, 2, res.TotalHits)
	assert.ElementsMatch(t, []string{"1", "3"}, ids(res))

	status, res = p.query(t, url.Values{"q": {`"hash coding"`}, "index": {"english"}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"2"}, ids(res))
}

func TestDeleteThroughIngestAPI(t *testing.T) {
	p := newPlatform(t)
	require.Equal(t, http.StatusAccepted, p.post(t, records))
	require.Equal(t, http.StatusAccepted, p.post(t, `{"index":"english","delete":[3]}`))
	p.commit(t)

	_, res := p.query(t, url.Values{"q": {"sorting"}})
	assert.Equal(t, []string{"1"}, ids(res))
}

func TestSearchErrors(t *testing.T) {
	p := newPlatform(t)
	require.Equal(t, http.StatusAccepted, p.post(t, records))
	p.commit(t)

	status, _ := p.query(t, url.Values{"q": {"sorting"}, "index": {"klingon"}})
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = p.query(t, url.Values{"q": {"title:(sorting"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, http.StatusBadRequest, p.post(t, `{"index":"English!","records":[]}`))
}
