package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Zero(t, percentile(nil, 50))
}

func TestRunCountsCacheHits(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Query().Get("q") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if n%2 == 0 {
			w.Write([]byte(`{"cache_hit":true}`))
			return
		}
		w.Write([]byte(`{"cache_hit":false}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	stats := Run(ctx, srv.Client(), Config{
		BaseURL: srv.URL, Concurrency: 2, Limit: 5, Queries: []string{"sorting", "hash tables"},
	})
	assert.Positive(t, stats.Total())
	assert.Zero(t, stats.errors.Load())
	assert.Positive(t, stats.cacheHits.Load())

	var out bytes.Buffer
	stats.Report(&out, time.Second)
	assert.Contains(t, out.String(), "=== Latency ===")
	assert.Contains(t, out.String(), "  200: ")
}
