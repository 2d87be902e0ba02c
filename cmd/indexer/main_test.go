package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/metrics"
)

func TestBuildFieldedIndex(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "cacm.txt")
	require.NoError(t, os.WriteFile(corpus, []byte(
		"1\tKnuth, D. E.\tSorting\tOn sorting.\n2\t\tHashing\t\n3\tFloyd, R.\tTrees\tBalanced trees.\n"), 0o644))

	icfg := config.Default().Indexer
	icfg.DataDir = filepath.Join(dir, "data")
	icfg.MaxBufferedDocs = 1
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())

	err := build(context.Background(), icfg, m, buildOptions{
		corpus: corpus, analyzer: "EnglishAnalyzer", layout: "fielded", forceMerge: 1,
	})
	require.NoError(t, err)

	r, err := indexer.OpenReader(catalog.Dir(icfg.DataDir, "english"), 16)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 3, r.NumDocs())
	assert.Len(t, r.Leaves(), 1)
	assert.Contains(t, r.Fields(), "title")
	assert.Contains(t, r.Fields(), "author")
}

func TestBuildRejectsBadLayout(t *testing.T) {
	err := build(context.Background(), config.Default().Indexer, nil, buildOptions{layout: "columns"})
	assert.Error(t, err)
}
