package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

func TestCatalogOpensOneEnginePerName(t *testing.T) {
	cfg := config.Default().Indexer
	cfg.DataDir = t.TempDir()
	c := New(cfg)

	std, err := c.Open("standard", analysis.Standard(nil))
	require.NoError(t, err)
	again, err := c.Open("standard", analysis.Standard(nil))
	require.NoError(t, err)
	assert.Same(t, std, again)

	eng, err := c.Open("english", analysis.English(nil))
	require.NoError(t, err)
	assert.Equal(t, "english", eng.Name())
	assert.Equal(t, []string{"english", "standard"}, c.Names())

	_, err = c.Get("whitespace")
	assert.ErrorIs(t, err, apperrors.ErrIndexNotFound)

	var d index.Document
	d.Add(index.TextField("content", "stemming algorithms"))
	require.NoError(t, eng.AddDocument(d))
	require.NoError(t, c.CommitAll())

	found, err := Discover(cfg.DataDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"english", "standard"}, found)

	require.NoError(t, c.Close())
	assert.Empty(t, c.Names())

	missing, err := Discover(cfg.DataDir + "/nope")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestCatalogReopenKeepsRecordedAnalyzer(t *testing.T) {
	cfg := config.Default().Indexer
	cfg.DataDir = t.TempDir()
	stop := analysis.NewStopWords("computer")

	c := New(cfg)
	_, err := c.Open("english-custom", analysis.English(stop), indexer.WithStopWords(stop))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c = New(cfg)
	e, err := c.Open("english-custom", nil)
	require.NoError(t, err)
	assert.Equal(t, "english", e.Analyzer().Name())
	require.NoError(t, c.Close())

	m, err := indexer.ReadManifest(Dir(cfg.DataDir, "english-custom"))
	require.NoError(t, err)
	assert.Equal(t, []string{"computer"}, m.StopWords)

	_, err = New(cfg).Open("missing", nil)
	assert.ErrorIs(t, err, apperrors.ErrIndexNotFound)
}

func TestCatalogCommitLoopsCoverLaterOpens(t *testing.T) {
	cfg := config.Default().Indexer
	cfg.DataDir = t.TempDir()
	cfg.FlushInterval = 10 * time.Millisecond
	c := New(cfg)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartCommitLoops(ctx)

	e, err := c.Open("standard", analysis.Standard(nil))
	require.NoError(t, err)
	var d index.Document
	d.Add(index.TextField("content", "commit me"))
	require.NoError(t, e.AddDocument(d))

	assert.Eventually(t, func() bool {
		r, err := indexer.OpenReader(Dir(cfg.DataDir, "standard"), 4)
		if err != nil {
			return false
		}
		defer r.Close()
		return r.NumDocs() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
