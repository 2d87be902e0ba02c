package consumer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/cacm"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/kafka"
)

func englishOnly(name string) (analysis.Analyzer, error) {
	if name != "english" {
		return nil, apperrors.ErrUnknownAnalyzer
	}
	return analysis.English(nil), nil
}

func encode(t *testing.T, ev ingestion.DocumentEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func TestHandleMessageAppliesEvents(t *testing.T) {
	cfg := config.Default().Indexer
	cfg.DataDir = t.TempDir()
	cat := catalog.New(cfg)
	handle := HandleMessage(cat, englishOnly)
	ctx := context.Background()

	for i, title := range []string{"Sorting Networks", "Hash Coding", "Sorted Tables"} {
		ev := ingestion.DocumentEvent{Op: ingestion.OpAdd, Index: "english", Layout: cacm.LayoutLab,
			Record: cacm.Record{ID: i + 1, Title: title}}
		require.NoError(t, handle(ctx, []byte(ev.Key()), encode(t, ev)))
	}
	del := ingestion.DocumentEvent{Op: ingestion.OpDelete, Index: "english", Record: cacm.Record{ID: 3}}
	require.NoError(t, handle(ctx, []byte(del.Key()), encode(t, del)))
	require.NoError(t, cat.Close())

	r, err := indexer.OpenReader(catalog.Dir(cfg.DataDir, "english"), 16)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 2, r.NumDocs())
	assert.Equal(t, "english", r.AnalyzerName())
	assert.Equal(t, 2, r.DocFreq(index.NewTerm("content", "sort")), "deleted docs still count")
}

func TestHandleMessageSkipsPoison(t *testing.T) {
	cfg := config.Default().Indexer
	cfg.DataDir = t.TempDir()
	cat := catalog.New(cfg)
	defer cat.Close()
	handle := HandleMessage(cat, englishOnly)
	ctx := context.Background()

	assert.ErrorIs(t, handle(ctx, nil, []byte("not json")), kafka.ErrSkip)

	unknown := ingestion.DocumentEvent{Op: ingestion.OpAdd, Index: "klingon", Record: cacm.Record{ID: 1, Title: "x"}}
	assert.ErrorIs(t, handle(ctx, nil, encode(t, unknown)), kafka.ErrSkip)

	bad := ingestion.DocumentEvent{Op: "upsert", Index: "english", Record: cacm.Record{ID: 1, Title: "x"}}
	assert.ErrorIs(t, handle(ctx, nil, encode(t, bad)), kafka.ErrSkip)
}

type stubStarter struct{ started bool }

func (s *stubStarter) Start(context.Context) error {
	s.started = true
	return nil
}

func TestIndexConsumerStart(t *testing.T) {
	s := &stubStarter{}
	require.NoError(t, New(s).Start(context.Background()))
	assert.True(t, s.started)
}
