// Package executor runs queries against a point-in-time index reader and
// collects the top ranked documents.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

// Searcher evaluates queries over one IndexReader.
type Searcher struct {
	reader *indexer.IndexReader
	sim    similarity.Similarity
	logger *slog.Logger
}

// New creates a Searcher scoring with sim; nil means the classic model.
func New(reader *indexer.IndexReader, sim similarity.Similarity) *Searcher {
	if sim == nil {
		sim = similarity.Classic()
	}
	return &Searcher{
		reader: reader,
		sim:    sim,
		logger: slog.Default().With("component", "query-executor"),
	}
}

func (s *Searcher) Reader() *indexer.IndexReader { return s.reader }

func (s *Searcher) Similarity() similarity.Similarity { return s.sim }

// Search returns the n best documents for q, by score descending and then
// document number ascending. TotalHits counts every live match.
func (s *Searcher) Search(ctx context.Context, q query.Query, n int) (merger.TopDocs, error) {
	if n <= 0 {
		return merger.TopDocs{}, apperrors.Invalid("result count must be positive, got %d", n)
	}
	if q == nil {
		return merger.TopDocs{ScoreDocs: []merger.ScoreDoc{}}, nil
	}
	start := time.Now()
	weight, err := q.Weight(query.NewContext(s.reader, s.sim), 1)
	if err != nil {
		return merger.TopDocs{}, fmt.Errorf("preparing query %s: %w", q, err)
	}
	collector := merger.NewCollector(n)
	for _, leaf := range s.reader.Leaves() {
		if err := ctx.Err(); err != nil {
			return merger.TopDocs{}, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
		}
		matches, err := weight.Match(leaf)
		if err != nil {
			return merger.TopDocs{}, fmt.Errorf("searching segment %s: %w", leaf.Reader.Name(), err)
		}
		for doc, score := range matches {
			if leaf.IsDeleted(doc) {
				continue
			}
			collector.Collect(leaf.DocBase+doc, score)
		}
	}
	td := collector.TopDocs()
	s.logger.Debug("query executed",
		"query", q.String(),
		"total_hits", td.TotalHits,
		"returned", len(td.ScoreDocs),
		"duration", time.Since(start),
	)
	return td, nil
}

// Doc returns the stored fields of global document doc.
func (s *Searcher) Doc(doc int) (index.StoredDocument, error) {
	return s.reader.Document(doc)
}
