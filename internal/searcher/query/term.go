package query

import (
	"fmt"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/similarity"
)

// TermQuery matches documents containing a term.
type TermQuery struct {
	Term index.Term
}

func NewTermQuery(field, text string) *TermQuery {
	return &TermQuery{Term: index.NewTerm(field, text)}
}

func (q *TermQuery) String() string {
	return q.Term.Field + ":" + Escape(q.Term.Text)
}

func (q *TermQuery) Weight(ctx *Context, boost float64) (Weight, error) {
	stats := ctx.TermStats(q.Term)
	if stats.DocFreq == 0 {
		return noMatch{}, nil
	}
	coll := ctx.CollectionStats(q.Term.Field)
	return &termWeight{term: q.Term, scorer: ctx.Similarity.Scorer(boost, coll, stats)}, nil
}

type termWeight struct {
	term   index.Term
	scorer similarity.SimScorer
}

func (w *termWeight) Match(leaf indexer.Leaf) (Matches, error) {
	pl, err := leaf.Reader.Postings(w.term)
	if err != nil {
		return nil, fmt.Errorf("reading postings of %s: %w", w.term, err)
	}
	m := make(Matches, len(pl))
	for _, p := range pl {
		m[p.Doc] = w.scorer.Score(float64(p.Frequency), leaf.Reader.FieldLength(w.term.Field, p.Doc))
	}
	return m, nil
}

// MatchAllDocsQuery matches every document with score 1.
type MatchAllDocsQuery struct{}

func (MatchAllDocsQuery) String() string { return "*:*" }

func (MatchAllDocsQuery) Weight(_ *Context, boost float64) (Weight, error) {
	return matchAllWeight(boost), nil
}

type matchAllWeight float64

func (w matchAllWeight) Match(leaf indexer.Leaf) (Matches, error) {
	n := leaf.Reader.DocCount()
	m := make(Matches, n)
	for doc := 0; doc < n; doc++ {
		m[doc] = float64(w)
	}
	return m, nil
}

// BoostQuery multiplies the scores of Query by Boost.
type BoostQuery struct {
	Query Query
	Boost float64
}

func (q *BoostQuery) String() string {
	inner := q.Query.String()
	if _, ok := q.Query.(*BooleanQuery); ok {
		inner = "(" + inner + ")"
	}
	return inner + "^" + strconv.FormatFloat(q.Boost, 'g', -1, 64)
}

func (q *BoostQuery) Weight(ctx *Context, boost float64) (Weight, error) {
	return q.Query.Weight(ctx, boost*q.Boost)
}
