// Package query defines the query tree and evaluates it against the
// segments of a point-in-time index reader.
package query

import (
	"sync"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/similarity"
)

// Query is a node of the query tree.
type Query interface {
	// String renders the query in parser syntax with analyzed terms.
	String() string
	// Weight binds the query to the statistics of ctx's reader. boost
	// multiplies every score the weight produces.
	Weight(ctx *Context, boost float64) (Weight, error)
}

// Weight scores the documents of one segment.
type Weight interface {
	// Match returns the local ordinals of leaf the query matches with their
	// scores. Deleted documents are not filtered here.
	Match(leaf indexer.Leaf) (Matches, error)
}

// Matches maps local ordinals to scores.
type Matches map[int]float64

// Context carries what weights need from the searcher.
type Context struct {
	Reader     *indexer.IndexReader
	Similarity similarity.Similarity

	mu    sync.Mutex
	stats map[string]similarity.CollectionStats
}

func NewContext(r *indexer.IndexReader, sim similarity.Similarity) *Context {
	return &Context{Reader: r, Similarity: sim, stats: make(map[string]similarity.CollectionStats)}
}

// CollectionStats returns field statistics, computed once per context.
func (c *Context) CollectionStats(field string) similarity.CollectionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.stats[field]; ok {
		return st
	}
	st := similarity.CollectionStats{
		Field:            field,
		MaxDoc:           c.Reader.MaxDoc(),
		DocCount:         c.Reader.DocCountWithField(field),
		SumTotalTermFreq: c.Reader.SumFieldLength(field),
	}
	c.stats[field] = st
	return st
}

// TermStats returns index-wide statistics of term.
func (c *Context) TermStats(term index.Term) similarity.TermStats {
	return similarity.TermStats{
		Text:          term.Text,
		DocFreq:       c.Reader.DocFreq(term),
		TotalTermFreq: c.Reader.TotalTermFreq(term),
	}
}

type noMatch struct{}

func (noMatch) Match(indexer.Leaf) (Matches, error) { return nil, nil }

// ExtractTerms lists the terms a query searches for, prohibited clauses
// excluded.
func ExtractTerms(q Query) []index.Term {
	var out []index.Term
	var walk func(Query)
	walk = func(q Query) {
		switch v := q.(type) {
		case *TermQuery:
			out = append(out, v.Term)
		case *PhraseQuery:
			for _, t := range v.Terms {
				out = append(out, index.NewTerm(v.Field, t))
			}
		case *BooleanQuery:
			for _, c := range v.Clauses {
				if c.Occur != MustNot {
					walk(c.Query)
				}
			}
		case *BoostQuery:
			walk(v.Query)
		}
	}
	walk(q)
	return out
}
