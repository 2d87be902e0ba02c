package query

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/similarity"
)

// Occur says how a clause takes part in a boolean query.
type Occur int

const (
	Should Occur = iota
	Must
	MustNot
)

func (o Occur) prefix() string {
	switch o {
	case Must:
		return "+"
	case MustNot:
		return "-"
	}
	return ""
}

type Clause struct {
	Query Query
	Occur Occur
}

// BooleanQuery combines clauses. Documents must match every Must clause and
// no MustNot clause; without Must clauses at least one Should clause has to
// match. Scores are summed over matching clauses and scaled by the
// similarity's coord factor unless DisableCoord is set.
type BooleanQuery struct {
	Clauses      []Clause
	DisableCoord bool
}

func (q *BooleanQuery) Add(sub Query, occur Occur) {
	q.Clauses = append(q.Clauses, Clause{Query: sub, Occur: occur})
}

func (q *BooleanQuery) String() string {
	parts := make([]string, len(q.Clauses))
	for i, c := range q.Clauses {
		s := c.Query.String()
		if _, nested := c.Query.(*BooleanQuery); nested {
			s = "(" + s + ")"
		}
		parts[i] = c.Occur.prefix() + s
	}
	return strings.Join(parts, " ")
}

func (q *BooleanQuery) Weight(ctx *Context, boost float64) (Weight, error) {
	w := &booleanWeight{sim: ctx.Similarity, disableCoord: q.DisableCoord}
	for _, c := range q.Clauses {
		sub, err := c.Query.Weight(ctx, boost)
		if err != nil {
			return nil, err
		}
		switch c.Occur {
		case Must:
			w.must = append(w.must, sub)
		case MustNot:
			w.mustNot = append(w.mustNot, sub)
		default:
			w.should = append(w.should, sub)
		}
	}
	return w, nil
}

type booleanWeight struct {
	must         []Weight
	should       []Weight
	mustNot      []Weight
	sim          similarity.Similarity
	disableCoord bool
}

func (w *booleanWeight) Match(leaf indexer.Leaf) (Matches, error) {
	maxOverlap := len(w.must) + len(w.should)
	if maxOverlap == 0 {
		return nil, nil
	}
	must, err := matchAll(w.must, leaf)
	if err != nil {
		return nil, err
	}
	should, err := matchAll(w.should, leaf)
	if err != nil {
		return nil, err
	}
	excluded, err := matchAll(w.mustNot, leaf)
	if err != nil {
		return nil, err
	}

	candidates := make(map[int]struct{})
	if len(must) > 0 {
		for doc := range must[0] {
			candidates[doc] = struct{}{}
		}
		for _, m := range must[1:] {
			for doc := range candidates {
				if _, ok := m[doc]; !ok {
					delete(candidates, doc)
				}
			}
		}
	} else {
		for _, m := range should {
			for doc := range m {
				candidates[doc] = struct{}{}
			}
		}
	}
	for _, m := range excluded {
		for doc := range m {
			delete(candidates, doc)
		}
	}

	out := make(Matches, len(candidates))
	for doc := range candidates {
		var score float64
		overlap := 0
		for _, m := range must {
			score += m[doc]
			overlap++
		}
		for _, m := range should {
			if s, ok := m[doc]; ok {
				score += s
				overlap++
			}
		}
		if !w.disableCoord {
			score *= w.sim.Coord(overlap, maxOverlap)
		}
		out[doc] = score
	}
	return out, nil
}

func matchAll(weights []Weight, leaf indexer.Leaf) ([]Matches, error) {
	out := make([]Matches, 0, len(weights))
	for _, w := range weights {
		m, err := w.Match(leaf)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
