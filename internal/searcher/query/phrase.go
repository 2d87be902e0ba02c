package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/similarity"
)

// PhraseQuery matches documents where Terms occur at the given relative
// Positions. With Slop > 0 the terms may be displaced by up to Slop
// positions in total, and a match at distance d counts as SloppyFreq(d)
// occurrences.
type PhraseQuery struct {
	Field     string
	Terms     []string
	Positions []int
	Slop      int
}

// NewPhraseQuery builds a phrase of consecutive terms.
func NewPhraseQuery(field string, terms ...string) *PhraseQuery {
	q := &PhraseQuery{Field: field}
	for i, t := range terms {
		q.Add(t, i)
	}
	return q
}

// Add appends term at relative position pos.
func (q *PhraseQuery) Add(term string, pos int) {
	q.Terms = append(q.Terms, term)
	q.Positions = append(q.Positions, pos)
}

func (q *PhraseQuery) String() string {
	var b strings.Builder
	b.WriteString(q.Field)
	b.WriteString(`:"`)
	for i, t := range q.Terms {
		if i > 0 {
			for gap := q.Positions[i] - q.Positions[i-1]; gap > 1; gap-- {
				b.WriteString(" ?")
			}
			b.WriteByte(' ')
		}
		b.WriteString(Escape(t))
	}
	b.WriteByte('"')
	if q.Slop > 0 {
		b.WriteString("~" + strconv.Itoa(q.Slop))
	}
	return b.String()
}

func (q *PhraseQuery) Weight(ctx *Context, boost float64) (Weight, error) {
	if len(q.Terms) == 0 {
		return noMatch{}, nil
	}
	if len(q.Terms) != len(q.Positions) {
		return nil, fmt.Errorf("phrase %s: %d terms but %d positions", q, len(q.Terms), len(q.Positions))
	}
	stats := make([]similarity.TermStats, len(q.Terms))
	for i, t := range q.Terms {
		stats[i] = ctx.TermStats(index.NewTerm(q.Field, t))
		if stats[i].DocFreq == 0 {
			return noMatch{}, nil
		}
	}
	return &phraseWeight{
		query:  q,
		scorer: ctx.Similarity.Scorer(boost, ctx.CollectionStats(q.Field), stats...),
		sim:    ctx.Similarity,
	}, nil
}

type phraseWeight struct {
	query  *PhraseQuery
	scorer similarity.SimScorer
	sim    similarity.Similarity
}

func (w *phraseWeight) Match(leaf indexer.Leaf) (Matches, error) {
	q := w.query
	perTerm := make([]map[int][]int, len(q.Terms))
	for i, t := range q.Terms {
		pl, err := leaf.Reader.Postings(index.NewTerm(q.Field, t))
		if err != nil {
			return nil, fmt.Errorf("reading postings of %s:%s: %w", q.Field, t, err)
		}
		if len(pl) == 0 {
			return nil, nil
		}
		docs := make(map[int][]int, len(pl))
		for _, p := range pl {
			docs[p.Doc] = p.Positions
		}
		perTerm[i] = docs
	}

	m := make(Matches)
	positions := make([][]int, len(q.Terms))
	for doc, first := range perTerm[0] {
		positions[0] = first
		found := true
		for i := 1; i < len(perTerm); i++ {
			p, ok := perTerm[i][doc]
			if !ok {
				found = false
				break
			}
			positions[i] = p
		}
		if !found {
			continue
		}
		freq := phraseFreq(positions, q.Positions, q.Slop, w.sim.SloppyFreq)
		if freq > 0 {
			m[doc] = w.scorer.Score(freq, leaf.Reader.FieldLength(q.Field, doc))
		}
	}
	return m, nil
}

// phraseFreq anchors the phrase on each occurrence of the first term, places
// every other term at its nearest occurrence and counts the anchor when the
// total displacement stays within slop.
func phraseFreq(positions [][]int, offsets []int, slop int, sloppy func(int) float64) float64 {
	var freq float64
	for _, p0 := range positions[0] {
		anchor := p0 - offsets[0]
		dist := 0
		for i := 1; i < len(positions) && dist <= slop; i++ {
			want := anchor + offsets[i]
			best := -1
			for _, p := range positions[i] {
				d := p - want
				if d < 0 {
					d = -d
				}
				if best < 0 || d < best {
					best = d
				}
			}
			dist += best
		}
		if dist > slop {
			continue
		}
		if dist == 0 {
			freq++
		} else {
			freq += sloppy(dist)
		}
	}
	return freq
}
