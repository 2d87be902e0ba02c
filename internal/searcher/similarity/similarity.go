// Package similarity holds the term weighting models used to score matches:
// classic TF-IDF, BM25 and a flattened TF-IDF variant.
package similarity

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

// CollectionStats describes one field across the whole index.
type CollectionStats struct {
	Field            string
	MaxDoc           int
	DocCount         int
	SumTotalTermFreq int64
}

// TermStats describes one term across the whole index.
type TermStats struct {
	Text          string
	DocFreq       int
	TotalTermFreq int64
}

// Similarity produces scorers for term and phrase matches.
type Similarity interface {
	Name() string
	// Scorer prepares a scorer for a query over terms; a phrase passes every
	// term of the phrase.
	Scorer(boost float64, coll CollectionStats, terms ...TermStats) SimScorer
	// Coord rewards documents matching more clauses of a boolean query.
	Coord(overlap, maxOverlap int) float64
	// SloppyFreq is the frequency contribution of a phrase match found at
	// the given edit distance.
	SloppyFreq(distance int) float64
}

// SimScorer scores one document given the term frequency and the token count
// of the field in that document.
type SimScorer interface {
	Score(freq float64, fieldLength int) float64
}

// ScorerFunc adapts a function to SimScorer.
type ScorerFunc func(freq float64, fieldLength int) float64

func (f ScorerFunc) Score(freq float64, fieldLength int) float64 { return f(freq, fieldLength) }

// ForName returns the similarity called name: "classic", "bm25" or "custom".
func ForName(name string) (Similarity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "classic", "tfidf", "default":
		return Classic(), nil
	case "bm25":
		return NewBM25(DefaultK1, DefaultB), nil
	case "custom":
		return Custom(), nil
	}
	return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownSimilarity, name)
}

func sloppyFreq(distance int) float64 {
	return 1 / float64(distance+1)
}
