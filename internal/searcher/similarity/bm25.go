package similarity

import "math"

const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// BM25 is Okapi BM25 with document length normalised against the average
// field length of the collection.
type BM25 struct {
	K1 float64
	B  float64
}

func NewBM25(k1, b float64) *BM25 {
	return &BM25{K1: k1, B: b}
}

func (s *BM25) Name() string { return "bm25" }

func (s *BM25) Scorer(boost float64, coll CollectionStats, terms ...TermStats) SimScorer {
	var idf float64
	for _, t := range terms {
		idf += computeIDF(int64(coll.MaxDoc), int64(t.DocFreq))
	}
	avgDocLength := 1.0
	if coll.MaxDoc > 0 && coll.SumTotalTermFreq > 0 {
		avgDocLength = float64(coll.SumTotalTermFreq) / float64(coll.MaxDoc)
	}
	weight := boost * idf
	return ScorerFunc(func(freq float64, fieldLength int) float64 {
		return weight * s.computeTFNorm(freq, float64(fieldLength), avgDocLength)
	})
}

func (s *BM25) Coord(int, int) float64 { return 1 }

func (s *BM25) SloppyFreq(distance int) float64 { return sloppyFreq(distance) }

func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(1 + numerator/denominator)
}

func (s *BM25) computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + s.K1*(1-s.B+s.B*lengthRatio)
	return (termFreq * (s.K1 + 1)) / denominator
}
