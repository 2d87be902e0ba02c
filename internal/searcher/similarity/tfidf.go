package similarity

import "math"

// TFIDF is a vector-space similarity built from three pluggable functions.
// A term scores boost * idf^2 * tf(freq) * lengthNorm(fieldLength); a phrase
// uses the sum of its terms' idf.
type TFIDF struct {
	name       string
	TF         func(freq float64) float64
	IDF        func(docFreq, maxDoc int) float64
	LengthNorm func(fieldLength int) float64
	coord      bool
}

// Classic is the default TF-IDF model: tf = sqrt(freq),
// idf = 1 + ln(maxDoc/(docFreq+1)), norm = 1/sqrt(length), coord on.
func Classic() *TFIDF {
	return &TFIDF{
		name: "classic",
		TF:   math.Sqrt,
		IDF: func(docFreq, maxDoc int) float64 {
			return 1 + math.Log(float64(maxDoc)/float64(docFreq+1))
		},
		LengthNorm: func(fieldLength int) float64 {
			if fieldLength <= 0 {
				return 1
			}
			return 1 / math.Sqrt(float64(fieldLength))
		},
		coord: true,
	}
}

// Custom flattens the classic model: tf = 1 + ln(freq), no length
// normalisation and idf = ln(maxDoc/docFreq) + 1.
func Custom() *TFIDF {
	sim := Classic()
	sim.name = "custom"
	sim.TF = func(freq float64) float64 {
		if freq <= 0 {
			return 0
		}
		return 1 + math.Log(freq)
	}
	sim.IDF = func(docFreq, maxDoc int) float64 {
		if docFreq <= 0 {
			return 1
		}
		return math.Log(float64(maxDoc)/float64(docFreq)) + 1
	}
	sim.LengthNorm = func(int) float64 { return 1 }
	return sim
}

func (s *TFIDF) Name() string { return s.name }

func (s *TFIDF) Scorer(boost float64, coll CollectionStats, terms ...TermStats) SimScorer {
	var idf float64
	for _, t := range terms {
		idf += s.IDF(t.DocFreq, coll.MaxDoc)
	}
	weight := boost * idf * idf
	return ScorerFunc(func(freq float64, fieldLength int) float64 {
		return weight * s.TF(freq) * s.LengthNorm(fieldLength)
	})
}

func (s *TFIDF) Coord(overlap, maxOverlap int) float64 {
	if !s.coord || maxOverlap == 0 {
		return 1
	}
	return float64(overlap) / float64(maxOverlap)
}

func (s *TFIDF) SloppyFreq(distance int) float64 { return sloppyFreq(distance) }
