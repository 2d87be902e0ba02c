// Package merger collects the best scoring documents with a bounded
// min-heap.
package merger

import (
	"container/heap"
)

// ScoreDoc is a matching document by global document number.
type ScoreDoc struct {
	Doc   int     `json:"doc"`
	Score float64 `json:"score"`
}

// TopDocs is the result of a search: the best hits in rank order and the
// number of documents that matched in total.
type TopDocs struct {
	TotalHits int        `json:"total_hits"`
	ScoreDocs []ScoreDoc `json:"score_docs"`
	MaxScore  float64    `json:"max_score"`
}

// Collector keeps the limit highest scoring documents. Equal scores rank the
// lower document number first.
type Collector struct {
	limit int
	total int
	h     scoreDocHeap
}

func NewCollector(limit int) *Collector {
	if limit <= 0 {
		limit = 10
	}
	return &Collector{limit: limit, h: make(scoreDocHeap, 0, limit+1)}
}

func (c *Collector) Collect(doc int, score float64) {
	c.total++
	sd := ScoreDoc{Doc: doc, Score: score}
	if c.h.Len() < c.limit {
		heap.Push(&c.h, sd)
		return
	}
	if worse(c.h[0], sd) {
		c.h[0] = sd
		heap.Fix(&c.h, 0)
	}
}

// TotalHits counts every collected document.
func (c *Collector) TotalHits() int { return c.total }

// TopDocs drains the collector into rank order.
func (c *Collector) TopDocs() TopDocs {
	result := make([]ScoreDoc, c.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&c.h).(ScoreDoc)
	}
	td := TopDocs{TotalHits: c.total, ScoreDocs: result}
	if len(result) > 0 {
		td.MaxScore = result[0].Score
	}
	return td
}

// Merge combines ranked result lists into the top limit overall.
func Merge(results []TopDocs, limit int) TopDocs {
	c := NewCollector(limit)
	total := 0
	for _, r := range results {
		total += r.TotalHits
		for _, sd := range r.ScoreDocs {
			c.Collect(sd.Doc, sd.Score)
		}
	}
	td := c.TopDocs()
	td.TotalHits = total
	return td
}

// worse reports whether a ranks below b.
func worse(a, b ScoreDoc) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Doc > b.Doc
}

type scoreDocHeap []ScoreDoc

func (h scoreDocHeap) Len() int { return len(h) }

func (h scoreDocHeap) Less(i, j int) bool { return worse(h[i], h[j]) }

func (h scoreDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoreDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ScoreDoc))
}

func (h *scoreDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
