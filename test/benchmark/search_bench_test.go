package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/cacm"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/similarity"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/config"
)

var benchQueries = []struct {
	name  string
	query string
}{
	{"term", "sorting"},
	{"free_text", "sorting networks comparators"},
	{"boolean", "+sorting -hash networks"},
	{"phrase", `"sorting networks"`},
	{"sloppy", `"networks sorting"~2`},
	{"fielded", "title:algorithm AND summary:comparators"},
}

func BenchmarkQueryParse(b *testing.B) {
	p := parser.New(analysis.English(nil), cacm.FieldTitle, cacm.FieldSummary)
	for _, q := range benchQueries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := p.Parse(q.query); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func openBenchIndex(b *testing.B, numDocs int) *indexer.IndexReader {
	b.Helper()
	cfg := config.Default().Indexer
	cfg.DataDir = b.TempDir()
	e, err := indexer.NewEngine(cfg, analysis.English(nil))
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < numDocs; i++ {
		rec := record(i)
		if i%3 == 0 {
			rec.Summary = sampleTexts["long"]
		}
		if err := e.AddDocument(cacm.FieldedDocument(rec)); err != nil {
			b.Fatal(err)
		}
	}
	if err := e.Close(); err != nil {
		b.Fatal(err)
	}
	r, err := indexer.OpenReader(cfg.DataDir, 64)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { r.Close() })
	return r
}

// BenchmarkSearch measures parse plus top-10 collection for each similarity.
func BenchmarkSearch(b *testing.B) {
	r := openBenchIndex(b, 2000)
	a, err := r.Analyzer()
	if err != nil {
		b.Fatal(err)
	}
	p := parser.New(a, cacm.FieldTitle, cacm.FieldSummary)
	for _, simName := range []string{"bm25", "classic", "custom"} {
		sim, err := similarity.ForName(simName)
		if err != nil {
			b.Fatal(err)
		}
		s := executor.New(r, sim)
		for _, q := range benchQueries {
			parsed, err := p.Parse(q.query)
			if err != nil {
				b.Fatal(err)
			}
			b.Run(fmt.Sprintf("%s/%s", simName, q.name), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, err := s.Search(context.Background(), parsed, 10); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkAveragePrecision(b *testing.B) {
	retrieved := make([]int, 1000)
	relevant := make(map[int]bool)
	for i := range retrieved {
		retrieved[i] = i
		if i%7 == 0 {
			relevant[i] = true
		}
	}
	isRelevant := func(d int) bool { return relevant[d] }
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = evaluation.PrecisionAtRecallLevels(retrieved, isRelevant, len(relevant))
		_ = evaluation.AveragePrecision(retrieved, isRelevant, len(relevant))
	}
}
