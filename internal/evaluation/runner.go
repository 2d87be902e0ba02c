package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/cacm"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

// DefaultMaxHits caps the ranking kept per query.
const DefaultMaxHits = 10000

// Runner executes a query set against one index. Query text is escaped
// before parsing, so operators in the topics are searched as words.
type Runner struct {
	Searcher *executor.Searcher
	Parser   *parser.Parser
	MaxHits  int
}

// Run returns the ranked CACM ids per query, in query order.
func (r Runner) Run(ctx context.Context, name string, queries []Query) (Run, error) {
	maxHits := r.MaxHits
	if maxHits <= 0 {
		maxHits = DefaultMaxHits
	}
	logger := slog.Default().With("component", "evaluation", "index", name)
	start := time.Now()
	run := Run{Name: name, Queries: make([]QueryRun, 0, len(queries))}
	for _, q := range queries {
		ids, err := r.query(ctx, q, maxHits)
		if err != nil {
			return Run{}, fmt.Errorf("query %d: %w", q.ID, err)
		}
		run.Queries = append(run.Queries, QueryRun{QueryID: q.ID, Retrieved: ids})
	}
	logger.Info("queries executed", "queries", len(queries), "took", time.Since(start))
	return run, nil
}

func (r Runner) query(ctx context.Context, q Query, maxHits int) ([]int, error) {
	parsed, err := r.Parser.Parse(parser.Escape(q.Text))
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		return []int{}, nil
	}
	top, err := r.Searcher.Search(ctx, parsed, maxHits)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(top.ScoreDocs))
	for _, sd := range top.ScoreDocs {
		doc, err := r.Searcher.Doc(sd.Doc)
		if err != nil {
			return nil, err
		}
		id, err := strconv.Atoi(doc.Get(cacm.FieldID))
		if err != nil {
			return nil, fmt.Errorf("%w: doc %d has no numeric %s field", apperrors.ErrMalformedRecord, sd.Doc, cacm.FieldID)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Result is one index's evaluation.
type Result struct {
	Name  string  `json:"name"`
	Run   Run     `json:"-"`
	Stats []Stats `json:"stats"`
	Curve Curve   `json:"curve"`
	MAP   float64 `json:"map"`
}

// Evaluate scores run against j.
func Evaluate(run Run, j *Judgments) Result {
	return Result{
		Name:  run.Name,
		Run:   run,
		Stats: ComputeStatistics(run, j),
		Curve: AveragePrecisionAtRecallLevels(run, j),
		MAP:   MeanAveragePrecision(run, j),
	}
}
