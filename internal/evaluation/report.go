package evaluation

import (
	"bufio"
	"fmt"
	"io"
)

// Report is the printed summary of an evaluation over several indexes.
type Report struct {
	TotalDocs int
	Queries   []Query
	Judgments *Judgments
	Results   []Result
}

// Write prints the summary statistics, the relevant counts, the
// relevant-retrieved counts, then the averaged curve and MAP per index.
func (r Report) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) { fmt.Fprintf(bw, format, args...) }

	p("1) Summary statistics\n")
	p("---------------------\n\n")

	p("a. total number of documents\n\n")
	p("%d\n\n", r.TotalDocs)

	p("b. total number retrieved documents for all queries\n\n")
	for _, res := range r.Results {
		r.writeStats(p, res, func(s Stats) int { return s.Retrieved })
	}
	p("\n")

	p("c. total number of relevant documents for all queries\n\n")
	for _, q := range r.Queries {
		p("%d: %d\n", q.ID, r.Judgments.Count(q.ID))
	}
	p("\n")

	p("d. total number of relevant documents retrieved for all queries\n\n")
	for _, res := range r.Results {
		r.writeStats(p, res, func(s Stats) int { return s.RelevantRetrieved })
	}

	p("2) Average Precision at Standard Recall Levels\n\n")
	for _, res := range r.Results {
		p("%-16s", res.Name)
		for _, v := range res.Curve {
			p(" %s", FormatDecimal(v))
		}
		p("\n")
	}
	p("\n")

	p("3) Mean Average Precision\n\n")
	for _, res := range r.Results {
		p("%-16s %s\n", res.Name, FormatDecimal(res.MAP))
	}
	return bw.Flush()
}

func (r Report) writeStats(p func(string, ...any), res Result, value func(Stats) int) {
	p("With %s analyzer\n\n", res.Name)
	for _, s := range res.Stats {
		p("%d: %d\n", s.QueryID, value(s))
	}
	p("\n")
}

// Rows returns the CSV rows of the report.
func (r Report) Rows() []CurveRow {
	rows := make([]CurveRow, len(r.Results))
	for i, res := range r.Results {
		rows[i] = CurveRow{Name: res.Name, Curve: res.Curve}
	}
	return rows
}
