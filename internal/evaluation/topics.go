// Package evaluation measures retrieval quality against relevance
// judgments: per-query counts, precision at the eleven standard recall
// levels and mean average precision.
package evaluation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

// Query is one line of the query file.
type Query struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// ParseQueries reads "id \t text" lines in file order. Blank lines are
// skipped.
func ParseQueries(r io.Reader) ([]Query, error) {
	var queries []Query
	err := scanLines(r, func(n int, line string) error {
		id, text, ok := strings.Cut(line, "\t")
		if !ok {
			return fmt.Errorf("%w: line %d: want id<TAB>text", apperrors.ErrMalformedRecord, n)
		}
		qid, err := strconv.Atoi(strings.TrimSpace(id))
		if err != nil {
			return fmt.Errorf("%w: line %d: query id %q", apperrors.ErrMalformedRecord, n, id)
		}
		queries = append(queries, Query{ID: qid, Text: strings.TrimSpace(text)})
		return nil
	})
	return queries, err
}

// Judgments maps query ids to their relevant doc ids.
type Judgments struct {
	order    []int
	relevant map[int][]int
	sets     map[int]map[int]struct{}
}

func NewJudgments() *Judgments {
	return &Judgments{
		relevant: make(map[int][]int),
		sets:     make(map[int]map[int]struct{}),
	}
}

// Add appends docs to the judgments of query. Duplicates are ignored.
func (j *Judgments) Add(query int, docs ...int) {
	set, ok := j.sets[query]
	if !ok {
		set = make(map[int]struct{})
		j.sets[query] = set
		j.order = append(j.order, query)
	}
	for _, d := range docs {
		if _, dup := set[d]; dup {
			continue
		}
		set[d] = struct{}{}
		j.relevant[query] = append(j.relevant[query], d)
	}
}

// Relevant returns the relevant docs of query in file order.
func (j *Judgments) Relevant(query int) []int { return j.relevant[query] }

func (j *Judgments) Count(query int) int { return len(j.relevant[query]) }

func (j *Judgments) IsRelevant(query, doc int) bool {
	_, ok := j.sets[query][doc]
	return ok
}

// Queries lists the judged query ids in file order.
func (j *Judgments) Queries() []int { return j.order }

// ParseQrels reads "queryID;doc,doc,..." lines.
func ParseQrels(r io.Reader) (*Judgments, error) {
	j := NewJudgments()
	err := scanLines(r, func(n int, line string) error {
		id, list, ok := strings.Cut(line, ";")
		if !ok {
			return fmt.Errorf("%w: line %d: want query;doc,doc", apperrors.ErrMalformedRecord, n)
		}
		qid, err := strconv.Atoi(strings.TrimSpace(id))
		if err != nil {
			return fmt.Errorf("%w: line %d: query id %q", apperrors.ErrMalformedRecord, n, id)
		}
		var docs []int
		for _, f := range strings.Split(list, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			d, err := strconv.Atoi(f)
			if err != nil {
				return fmt.Errorf("%w: line %d: doc id %q", apperrors.ErrMalformedRecord, n, f)
			}
			docs = append(docs, d)
		}
		j.Add(qid, docs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

// ReadQueriesFile and ReadQrelsFile open path and parse it.
func ReadQueriesFile(path string) ([]Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening query file: %w", err)
	}
	defer f.Close()
	return ParseQueries(f)
}

func ReadQrelsFile(path string) (*Judgments, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening qrels file: %w", err)
	}
	defer f.Close()
	return ParseQrels(f)
}

func scanLines(r io.Reader, fn func(n int, line string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
