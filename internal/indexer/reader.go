package indexer

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

// Leaf is one segment of a point-in-time reader. Global document numbers of
// the leaf start at DocBase.
type Leaf struct {
	Reader  *segment.Reader
	DocBase int
	deleted map[int]struct{}
}

// IsDeleted reports whether local ordinal doc was deleted at commit time.
func (l Leaf) IsDeleted(doc int) bool {
	_, ok := l.deleted[doc]
	return ok
}

// NumDeleted is the number of deleted documents in the leaf.
func (l Leaf) NumDeleted() int { return len(l.deleted) }

// IndexReader is a read-only view of one committed manifest generation. It
// does not take the write lock.
type IndexReader struct {
	dir        string
	generation int64
	analyzer   string
	stopWords  []string
	leaves     []Leaf
	maxDoc     int
	numDocs    int
}

// TermStat is a term with its collection frequencies.
type TermStat struct {
	Text          string
	DocFreq       int
	TotalTermFreq int64
}

const openAttempts = 3

// OpenReader opens the latest commit of dir. A merge that removes segments
// between reading the manifest and opening them is retried.
func OpenReader(dir string, cacheSize int) (*IndexReader, error) {
	var lastErr error
	for attempt := 0; attempt < openAttempts; attempt++ {
		r, err := openReader(dir, cacheSize)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func openReader(dir string, cacheSize int) (*IndexReader, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	r := &IndexReader{dir: dir, generation: m.Generation, analyzer: m.Analyzer, stopWords: m.StopWords}
	for _, meta := range m.Segments {
		sr, err := segment.OpenReader(filepath.Join(dir, segment.FileName(meta.Name)), cacheSize)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("opening segment %s: %w", meta.Name, err)
		}
		leaf := Leaf{Reader: sr, DocBase: r.maxDoc, deleted: make(map[int]struct{}, len(meta.Deleted))}
		for _, doc := range meta.Deleted {
			leaf.deleted[doc] = struct{}{}
		}
		r.leaves = append(r.leaves, leaf)
		r.maxDoc += sr.DocCount()
		r.numDocs += sr.DocCount() - len(leaf.deleted)
	}
	return r, nil
}

func (r *IndexReader) Dir() string { return r.dir }

func (r *IndexReader) Generation() int64 { return r.generation }

// AnalyzerName is the name of the analyzer the index was built with.
func (r *IndexReader) AnalyzerName() string { return r.analyzer }

// Analyzer rebuilds the analyzer the index was built with, custom stop words
// included.
func (r *IndexReader) Analyzer() (analysis.Analyzer, error) {
	var stop analysis.StopWords
	if r.stopWords != nil {
		stop = analysis.NewStopWords(r.stopWords...)
	}
	return analysis.ForName(r.analyzer, stop)
}

// NumDocs is the number of live documents.
func (r *IndexReader) NumDocs() int { return r.numDocs }

// MaxDoc is one past the largest global document number, deleted documents
// included.
func (r *IndexReader) MaxDoc() int { return r.maxDoc }

func (r *IndexReader) NumDeleted() int { return r.maxDoc - r.numDocs }

func (r *IndexReader) Leaves() []Leaf { return r.leaves }

// DocFreq sums the document frequency of term over every segment. Deleted
// documents still count until they are merged away.
func (r *IndexReader) DocFreq(term index.Term) int {
	n := 0
	for _, l := range r.leaves {
		n += l.Reader.DocFreq(term)
	}
	return n
}

func (r *IndexReader) TotalTermFreq(term index.Term) int64 {
	var n int64
	for _, l := range r.leaves {
		n += l.Reader.TotalTermFreq(term)
	}
	return n
}

// SumFieldLength is the total token count of field over every segment.
func (r *IndexReader) SumFieldLength(field string) int64 {
	var n int64
	for _, l := range r.leaves {
		n += l.Reader.SumFieldLength(field)
	}
	return n
}

// DocCountWithField counts documents with at least one token in field.
func (r *IndexReader) DocCountWithField(field string) int {
	n := 0
	for _, l := range r.leaves {
		for doc := 0; doc < l.Reader.DocCount(); doc++ {
			if l.Reader.FieldLength(field, doc) > 0 {
				n++
			}
		}
	}
	return n
}

// Fields lists every indexed field name in sorted order.
func (r *IndexReader) Fields() []string {
	seen := make(map[string]struct{})
	for _, l := range r.leaves {
		for _, f := range l.Reader.Fields() {
			seen[f] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (r *IndexReader) leafFor(doc int) (Leaf, int, error) {
	if doc < 0 || doc >= r.maxDoc {
		return Leaf{}, 0, fmt.Errorf("%w: doc %d (maxDoc %d)", apperrors.ErrDocumentNotFound, doc, r.maxDoc)
	}
	i := sort.Search(len(r.leaves), func(i int) bool {
		return r.leaves[i].DocBase+r.leaves[i].Reader.DocCount() > doc
	})
	leaf := r.leaves[i]
	return leaf, doc - leaf.DocBase, nil
}

// Document returns the stored fields of global document doc.
func (r *IndexReader) Document(doc int) (index.StoredDocument, error) {
	leaf, local, err := r.leafFor(doc)
	if err != nil {
		return nil, err
	}
	if leaf.IsDeleted(local) {
		return nil, fmt.Errorf("%w: doc %d is deleted", apperrors.ErrDocumentNotFound, doc)
	}
	return leaf.Reader.Document(local)
}

// HighFreqTerms returns the n terms of field with the highest document
// frequency, ties broken by term text.
func (r *IndexReader) HighFreqTerms(field string, n int) []TermStat {
	if n <= 0 {
		return nil
	}
	merged := make(map[string]*TermStat)
	for _, l := range r.leaves {
		for _, e := range l.Reader.Terms(field) {
			st, ok := merged[e.Term]
			if !ok {
				st = &TermStat{Text: e.Term}
				merged[e.Term] = st
			}
			st.DocFreq += e.DocFreq
			st.TotalTermFreq += e.TotalTermFreq
		}
	}
	out := make([]TermStat, 0, len(merged))
	for _, st := range merged {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocFreq != out[j].DocFreq {
			return out[i].DocFreq > out[j].DocFreq
		}
		return out[i].Text < out[j].Text
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Close closes every segment reader.
func (r *IndexReader) Close() error {
	var firstErr error
	for _, l := range r.leaves {
		if err := l.Reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.leaves = nil
	return firstErr
}
