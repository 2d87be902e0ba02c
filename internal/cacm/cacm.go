// Package cacm reads the CACM bibliographic collection and maps its records
// to index documents.
//
// A corpus line is
//
//	id \t authors \t title [\t summary]
//
// where authors are separated by ';'.
package cacm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

// Field names used by the document layouts.
const (
	FieldID      = "id"
	FieldContent = "content"
	FieldAuthor  = "author"
	FieldTitle   = "title"
	FieldSummary = "summary"
)

const maxLineSize = 1 << 20

// Record is one article of the collection.
type Record struct {
	ID      int      `json:"id"`
	Authors []string `json:"authors,omitempty"`
	Title   string   `json:"title"`
	Summary string   `json:"summary,omitempty"`
}

// Layout selects how a Record becomes a Document.
type Layout string

const (
	// LayoutLab indexes title and summary as one "content" field.
	LayoutLab Layout = "lab"
	// LayoutFielded keeps author, title and summary as separate fields.
	LayoutFielded Layout = "fielded"
)

// ParseLayout accepts "lab" or "fielded"; empty means lab.
func ParseLayout(s string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(s))) {
	case "", LayoutLab:
		return LayoutLab, nil
	case LayoutFielded:
		return LayoutFielded, nil
	}
	return "", apperrors.Invalid("unknown document layout %q", s)
}

// Document maps rec according to l.
func (l Layout) Document(rec Record) index.Document {
	if l == LayoutFielded {
		return FieldedDocument(rec)
	}
	return LabDocument(rec)
}

// ParseLine parses a single corpus line.
func ParseLine(line string) (Record, error) {
	parts := strings.Split(line, "\t")
	if len(parts) < 3 {
		return Record{}, fmt.Errorf("%w: want at least 3 tab-separated fields, got %d", apperrors.ErrMalformedRecord, len(parts))
	}
	id, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Record{}, fmt.Errorf("%w: id %q is not a number", apperrors.ErrMalformedRecord, parts[0])
	}
	rec := Record{ID: id, Title: parts[2]}
	for _, a := range strings.Split(parts[1], ";") {
		if a = strings.TrimSpace(a); a != "" {
			rec.Authors = append(rec.Authors, a)
		}
	}
	if len(parts) > 3 {
		rec.Summary = parts[3]
	}
	return rec, nil
}

// ParseCorpus reads every non-blank line of r. Errors carry the 1-based line
// number.
func ParseCorpus(r io.Reader) ([]Record, error) {
	var records []Record
	err := Scan(r, func(rec Record) error {
		records = append(records, rec)
		return nil
	})
	return records, err
}

// Scan calls fn for each record of r in file order and stops at the first
// error.
func Scan(r io.Reader, fn func(Record) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := ParseLine(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading corpus: %w", err)
	}
	return nil
}

// ReadFile parses the corpus file at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()
	return ParseCorpus(f)
}

// LabDocument indexes the id verbatim and title plus summary as two values
// of the tokenized "content" field.
func LabDocument(rec Record) index.Document {
	var d index.Document
	d.Add(index.StringField(FieldID, strconv.Itoa(rec.ID)))
	d.Add(index.TextField(FieldContent, rec.Title))
	if rec.Summary != "" {
		d.Add(index.TextField(FieldContent, rec.Summary))
	}
	return d
}

// FieldedDocument keeps one untokenized "author" value per author and
// tokenizes title and summary separately.
func FieldedDocument(rec Record) index.Document {
	var d index.Document
	d.Add(index.StringField(FieldID, strconv.Itoa(rec.ID)))
	for _, a := range rec.Authors {
		d.Add(index.StringField(FieldAuthor, a))
	}
	d.Add(index.TextField(FieldTitle, rec.Title))
	if rec.Summary != "" {
		d.Add(index.TextField(FieldSummary, rec.Summary))
	}
	return d
}
