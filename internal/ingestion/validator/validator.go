// Package validator checks ingest requests before they are published.
package validator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/cacm"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/ingestion"
)

const (
	maxTitleLength   = 1024
	maxSummaryLength = 1 << 20
	maxRecords       = 10000
	maxAuthors       = 64
)

var indexName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidationError holds one message per offending field. Record fields are
// named records[i].field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ValidateIndexName accepts lower-case names usable as a directory name.
func ValidateIndexName(name string) error {
	if !indexName.MatchString(name) {
		return &ValidationError{Fields: map[string]string{"index": fmt.Sprintf("invalid index name %q", name)}}
	}
	return nil
}

// ValidateRecord checks a single record.
func ValidateRecord(rec cacm.Record) error {
	errs := make(map[string]string)
	validateRecord(rec, "", errs)
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validateRecord(rec cacm.Record, prefix string, errs map[string]string) {
	if rec.ID <= 0 {
		errs[prefix+"id"] = "id must be positive"
	}
	title := strings.TrimSpace(rec.Title)
	switch {
	case title == "":
		errs[prefix+"title"] = "title is required"
	case len(title) > maxTitleLength:
		errs[prefix+"title"] = fmt.Sprintf("title must be at most %d bytes", maxTitleLength)
	case strings.ContainsAny(rec.Title, "\t\n"):
		errs[prefix+"title"] = "title must not contain tabs or newlines"
	}
	if len(rec.Summary) > maxSummaryLength {
		errs[prefix+"summary"] = fmt.Sprintf("summary must be at most %d bytes", maxSummaryLength)
	}
	if len(rec.Authors) > maxAuthors {
		errs[prefix+"authors"] = fmt.Sprintf("at most %d authors", maxAuthors)
	}
	for _, a := range rec.Authors {
		if strings.ContainsAny(a, ";\t") {
			errs[prefix+"authors"] = "author names must not contain ';' or tabs"
			break
		}
	}
}

// ValidateIngestRequest checks the target index, the layout and every record.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)
	if !indexName.MatchString(req.Index) {
		errs["index"] = fmt.Sprintf("invalid index name %q", req.Index)
	}
	if _, err := cacm.ParseLayout(req.Layout); err != nil {
		errs["layout"] = fmt.Sprintf("unknown layout %q", req.Layout)
	}
	n := len(req.Records) + len(req.Delete)
	switch {
	case n == 0:
		errs["records"] = "at least one record or delete is required"
	case n > maxRecords:
		errs["records"] = fmt.Sprintf("at most %d changes per request", maxRecords)
	}
	for i, rec := range req.Records {
		validateRecord(rec, fmt.Sprintf("records[%d].", i), errs)
	}
	for i, id := range req.Delete {
		if id <= 0 {
			errs[fmt.Sprintf("delete[%d]", i)] = "id must be positive"
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
