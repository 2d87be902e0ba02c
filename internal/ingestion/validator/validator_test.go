package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/cacm"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/ingestion"
)

func TestValidRequest(t *testing.T) {
	req := &ingestion.IngestRequest{
		Index:   "english",
		Records: []cacm.Record{{ID: 1, Title: "Hash Coding", Authors: []string{"Knuth, D. E."}}},
		Delete:  []int{7},
	}
	assert.NoError(t, ValidateIngestRequest(req))
}

func TestInvalidRequestListsFields(t *testing.T) {
	req := &ingestion.IngestRequest{
		Index:  "../etc",
		Layout: "columnar",
		Records: []cacm.Record{
			{ID: 0, Title: " "},
			{ID: 2, Title: "ok\tnot", Authors: []string{"a;b"}},
		},
		Delete: []int{-1},
	}
	err := ValidateIngestRequest(req)
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	for _, field := range []string{
		"index", "layout", "records[0].id", "records[0].title",
		"records[1].title", "records[1].authors", "delete[0]",
	} {
		assert.Contains(t, verr.Fields, field)
	}
	assert.True(t, strings.HasPrefix(err.Error(), "validation failed: delete[0]"))
}

func TestEmptyRequest(t *testing.T) {
	err := ValidateIngestRequest(&ingestion.IngestRequest{Index: "standard"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "records")
}

func TestValidateRecordAndIndexName(t *testing.T) {
	assert.NoError(t, ValidateRecord(cacm.Record{ID: 3, Title: "Sorting"}))
	assert.Error(t, ValidateRecord(cacm.Record{ID: 3, Title: strings.Repeat("x", maxTitleLength+1)}))
	assert.NoError(t, ValidateIndexName("english-custom"))
	assert.Error(t, ValidateIndexName("English"))
}
