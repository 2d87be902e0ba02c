// Package ingestion defines the document events that flow from the corpus
// loader and the ingest API through Kafka to the indexer.
package ingestion

import (
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/cacm"
)

// Op is the change a DocumentEvent applies.
type Op string

const (
	OpAdd    Op = "add"
	OpDelete Op = "delete"
)

// DocumentEvent is the Kafka payload of the document topic. For OpDelete
// only Record.ID is used.
type DocumentEvent struct {
	Op          Op          `json:"op"`
	Index       string      `json:"index"`
	Layout      cacm.Layout `json:"layout"`
	Record      cacm.Record `json:"record"`
	PublishedAt time.Time   `json:"published_at"`
}

// Key partitions events so that every change to one document of one index
// is consumed in order.
func (e DocumentEvent) Key() string {
	return e.Index + "/" + strconv.Itoa(e.Record.ID)
}

// IngestRequest is the JSON body of POST /api/v1/documents.
type IngestRequest struct {
	Index   string        `json:"index"`
	Layout  string        `json:"layout"`
	Records []cacm.Record `json:"records"`
	Delete  []int         `json:"delete"`
}

// IngestResponse reports what was queued.
type IngestResponse struct {
	Index   string `json:"index"`
	Added   int    `json:"added"`
	Deleted int    `json:"deleted"`
	Status  string `json:"status"`
	Batches int    `json:"batches"`
}
