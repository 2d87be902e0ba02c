// Package publisher turns corpus records and ingest requests into document
// events on the Kafka document topic.
package publisher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/cacm"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/resilience"
)

const defaultBatchSize = 200

// EventWriter is the producer side of the document topic.
type EventWriter interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// Publisher batches events and publishes each batch with retries.
type Publisher struct {
	writer    EventWriter
	batchSize int
	retry     resilience.RetryConfig
	now       func() time.Time
	logger    *slog.Logger
}

func New(w EventWriter, batchSize int) *Publisher {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Publisher{
		writer:    w,
		batchSize: batchSize,
		retry:     resilience.RetryConfig{MaxAttempts: 4, InitialDelay: 200 * time.Millisecond},
		now:       func() time.Time { return time.Now().UTC() },
		logger:    slog.Default().With("component", "publisher"),
	}
}

// Ingest validates req and publishes its deletes followed by its records.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	if err := validator.ValidateIngestRequest(req); err != nil {
		return nil, err
	}
	layout, _ := cacm.ParseLayout(req.Layout)
	events := make([]kafka.Event, 0, len(req.Delete)+len(req.Records))
	for _, id := range req.Delete {
		events = append(events, p.event(ingestion.OpDelete, req.Index, layout, cacm.Record{ID: id}))
	}
	for _, rec := range req.Records {
		events = append(events, p.event(ingestion.OpAdd, req.Index, layout, rec))
	}
	batches, err := p.publish(ctx, events)
	if err != nil {
		return nil, err
	}
	p.logger.Info("ingest request published",
		"index", req.Index,
		"added", len(req.Records),
		"deleted", len(req.Delete),
		"batches", batches,
	)
	return &ingestion.IngestResponse{
		Index:   req.Index,
		Added:   len(req.Records),
		Deleted: len(req.Delete),
		Status:  "queued",
		Batches: batches,
	}, nil
}

// PublishCorpus streams every record of r to index as add events and
// returns the number published.
func (p *Publisher) PublishCorpus(ctx context.Context, index string, layout cacm.Layout, r io.Reader) (int, error) {
	if err := validator.ValidateIndexName(index); err != nil {
		return 0, err
	}
	batch := make([]kafka.Event, 0, p.batchSize)
	total := 0
	flush := func() error {
		if _, err := p.publish(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}
	err := cacm.Scan(r, func(rec cacm.Record) error {
		if err := validator.ValidateRecord(rec); err != nil {
			return fmt.Errorf("record %d: %w", rec.ID, err)
		}
		batch = append(batch, p.event(ingestion.OpAdd, index, layout, rec))
		if len(batch) == p.batchSize {
			return flush()
		}
		return nil
	})
	if err == nil && len(batch) > 0 {
		err = flush()
	}
	if err != nil {
		return total, err
	}
	p.logger.Info("corpus published", "index", index, "layout", layout, "records", total)
	return total, nil
}

func (p *Publisher) event(op ingestion.Op, index string, layout cacm.Layout, rec cacm.Record) kafka.Event {
	ev := ingestion.DocumentEvent{
		Op:          op,
		Index:       index,
		Layout:      layout,
		Record:      rec,
		PublishedAt: p.now(),
	}
	return kafka.Event{Key: ev.Key(), Value: ev}
}

func (p *Publisher) publish(ctx context.Context, events []kafka.Event) (int, error) {
	batches := 0
	for start := 0; start < len(events); start += p.batchSize {
		end := start + p.batchSize
		if end > len(events) {
			end = len(events)
		}
		chunk := events[start:end]
		err := resilience.Retry(ctx, "publish-documents", p.retry, func() error {
			return p.writer.Publish(ctx, chunk...)
		})
		if err != nil {
			return batches, fmt.Errorf("publishing events %d-%d: %w", start, end-1, err)
		}
		batches++
	}
	return batches, nil
}
