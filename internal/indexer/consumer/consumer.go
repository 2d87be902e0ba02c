// Package consumer applies document events from the Kafka document topic to
// the indexes of a catalog.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/cacm"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/kafka"
)

// AnalyzerFor picks the analyzer an index is created with.
type AnalyzerFor func(indexName string) (analysis.Analyzer, error)

// Starter is satisfied by *kafka.Consumer.
type Starter interface {
	Start(ctx context.Context) error
}

// IndexConsumer drives a Kafka consumer whose handler is HandleMessage.
type IndexConsumer struct {
	consumer Starter
	logger   *slog.Logger
}

func New(c Starter) *IndexConsumer {
	return &IndexConsumer{
		consumer: c,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a kafka.MessageHandler that opens the event's index
// in cat on first use and applies the event to it. Changes become visible
// to readers on the engine's next commit.
func HandleMessage(cat *catalog.Catalog, analyzerFor AnalyzerFor) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.DocumentEvent](value)
		if err != nil {
			logger.Error("undecodable document event", "key", string(key), "error", err)
			return err
		}
		engine, err := openIndex(cat, event.Index, analyzerFor)
		if err != nil {
			return fmt.Errorf("%w: %v", kafka.ErrSkip, err)
		}
		switch event.Op {
		case ingestion.OpAdd:
			if err := engine.AddDocument(event.Layout.Document(event.Record)); err != nil {
				return fmt.Errorf("adding document %d to %s: %w", event.Record.ID, event.Index, err)
			}
			logger.Debug("document added", "index", event.Index, "id", event.Record.ID)
		case ingestion.OpDelete:
			n, err := engine.DeleteDocuments(index.NewTerm(cacm.FieldID, strconv.Itoa(event.Record.ID)))
			if err != nil {
				return fmt.Errorf("deleting document %d from %s: %w", event.Record.ID, event.Index, err)
			}
			logger.Debug("document deleted", "index", event.Index, "id", event.Record.ID, "matched", n)
		default:
			logger.Warn("unknown document op", "op", event.Op, "key", string(key))
			return fmt.Errorf("%w: unknown op %q", kafka.ErrSkip, event.Op)
		}
		return nil
	}
}

// openIndex reuses the analyzer recorded by an existing index and asks
// analyzerFor only for new ones.
func openIndex(cat *catalog.Catalog, name string, analyzerFor AnalyzerFor) (*indexer.Engine, error) {
	if e, err := cat.Get(name); err == nil {
		return e, nil
	}
	if cat.Exists(name) {
		return cat.Open(name, nil)
	}
	a, err := analyzerFor(name)
	if err != nil {
		return nil, fmt.Errorf("index %q: %w", name, err)
	}
	return cat.Open(name, a)
}
