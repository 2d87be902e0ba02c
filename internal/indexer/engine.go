// Package indexer owns the write path of an index directory: buffering
// documents in memory, flushing them as immutable segments, deleting by
// term, committing the manifest and merging segments.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/metrics"
)

type liveSegment struct {
	reader  *segment.Reader
	deleted map[int]struct{}
}

func (s *liveSegment) meta() SegmentMeta {
	m := SegmentMeta{Name: s.reader.Name(), DocCount: s.reader.DocCount()}
	for doc := range s.deleted {
		m.Deleted = append(m.Deleted, doc)
	}
	return m
}

// Engine is the single writer of one index directory.
type Engine struct {
	mu       sync.Mutex
	cfg      config.IndexerConfig
	name     string
	analyzer analysis.Analyzer
	stop     analysis.StopWords
	lock     *flock.Flock
	memIndex *index.MemoryIndex
	writer   *segment.Writer
	segments []*liveSegment
	manifest Manifest
	dirty    bool
	closed   bool
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithName sets the index name used in logs and metric labels.
func WithName(name string) Option {
	return func(e *Engine) { e.name = name }
}

// WithStopWords records the custom stop set the analyzer was built with so
// readers can rebuild the same analyzer.
func WithStopWords(stop analysis.StopWords) Option {
	return func(e *Engine) { e.stop = stop }
}

// WithMetrics records indexing activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine opens or creates the index in cfg.DataDir and takes its write
// lock. ErrIndexLocked is returned when another writer holds it.
func NewEngine(cfg config.IndexerConfig, a analysis.Analyzer, opts ...Option) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	lock := flock.New(filepath.Join(cfg.DataDir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring index lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrIndexLocked, cfg.DataDir)
	}
	e := &Engine{
		cfg:      cfg,
		name:     filepath.Base(cfg.DataDir),
		analyzer: a,
		lock:     lock,
		memIndex: index.NewMemoryIndex(),
		writer:   segment.NewWriter(cfg.DataDir, cfg.BloomFalsePositive),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = slog.Default().With("component", "indexer", "index", e.name)
	if err := e.loadExistingSegments(); err != nil {
		e.closeReaders()
		lock.Unlock()
		return nil, fmt.Errorf("loading existing segments: %w", err)
	}
	return e, nil
}

// AddDocument buffers doc and flushes when the memory index reaches
// SegmentMaxSize bytes or MaxBufferedDocs documents.
func (e *Engine) AddDocument(doc index.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return apperrors.ErrIndexClosed
	}

	ord := e.memIndex.AddDocument(doc, e.analyzer)
	e.dirty = true
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.WithLabelValues(e.name).Inc()
	}
	e.logger.Debug("document buffered",
		"ordinal", ord,
		"mem_size", e.memIndex.Size(),
	)
	sizeHit := e.cfg.SegmentMaxSize > 0 && e.memIndex.Size() >= e.cfg.SegmentMaxSize
	countHit := e.cfg.MaxBufferedDocs > 0 && e.memIndex.DocCount() >= e.cfg.MaxBufferedDocs
	if sizeHit || countHit {
		e.logger.Info("memory index reached flush threshold",
			"size", e.memIndex.Size(),
			"docs", e.memIndex.DocCount(),
		)
		if err := e.flushLocked(); err != nil {
			return fmt.Errorf("flushing memory index: %w", err)
		}
	}
	return nil
}

// DeleteDocuments marks every document containing term as deleted and
// returns how many were newly marked. Buffered documents are flushed first.
// Deletions become visible to readers on Commit.
func (e *Engine) DeleteDocuments(term index.Term) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, apperrors.ErrIndexClosed
	}
	if err := e.flushLocked(); err != nil {
		return 0, err
	}
	deleted := 0
	for _, seg := range e.segments {
		pl, err := seg.reader.Postings(term)
		if err != nil {
			return deleted, fmt.Errorf("reading postings of %s in %s: %w", term, seg.reader.Name(), err)
		}
		for _, p := range pl {
			if _, ok := seg.deleted[p.Doc]; ok {
				continue
			}
			seg.deleted[p.Doc] = struct{}{}
			deleted++
		}
	}
	if deleted > 0 {
		e.dirty = true
		if e.metrics != nil {
			e.metrics.DocsDeletedTotal.WithLabelValues(e.name).Add(float64(deleted))
		}
	}
	e.logger.Info("documents deleted", "term", term.String(), "count", deleted)
	return deleted, nil
}

// Flush writes the buffered documents as a new segment. The segment is not
// visible to readers until Commit.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return apperrors.ErrIndexClosed
	}
	return e.flushLocked()
}

func (e *Engine) flushLocked() error {
	if e.memIndex.DocCount() == 0 {
		return nil
	}
	name := fmt.Sprintf("seg_%d", e.manifest.NextSegment)
	info, err := e.writer.Write(name, segment.FromMemory(e.memIndex))
	if err != nil {
		e.observeFlush("error")
		return fmt.Errorf("writing segment: %w", err)
	}
	e.manifest.NextSegment++

	reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, segment.FileName(name)), e.cfg.PostingsCacheSize)
	if err != nil {
		e.observeFlush("error")
		return fmt.Errorf("opening new segment for reading: %w", err)
	}
	e.segments = append(e.segments, &liveSegment{reader: reader, deleted: make(map[int]struct{})})
	e.memIndex.Reset()
	e.observeFlush("ok")
	e.logger.Info("segment flushed",
		"segment", name,
		"terms", info.TermCount,
		"docs", info.DocCount,
		"bytes", info.SizeBytes,
		"active_segments", len(e.segments),
	)
	return nil
}

func (e *Engine) observeFlush(status string) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexFlushesTotal.WithLabelValues(e.name, status).Inc()
	if status == "ok" {
		e.metrics.SegmentCount.WithLabelValues(e.name).Set(float64(len(e.segments)))
	}
}

// Commit flushes, publishes a new manifest generation and then applies the
// merge policy.
func (e *Engine) Commit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return apperrors.ErrIndexClosed
	}
	return e.commitLocked()
}

func (e *Engine) commitLocked() error {
	if err := e.flushLocked(); err != nil {
		return err
	}
	if e.dirty || !IndexExists(e.cfg.DataDir) {
		if err := e.publishLocked(); err != nil {
			return err
		}
	}
	if err := e.applyMergePolicy(); err != nil {
		return fmt.Errorf("merging segments: %w", err)
	}
	return nil
}

func (e *Engine) publishLocked() error {
	m := e.manifest
	m.Generation++
	m.CommittedAt = time.Now().UTC()
	m.Analyzer = e.analyzer.Name()
	m.StopWords = nil
	if e.stop != nil {
		m.StopWords = e.stop.Sorted()
	}
	m.Segments = make([]SegmentMeta, 0, len(e.segments))
	for _, seg := range e.segments {
		m.Segments = append(m.Segments, seg.meta())
	}
	if err := writeManifest(e.cfg.DataDir, m); err != nil {
		return err
	}
	e.manifest = m
	e.dirty = false
	e.logger.Info("index committed",
		"generation", m.Generation,
		"segments", len(m.Segments),
		"docs", e.numDocsLocked(),
	)
	return nil
}

// ForceMerge merges segments until at most maxSegments remain. With
// maxSegments == 1 a lone segment holding deletions is rewritten without them.
func (e *Engine) ForceMerge(maxSegments int) error {
	if maxSegments < 1 {
		return apperrors.Invalid("maxSegments must be at least 1, got %d", maxSegments)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return apperrors.ErrIndexClosed
	}
	if err := e.commitLocked(); err != nil {
		return err
	}
	for len(e.segments) > maxSegments {
		width := e.mergeFactor()
		if excess := len(e.segments) - maxSegments + 1; width > excess {
			width = excess
		}
		if err := e.mergeLocked(e.smallestWindow(width), width); err != nil {
			return err
		}
	}
	if maxSegments == 1 && len(e.segments) == 1 && len(e.segments[0].deleted) > 0 {
		if err := e.mergeLocked(0, 1); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) mergeFactor() int {
	if e.cfg.MergeFactor < 2 {
		return 2
	}
	return e.cfg.MergeFactor
}

func (e *Engine) applyMergePolicy() error {
	limit := e.cfg.MaxSegmentsBeforeMerge
	if limit <= 0 {
		return nil
	}
	for len(e.segments) > limit {
		width := e.mergeFactor()
		if width > len(e.segments) {
			width = len(e.segments)
		}
		if err := e.mergeLocked(e.smallestWindow(width), width); err != nil {
			return err
		}
	}
	return nil
}

// smallestWindow returns the start of the width adjacent segments holding the
// fewest live documents.
func (e *Engine) smallestWindow(width int) int {
	best, bestDocs := 0, -1
	for start := 0; start+width <= len(e.segments); start++ {
		docs := 0
		for _, seg := range e.segments[start : start+width] {
			docs += seg.reader.DocCount() - len(seg.deleted)
		}
		if bestDocs < 0 || docs < bestDocs {
			best, bestDocs = start, docs
		}
	}
	return best
}

// NumDocs counts live documents, buffered ones included.
func (e *Engine) NumDocs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.numDocsLocked()
}

func (e *Engine) numDocsLocked() int {
	n := e.memIndex.DocCount()
	for _, seg := range e.segments {
		n += seg.reader.DocCount() - len(seg.deleted)
	}
	return n
}

// SegmentCount is the number of flushed segments.
func (e *Engine) SegmentCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.segments)
}

func (e *Engine) Name() string { return e.name }

func (e *Engine) Dir() string { return e.cfg.DataDir }

func (e *Engine) Analyzer() analysis.Analyzer { return e.analyzer }

// StartCommitLoop commits every FlushInterval until ctx is cancelled.
func (e *Engine) StartCommitLoop(ctx context.Context) {
	if e.cfg.FlushInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("commit loop stopping")
				return
			case <-ticker.C:
				if err := e.Commit(); err != nil && !errors.Is(err, apperrors.ErrIndexClosed) {
					e.logger.Error("periodic commit failed", "error", err)
				}
			}
		}
	}()
}

// Close commits pending changes, closes every segment and releases the
// write lock.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	commitErr := e.commitLocked()
	if commitErr != nil {
		e.logger.Error("final commit on close failed", "error", commitErr)
	}
	e.closeReaders()
	e.closed = true
	if err := e.lock.Unlock(); err != nil {
		return fmt.Errorf("releasing index lock: %w", err)
	}
	return commitErr
}

func (e *Engine) closeReaders() {
	for _, seg := range e.segments {
		if err := seg.reader.Close(); err != nil {
			e.logger.Error("closing segment reader", "segment", seg.reader.Name(), "error", err)
		}
	}
	e.segments = nil
}

func (e *Engine) loadExistingSegments() error {
	m, err := ReadManifest(e.cfg.DataDir)
	if err != nil {
		if IndexExists(e.cfg.DataDir) {
			return err
		}
		e.removeUnreferenced()
		return nil
	}
	e.manifest = m
	for _, meta := range m.Segments {
		path := filepath.Join(e.cfg.DataDir, segment.FileName(meta.Name))
		reader, err := segment.OpenReader(path, e.cfg.PostingsCacheSize)
		if err != nil {
			return fmt.Errorf("opening segment %s: %w", meta.Name, err)
		}
		seg := &liveSegment{reader: reader, deleted: make(map[int]struct{}, len(meta.Deleted))}
		for _, doc := range meta.Deleted {
			seg.deleted[doc] = struct{}{}
		}
		e.segments = append(e.segments, seg)
		e.logger.Info("loaded existing segment",
			"segment", meta.Name,
			"terms", reader.TermCount(),
			"docs", reader.DocCount(),
			"deleted", len(meta.Deleted),
		)
	}
	e.removeUnreferenced()
	e.logger.Info("segment recovery complete",
		"generation", m.Generation,
		"segments_loaded", len(e.segments),
	)
	return nil
}

// removeUnreferenced deletes segment and temp files left behind by a writer
// that stopped before committing.
func (e *Engine) removeUnreferenced() {
	live := make(map[string]struct{}, len(e.segments))
	for _, seg := range e.segments {
		live[segment.FileName(seg.reader.Name())] = struct{}{}
	}
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		_, referenced := live[name]
		orphan := strings.HasSuffix(name, segment.FileExt) && !referenced
		if orphan || strings.HasSuffix(name, ".tmp") {
			if err := os.Remove(filepath.Join(e.cfg.DataDir, name)); err == nil {
				e.logger.Warn("removed unreferenced file", "file", name)
			}
		}
	}
}
