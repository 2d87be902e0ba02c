// Package catalog manages the named indexes kept under one data directory.
// Each index owns an indexer.Engine in its own sub-directory and is built
// with its own analyzer.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

// Catalog maps index names to open engines.
type Catalog struct {
	engines map[string]*indexer.Engine
	mu      sync.RWMutex
	baseCfg config.IndexerConfig
	opts    []indexer.Option
	logger  *slog.Logger

	commitCtx context.Context
}

// New creates an empty catalog rooted at baseCfg.DataDir. opts are applied
// to every engine it opens.
func New(baseCfg config.IndexerConfig, opts ...indexer.Option) *Catalog {
	return &Catalog{
		engines: make(map[string]*indexer.Engine),
		baseCfg: baseCfg,
		opts:    opts,
		logger:  slog.Default().With("component", "catalog"),
	}
}

// Dir returns the directory of index name under base.
func Dir(base, name string) string {
	return filepath.Join(base, name)
}

// Open opens (creating if needed) index name with analyzer a. An existing
// index keeps the stop words its manifest records, and a nil a selects the
// recorded analyzer. extra options follow the catalog-wide ones. Opening a
// name twice returns the engine already open and ignores a and extra.
func (c *Catalog) Open(name string, a analysis.Analyzer, extra ...indexer.Option) (*indexer.Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.engines[name]; ok {
		return e, nil
	}
	cfg := c.baseCfg
	cfg.DataDir = Dir(c.baseCfg.DataDir, name)
	opts := append([]indexer.Option{indexer.WithName(name)}, c.opts...)
	if m, err := indexer.ReadManifest(cfg.DataDir); err == nil {
		opts = append(opts, indexer.WithStopWords(m.StopSet()))
		if a == nil {
			if a, err = m.BuildAnalyzer(); err != nil {
				return nil, fmt.Errorf("opening index %q: %w", name, err)
			}
		}
	}
	if a == nil {
		return nil, fmt.Errorf("%w: index %q does not exist and no analyzer was given", apperrors.ErrIndexNotFound, name)
	}
	opts = append(opts, extra...)
	e, err := indexer.NewEngine(cfg, a, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening index %q: %w", name, err)
	}
	c.engines[name] = e
	if c.commitCtx != nil {
		e.StartCommitLoop(c.commitCtx)
	}
	c.logger.Info("index engine initialized",
		"index", name,
		"analyzer", a.Name(),
		"data_dir", cfg.DataDir,
	)
	return e, nil
}

// Exists reports whether name has a committed index on disk.
func (c *Catalog) Exists(name string) bool {
	return indexer.IndexExists(Dir(c.baseCfg.DataDir, name))
}

// Get returns the open engine of name.
func (c *Catalog) Get(name string) (*indexer.Engine, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrIndexNotFound, name)
	}
	return e, nil
}

// Names returns the open index names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.engines))
	for name := range c.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartCommitLoops starts the periodic commit of every open engine, and of
// every engine opened later, until ctx is cancelled.
func (c *Catalog) StartCommitLoops(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commitCtx = ctx
	for _, e := range c.engines {
		e.StartCommitLoop(ctx)
	}
}

// CommitAll commits every open engine.
func (c *Catalog) CommitAll() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var firstErr error
	for name, engine := range c.engines {
		if err := engine.Commit(); err != nil {
			c.logger.Error("commit failed", "index", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Close commits and closes every open engine.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for name, engine := range c.engines {
		if err := engine.Close(); err != nil {
			c.logger.Error("close failed", "index", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.engines = make(map[string]*indexer.Engine)
	return firstErr
}

// Discover lists the committed indexes found under base.
func Discover(base string) ([]string, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() && indexer.IndexExists(filepath.Join(base, entry.Name())) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
