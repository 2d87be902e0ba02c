package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "indexes", cfg.Indexer.DataDir)
	assert.Equal(t, "OR", cfg.Search.DefaultOperator)
	assert.Equal(t, 10000, cfg.Search.MaxHits)
	assert.Equal(t, "precision-recall.csv", cfg.Evaluation.CSVPath)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	body := []byte(`
indexer:
  dataDir: /tmp/idx
  mergeFactor: 4
search:
  similarity: bm25
  timeout: 2s
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))
	t.Setenv("CS_SEARCH_DEFAULT_OPERATOR", "AND")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/idx", cfg.Indexer.DataDir)
	assert.Equal(t, 4, cfg.Indexer.MergeFactor)
	assert.Equal(t, "bm25", cfg.Search.Similarity)
	assert.Equal(t, 2*time.Second, cfg.Search.Timeout)
	assert.Equal(t, "AND", cfg.Search.DefaultOperator)
	assert.Equal(t, 10, cfg.Search.DefaultLimit, "unset keys keep defaults")
}

func TestLoadRejectsBadOperator(t *testing.T) {
	t.Setenv("CS_SEARCH_DEFAULT_OPERATOR", "XOR")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Indexer, cfg.Indexer)
}

func TestShippedDevelopmentConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, Default().Indexer, cfg.Indexer)
	assert.Equal(t, []string{"content"}, cfg.Search.DefaultFields)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestDefaultFieldsOverride(t *testing.T) {
	t.Setenv("CS_SEARCH_DEFAULT_FIELDS", "title,summary")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "summary"}, cfg.Search.DefaultFields)
}
