package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

const (
	ManifestFile = "segments.json"
	LockFile     = "write.lock"
)

// SegmentMeta is one committed segment and the ordinals deleted from it.
type SegmentMeta struct {
	Name     string `json:"name"`
	DocCount int    `json:"docCount"`
	Deleted  []int  `json:"deleted,omitempty"`
}

// LiveDocs is DocCount minus deletions.
func (s SegmentMeta) LiveDocs() int {
	return s.DocCount - len(s.Deleted)
}

// Manifest is the commit point of an index directory. A segment file that
// the manifest does not name is not part of the index.
type Manifest struct {
	Generation  int64         `json:"generation"`
	NextSegment int64         `json:"nextSegment"`
	Analyzer    string        `json:"analyzer"`
	StopWords   []string      `json:"stopWords,omitempty"`
	Segments    []SegmentMeta `json:"segments"`
	CommittedAt time.Time     `json:"committedAt"`
}

// StopSet returns the recorded custom stop words, nil when the analyzer
// used its defaults.
func (m Manifest) StopSet() analysis.StopWords {
	if m.StopWords == nil {
		return nil
	}
	return analysis.NewStopWords(m.StopWords...)
}

// BuildAnalyzer rebuilds the analyzer the index was written with.
func (m Manifest) BuildAnalyzer() (analysis.Analyzer, error) {
	return analysis.ForName(m.Analyzer, m.StopSet())
}

// ReadManifest loads the manifest of dir. ErrIndexNotFound is returned when
// the directory holds no committed index.
func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Manifest{}, fmt.Errorf("%w: %s", apperrors.ErrIndexNotFound, dir)
		}
		return Manifest{}, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: parsing manifest %s: %v", apperrors.ErrCorruptSegment, dir, err)
	}
	return m, nil
}

func writeManifest(dir string, m Manifest) error {
	for i := range m.Segments {
		sort.Ints(m.Segments[i].Deleted)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestFile)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating manifest: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming manifest: %w", err)
	}
	return nil
}

// IndexExists reports whether dir holds a committed index.
func IndexExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ManifestFile))
	return err == nil
}
