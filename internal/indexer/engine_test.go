package indexer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

func testConfig(dir string) config.IndexerConfig {
	cfg := config.Default().Indexer
	cfg.DataDir = dir
	cfg.FlushInterval = 0
	cfg.MaxSegmentsBeforeMerge = 0
	return cfg
}

func doc(id, text string) index.Document {
	var d index.Document
	d.Add(index.StringField("id", id))
	d.Add(index.TextField("content", text))
	return d
}

func openEngine(t *testing.T, cfg config.IndexerConfig) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, analysis.Standard(nil))
	require.NoError(t, err)
	return e
}

func TestCommitMakesDocumentsVisible(t *testing.T) {
	dir := t.TempDir()
	e := openEngine(t, testConfig(dir))
	defer e.Close()

	assert.False(t, IndexExists(dir))
	require.NoError(t, e.AddDocument(doc("1", "matrix inversion")))
	require.NoError(t, e.AddDocument(doc("2", "matrix multiplication")))
	assert.Equal(t, 2, e.NumDocs())

	require.NoError(t, e.Flush())
	assert.False(t, IndexExists(dir), "flush alone does not publish")

	require.NoError(t, e.Commit())
	assert.True(t, IndexExists(dir))

	r, err := OpenReader(dir, 8)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 2, r.NumDocs())
	assert.Equal(t, 2, r.DocFreq(index.NewTerm("content", "matrix")))
	stored, err := r.Document(1)
	require.NoError(t, err)
	assert.Equal(t, "2", stored.Get("id"))
}

func TestSecondWriterIsLockedOut(t *testing.T) {
	dir := t.TempDir()
	e := openEngine(t, testConfig(dir))

	_, err := NewEngine(testConfig(dir), analysis.Standard(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrIndexLocked))

	require.NoError(t, e.Close())
	again := openEngine(t, testConfig(dir))
	require.NoError(t, again.Close())
}

func TestClosedEngineRejectsWrites(t *testing.T) {
	e := openEngine(t, testConfig(t.TempDir()))
	require.NoError(t, e.Close())
	assert.ErrorIs(t, e.AddDocument(doc("1", "x")), apperrors.ErrIndexClosed)
	assert.ErrorIs(t, e.Commit(), apperrors.ErrIndexClosed)
	assert.NoError(t, e.Close())
}

func TestMaxBufferedDocsTriggersFlush(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.MaxBufferedDocs = 2
	e := openEngine(t, cfg)
	defer e.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, e.AddDocument(doc(fmt.Sprint(i), "sorting")))
	}
	assert.Equal(t, 2, e.SegmentCount())
	require.NoError(t, e.Commit())
	assert.Equal(t, 3, e.SegmentCount())
}

func TestDeleteThenMergeReclaimsDocuments(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.MaxBufferedDocs = 2
	e := openEngine(t, cfg)

	texts := []string{"sorting networks", "hash tables", "sorting by merging", "parsing", "hash coding"}
	for i, text := range texts {
		require.NoError(t, e.AddDocument(doc(fmt.Sprint(i+1), text)))
	}
	n, err := e.DeleteDocuments(index.NewTerm("content", "hash"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = e.DeleteDocuments(index.NewTerm("content", "hash"))
	require.NoError(t, err)
	assert.Zero(t, n, "already deleted")
	require.NoError(t, e.Commit())

	r, err := OpenReader(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, r.NumDocs())
	assert.Equal(t, 5, r.MaxDoc())
	assert.Equal(t, 2, r.DocFreq(index.NewTerm("content", "hash")), "deleted docs count until merged")
	_, err = r.Document(1)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
	require.NoError(t, r.Close())

	require.NoError(t, e.ForceMerge(1))
	assert.Equal(t, 1, e.SegmentCount())
	require.NoError(t, e.Close())

	r, err = OpenReader(dir, 0)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 3, r.NumDocs())
	assert.Equal(t, 3, r.MaxDoc())
	assert.Zero(t, r.DocFreq(index.NewTerm("content", "hash")))
	require.Len(t, r.Leaves(), 1)

	var ids []string
	for d := 0; d < r.MaxDoc(); d++ {
		stored, err := r.Document(d)
		require.NoError(t, err)
		ids = append(ids, stored.Get("id"))
	}
	assert.Equal(t, []string{"1", "3", "4"}, ids)

	pl, err := r.Leaves()[0].Reader.Postings(index.NewTerm("content", "sorting"))
	require.NoError(t, err)
	require.Len(t, pl, 2)
	assert.Equal(t, 0, pl[0].Doc)
	assert.Equal(t, 1, pl[1].Doc)

	files, err := filepath.Glob(filepath.Join(dir, "*.spdx"))
	require.NoError(t, err)
	assert.Len(t, files, 1, "merged-away segments are removed")
}

func TestMergePolicyBoundsSegmentCount(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.MaxBufferedDocs = 1
	cfg.MaxSegmentsBeforeMerge = 3
	cfg.MergeFactor = 2
	e := openEngine(t, cfg)
	defer e.Close()

	for i := 0; i < 6; i++ {
		require.NoError(t, e.AddDocument(doc(fmt.Sprint(i), "compiler")))
	}
	require.NoError(t, e.Commit())
	assert.LessOrEqual(t, e.SegmentCount(), 3)
	assert.Equal(t, 6, e.NumDocs())
}

func TestForceMergeRejectsZero(t *testing.T) {
	e := openEngine(t, testConfig(t.TempDir()))
	defer e.Close()
	assert.ErrorIs(t, e.ForceMerge(0), apperrors.ErrInvalidInput)
}

func TestReopenRecoversCommittedState(t *testing.T) {
	dir := t.TempDir()
	e := openEngine(t, testConfig(dir))
	require.NoError(t, e.AddDocument(doc("1", "recursive functions")))
	require.NoError(t, e.Close())

	// an uncommitted leftover from a crashed writer
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg_99.spdx"), []byte("junk"), 0644))

	e = openEngine(t, testConfig(dir))
	assert.Equal(t, 1, e.NumDocs())
	require.NoError(t, e.AddDocument(doc("2", "recursive descent")))
	require.NoError(t, e.Close())

	_, err := os.Stat(filepath.Join(dir, "seg_99.spdx"))
	assert.True(t, os.IsNotExist(err))

	r, err := OpenReader(dir, 0)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 2, r.NumDocs())
	assert.EqualValues(t, 2, r.Generation())
}

func TestOpenReaderWithoutIndex(t *testing.T) {
	_, err := OpenReader(t.TempDir(), 0)
	assert.ErrorIs(t, err, apperrors.ErrIndexNotFound)
}

func TestHighFreqTerms(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.MaxBufferedDocs = 2
	e := openEngine(t, cfg)
	for i, text := range []string{"algol compiler", "algol report", "fortran compiler", "algol"} {
		require.NoError(t, e.AddDocument(doc(fmt.Sprint(i), text)))
	}
	require.NoError(t, e.Close())

	r, err := OpenReader(dir, 0)
	require.NoError(t, err)
	defer r.Close()
	top := r.HighFreqTerms("content", 2)
	require.Len(t, top, 2)
	assert.Equal(t, TermStat{Text: "algol", DocFreq: 3, TotalTermFreq: 3}, top[0])
	assert.Equal(t, "compiler", top[1].Text)
	assert.Nil(t, r.HighFreqTerms("content", 0))
	assert.Equal(t, []string{"content", "id"}, r.Fields())
}

func TestReaderRebuildsAnalyzer(t *testing.T) {
	dir := t.TempDir()
	stop := analysis.NewStopWords("matrix")
	e, err := NewEngine(testConfig(dir), analysis.English(stop), WithStopWords(stop), WithName("english-custom"))
	require.NoError(t, err)
	require.NoError(t, e.AddDocument(doc("1", "matrix computations")))
	require.NoError(t, e.Close())

	r, err := OpenReader(dir, 0)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "english", r.AnalyzerName())
	a, err := r.Analyzer()
	require.NoError(t, err)
	assert.Equal(t, []string{"comput"}, analysis.Terms(a, "matrix computations"))
}

func TestFailedMergeCommitKeepsSegments(t *testing.T) {
	dir := t.TempDir()
	e := openEngine(t, testConfig(dir))
	defer e.Close()
	require.NoError(t, e.AddDocument(doc("1", "matrix inversion")))
	require.NoError(t, e.Commit())
	require.NoError(t, e.AddDocument(doc("2", "matrix multiplication")))
	require.NoError(t, e.Commit())
	require.Equal(t, 2, e.SegmentCount())

	// the manifest temp path is taken, so publishing the merge fails
	blocker := filepath.Join(dir, ManifestFile+".tmp")
	require.NoError(t, os.Mkdir(blocker, 0o755))
	require.Error(t, e.ForceMerge(1))

	assert.Equal(t, 2, e.SegmentCount())
	assert.Equal(t, 2, e.NumDocs())
	m, err := ReadManifest(dir)
	require.NoError(t, err)
	require.Len(t, m.Segments, 2)
	files, err := filepath.Glob(filepath.Join(dir, "*.spdx"))
	require.NoError(t, err)
	assert.Len(t, files, 2, "merged output is removed")
	for _, seg := range m.Segments {
		assert.FileExists(t, filepath.Join(dir, seg.Name+".spdx"))
	}

	require.NoError(t, os.Remove(blocker))
	require.NoError(t, e.ForceMerge(1))
	assert.Equal(t, 1, e.SegmentCount())
	assert.Equal(t, 2, e.NumDocs())
}
