package segment

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
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

func buildMemory(t *testing.T) *index.MemoryIndex {
	t.Helper()
	m := index.NewMemoryIndex()
	a := analysis.Standard(nil)
	docs := []struct{ id, title, summary string }{
		{"1", "Preliminary Report International Algebraic Language", ""},
		{"2", "Extraction of Roots by Repeated Subtractions", "roots of polynomials by repeated subtraction"},
		{"3", "Techniques Department on Matrix Program Schemes", ""},
	}
	for _, d := range docs {
		var doc index.Document
		doc.Add(index.StringField("id", d.id))
		doc.Add(index.TextField("content", d.title))
		if d.summary != "" {
			doc.Add(index.TextField("content", d.summary))
		}
		m.AddDocument(doc, a)
	}
	return m
}

func writeSegment(t *testing.T, dir string) string {
	t.Helper()
	info, err := NewWriter(dir, 0.01).Write("seg_1", FromMemory(buildMemory(t)))
	require.NoError(t, err)
	assert.Equal(t, 3, info.DocCount)
	path := filepath.Join(dir, FileName(info.Name))
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, st.Size(), info.SizeBytes)
	return path
}

func TestSegmentRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeSegment(t, dir)

	r, err := OpenReader(path, 16)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, "seg_1", r.Name())
	assert.Equal(t, 3, r.DocCount())

	term := index.NewTerm("content", "repeated")
	pl, err := r.Postings(term)
	require.NoError(t, err)
	require.Len(t, pl, 1)
	assert.Equal(t, 1, pl[0].Doc)
	assert.Equal(t, 2, pl[0].Frequency)
	assert.Equal(t, []int{4, 10}, pl[0].Positions)
	assert.Equal(t, 1, r.DocFreq(term))
	assert.EqualValues(t, 2, r.TotalTermFreq(term))

	cached, err := r.Postings(term)
	require.NoError(t, err)
	assert.Equal(t, pl, cached)

	missing, err := r.Postings(index.NewTerm("content", "quaternion"))
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.Zero(t, r.DocFreq(index.NewTerm("title", "roots")))

	doc, err := r.Document(1)
	require.NoError(t, err)
	assert.Equal(t, "2", doc.Get("id"))
	assert.Len(t, doc["content"], 2)
	_, err = r.Document(3)
	assert.True(t, errors.Is(err, apperrors.ErrDocumentNotFound))

	assert.Equal(t, 5, r.FieldLength("content", 0))
	assert.Equal(t, 1, r.FieldLength("id", 2))
	assert.Zero(t, r.FieldLength("nope", 0))
	assert.EqualValues(t, 5+8+5, r.SumFieldLength("content"))

	assert.Equal(t, []string{"content", "id"}, r.Fields())
	ids := r.Terms("id")
	require.Len(t, ids, 3)
	assert.Equal(t, "1", ids[0].Term)
	assert.Equal(t, "3", ids[2].Term)
}

func TestNoTmpFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir)
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestEmptySegmentRejected(t *testing.T) {
	_, err := NewWriter(t.TempDir(), 0.01).Write("seg_0", Data{})
	assert.Error(t, err)
}

func TestCorruptSegmentsRejected(t *testing.T) {
	cases := map[string]func([]byte) []byte{
		"bad magic": func(b []byte) []byte { b[0] ^= 0xFF; return b },
		"bad version": func(b []byte) []byte {
			b[4] = 9
			return b
		},
		"dictionary flipped": func(b []byte) []byte {
			h := unmarshalHeader(b[:HeaderSize])
			b[h.DictOffset()+1] ^= 0x01
			return b
		},
		"truncated": func(b []byte) []byte { return b[:len(b)-5] },
		"tiny":      func(b []byte) []byte { return b[:10] },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeSegment(t, dir)
			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, mutate(raw), 0644))

			_, err = OpenReader(path, 0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrCorruptSegment), err)
		})
	}
}

func TestPostingsCodecRoundTrip(t *testing.T) {
	pl := index.PostingList{
		{Doc: 0, Frequency: 1, Positions: []int{4}},
		{Doc: 7, Frequency: 3, Positions: []int{0, 2, 90}},
		{Doc: 1000, Frequency: 1, Positions: []int{0}},
	}
	got, err := decodePostings(encodePostings(pl))
	require.NoError(t, err)
	assert.Equal(t, pl, got)

	_, err = decodePostings([]byte("not snappy"))
	assert.Error(t, err)
}

func TestBloomFilterNoFalseNegatives(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)
	for i := 0; i < 1000; i++ {
		bf.Add([]byte(fmt.Sprintf("content\x00term-%d", i)))
	}
	for i := 0; i < 1000; i++ {
		assert.True(t, bf.MayContain([]byte(fmt.Sprintf("content\x00term-%d", i))))
	}
	falsePositives := 0
	for i := 0; i < 10000; i++ {
		if bf.MayContain([]byte(fmt.Sprintf("other-%d", i))) {
			falsePositives++
		}
	}
	assert.Less(t, falsePositives, 500)

	data, err := bf.MarshalBinary()
	require.NoError(t, err)
	var restored BloomFilter
	require.NoError(t, restored.UnmarshalBinary(data))
	assert.Equal(t, bf.Size(), restored.Size())
	assert.Equal(t, bf.HashCount(), restored.HashCount())
	assert.True(t, restored.MayContain([]byte("content\x00term-42")))

	assert.Error(t, restored.UnmarshalBinary(data[:8]))
}
