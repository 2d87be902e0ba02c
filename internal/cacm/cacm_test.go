package cacm

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

const sample = "1\tPerlis, A. J.;Samelson,K.\tPreliminary Report-International Algebraic Language\n" +
	"\n" +
	"2\t\tExtraction of Roots by Repeated Subtractions for Digital Computers\tA method is given.\n" +
	"3\t;Knuth, D. E.;\tHash Coding\r\n"

func TestParseCorpus(t *testing.T) {
	recs, err := ParseCorpus(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, Record{
		ID:      1,
		Authors: []string{"Perlis, A. J.", "Samelson,K."},
		Title:   "Preliminary Report-International Algebraic Language",
	}, recs[0])
	assert.Nil(t, recs[1].Authors)
	assert.Equal(t, "A method is given.", recs[1].Summary)
	assert.Equal(t, []string{"Knuth, D. E."}, recs[2].Authors)
	assert.Equal(t, "Hash Coding", recs[2].Title)
}

func TestParseCorpusReportsLine(t *testing.T) {
	_, err := ParseCorpus(strings.NewReader("1\ta\tb\nnot-a-record\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMalformedRecord))
	assert.Contains(t, err.Error(), "line 2")

	_, err = ParseCorpus(strings.NewReader("x\ta\tb\n"))
	assert.ErrorIs(t, err, apperrors.ErrMalformedRecord)
}

func TestLabDocument(t *testing.T) {
	d := LabDocument(Record{ID: 2, Title: "Roots", Summary: "A method"})
	stored := d.Stored()
	assert.Equal(t, "2", stored.Get(FieldID))
	assert.Equal(t, []string{"Roots", "A method"}, stored[FieldContent])

	d = LabDocument(Record{ID: 3, Title: "Hash Coding"})
	assert.Len(t, d.Stored()[FieldContent], 1)
}

func TestFieldedDocument(t *testing.T) {
	d := FieldedDocument(Record{ID: 3, Authors: []string{"Knuth, D. E.", "Wirth, N."}, Title: "Hash Coding"})
	stored := d.Stored()
	assert.Equal(t, []string{"Knuth, D. E.", "Wirth, N."}, stored[FieldAuthor])
	assert.Equal(t, "Hash Coding", stored.Get(FieldTitle))
	assert.NotContains(t, stored, FieldSummary)
	for _, f := range d.Fields {
		if f.Name == FieldAuthor {
			assert.False(t, f.Tokenized)
		}
	}
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, LayoutLab, l)
	l, err = ParseLayout("Fielded")
	require.NoError(t, err)
	assert.Equal(t, LayoutFielded, l)
	_, err = ParseLayout("columnar")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
