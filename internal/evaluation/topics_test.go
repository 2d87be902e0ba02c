package evaluation

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

func TestParseQueries(t *testing.T) {
	in := "1\tWhat articles exist which deal with TSS?\r\n\n2\t  Interested in articles on robotics  \n"
	qs, err := ParseQueries(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []Query{
		{ID: 1, Text: "What articles exist which deal with TSS?"},
		{ID: 2, Text: "Interested in articles on robotics"},
	}, qs)

	_, err = ParseQueries(strings.NewReader("1 no tab\n"))
	assert.ErrorIs(t, err, apperrors.ErrMalformedRecord)
	_, err = ParseQueries(strings.NewReader("x\ttext\n"))
	assert.ErrorIs(t, err, apperrors.ErrMalformedRecord)
}

func TestParseQrels(t *testing.T) {
	j, err := ParseQrels(strings.NewReader("3;1410,1572,1410\n1;1938,2380\n"))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, j.Queries())
	assert.Equal(t, []int{1410, 1572}, j.Relevant(3))
	assert.True(t, j.IsRelevant(1, 2380))
	assert.False(t, j.IsRelevant(2, 2380))
	assert.Zero(t, j.Count(2))

	_, err = ParseQrels(strings.NewReader("1;12,abc\n"))
	assert.ErrorIs(t, err, apperrors.ErrMalformedRecord)
}

func TestFormatDecimal(t *testing.T) {
	assert.Equal(t, ".5000", FormatDecimal(.5))
	assert.Equal(t, "1.0000", FormatDecimal(1))
	assert.Equal(t, ".0000", FormatDecimal(0))
	assert.Equal(t, ".3333", FormatDecimal(1.0/3))
	assert.Equal(t, ".1235", FormatDecimal(.12345))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	rows := []CurveRow{
		{Name: "standard", Curve: Curve{1, .5}},
		{Name: "custom-english"},
	}
	require.NoError(t, WriteCSV(&buf, rows))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "standard,1.0000,.5000,.0000,.0000,.0000,.0000,.0000,.0000,.0000,.0000,.0000,", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "custom-english,.0000,"))
	assert.Equal(t, 12, strings.Count(lines[1], ","))
}
