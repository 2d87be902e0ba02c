package analysis

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

func TestStandardTokenizerKeepsWordInternals(t *testing.T) {
	tokens := StandardTokenizer{}.Tokenize("O'Neil's value is 3.14, not 1,000! (ALGOL-60)")
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	assert.Equal(t, []string{"O'Neil's", "value", "is", "3.14", "not", "1,000", "ALGOL", "60"}, terms)
	assert.Equal(t, 0, tokens[0].Start)
	assert.Equal(t, len("O'Neil's"), tokens[0].End)
	for i, tok := range tokens {
		assert.Equal(t, i, tok.Position)
	}
}

func TestStandardAnalyzerKeepsStopGaps(t *testing.T) {
	tokens := Standard(nil).Analyze("The Design of an Operating System")
	require.Len(t, tokens, 3)
	assert.Equal(t, Token{Term: "design", Position: 1, Start: 4, End: 10}, tokens[0])
	assert.Equal(t, "operating", tokens[1].Term)
	assert.Equal(t, 4, tokens[1].Position)
	assert.Equal(t, "system", tokens[2].Term)
	assert.Equal(t, 5, tokens[2].Position)
}

func TestWhitespaceAnalyzerDoesNotNormalise(t *testing.T) {
	assert.Equal(t, []string{"The", "Design,", "of", "ALGOL."}, Terms(Whitespace(), "The  Design,\tof\nALGOL."))
}

func TestSimpleAndStopAnalyzers(t *testing.T) {
	assert.Equal(t, []string{"the", "algol", "report"}, Terms(Simple(), "The ALGOL-60 report"))
	assert.Equal(t, []string{"algol", "report"}, Terms(Stop(nil), "The ALGOL-60 report"))
}

func TestEnglishAnalyzerStems(t *testing.T) {
	got := Terms(English(nil), "The computer's algorithms are running on computing systems")
	assert.Equal(t, []string{"comput", "algorithm", "run", "comput", "system"}, got)
}

func TestCustomStopWordsReplaceDefaults(t *testing.T) {
	stop, err := LoadStopWords(strings.NewReader("  Computer\n\nsystems\n"))
	require.NoError(t, err)
	assert.True(t, stop.Contains("computer"))
	assert.Equal(t, []string{"computer", "systems"}, stop.Sorted())

	got := Terms(English(stop), "the computer systems")
	assert.Equal(t, []string{"the"}, got, "default stop words no longer apply")
}

func TestShingleAnalyzerAddsBigrams(t *testing.T) {
	tokens := Shingle(nil).Analyze("parallel sorting networks")
	got := make([]string, len(tokens))
	for i, tok := range tokens {
		got[i] = tok.Term
	}
	assert.Equal(t, []string{
		"parallel", "parallel sorting",
		"sorting", "sorting networks",
		"networks",
	}, got)
	assert.Equal(t, tokens[0].Position, tokens[1].Position)
}

func TestEmptyAndStopOnlyInput(t *testing.T) {
	assert.Empty(t, Standard(nil).Analyze(""))
	assert.Empty(t, Standard(nil).Analyze("the of and"))
	assert.Empty(t, English(nil).Analyze("   "))
}

func TestForName(t *testing.T) {
	cases := map[string]string{
		"StandardAnalyzer":       "standard",
		"WhitespaceAnalyzer":     "whitespace",
		"english":                "english",
		"ENGLISHANALYZER":        "english",
		"ShingleAnalyzerWrapper": "shingle",
		"StopAnalyzer":           "stop",
		"SimpleAnalyzer":         "simple",
	}
	for in, want := range cases {
		a, err := ForName(in, nil)
		require.NoError(t, err, in)
		assert.Equal(t, want, a.Name(), in)
	}

	_, err := ForName("KlingonAnalyzer", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnknownAnalyzer))
}

func TestKeywordAnalyzer(t *testing.T) {
	tokens := Keyword().Analyze("Knuth, D. E.")
	require.Len(t, tokens, 1)
	assert.Equal(t, "Knuth, D. E.", tokens[0].Term)
}
