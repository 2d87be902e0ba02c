package analysis

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

const maxTokenLength = 255

// Analyzer turns text into tokens.
type Analyzer interface {
	Name() string
	Analyze(text string) []Token
}

// Chain is an Analyzer built from a tokenizer and an ordered filter list.
type Chain struct {
	name      string
	tokenizer Tokenizer
	filters   []Filter
}

// NewChain builds a named analyzer chain.
func NewChain(name string, tokenizer Tokenizer, filters ...Filter) *Chain {
	return &Chain{name: name, tokenizer: tokenizer, filters: filters}
}

func (c *Chain) Name() string { return c.name }

func (c *Chain) Analyze(text string) []Token {
	tokens := c.tokenizer.Tokenize(text)
	for _, f := range c.filters {
		if len(tokens) == 0 {
			break
		}
		tokens = f.Filter(tokens)
	}
	return tokens
}

// Terms is a convenience returning only the term strings.
func Terms(a Analyzer, text string) []string {
	tokens := a.Analyze(text)
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Term
	}
	return out
}

func stopsOrDefault(stop StopWords) StopWords {
	if stop == nil {
		return EnglishStopWords
	}
	return stop
}

// Standard splits on word boundaries, lower-cases and removes stop words.
func Standard(stop StopWords) Analyzer {
	return NewChain("standard", StandardTokenizer{},
		LengthFilter{Min: 1, Max: maxTokenLength},
		LowercaseFilter{},
		StopFilter{Words: stopsOrDefault(stop)},
	)
}

// Whitespace splits on white space only.
func Whitespace() Analyzer {
	return NewChain("whitespace", WhitespaceTokenizer{})
}

// Simple splits on non-letters and lower-cases.
func Simple() Analyzer {
	return NewChain("simple", LetterTokenizer{}, LowercaseFilter{})
}

// Stop is Simple plus stop word removal.
func Stop(stop StopWords) Analyzer {
	return NewChain("stop", LetterTokenizer{}, LowercaseFilter{}, StopFilter{Words: stopsOrDefault(stop)})
}

// English is Standard plus possessive stripping and Snowball stemming.
func English(stop StopWords) Analyzer {
	return NewChain("english", StandardTokenizer{},
		LengthFilter{Min: 1, Max: maxTokenLength},
		PossessiveFilter{},
		LowercaseFilter{},
		StopFilter{Words: stopsOrDefault(stop)},
		StemFilter{},
	)
}

// Shingle wraps Standard and adds word bigrams.
func Shingle(stop StopWords) Analyzer {
	return NewChain("shingle", StandardTokenizer{},
		LengthFilter{Min: 1, Max: maxTokenLength},
		LowercaseFilter{},
		StopFilter{Words: stopsOrDefault(stop)},
		ShingleFilter{MinSize: 2, MaxSize: 2, OutputUnigrams: true},
	)
}

// Keyword emits the whole value as a single term.
func Keyword() Analyzer {
	return NewChain("keyword", KeywordTokenizer{})
}

var constructors = map[string]func(StopWords) Analyzer{
	"standard":   Standard,
	"whitespace": func(StopWords) Analyzer { return Whitespace() },
	"simple":     func(StopWords) Analyzer { return Simple() },
	"stop":       Stop,
	"english":    English,
	"shingle":    Shingle,
	"keyword":    func(StopWords) Analyzer { return Keyword() },
}

// ForName resolves an analyzer selector such as "StandardAnalyzer",
// "english" or "ShingleAnalyzerWrapper". Matching ignores case and an
// "Analyzer"/"AnalyzerWrapper" suffix. stop replaces the default stop set
// where the analyzer uses one; nil keeps the default.
func ForName(name string, stop StopWords) (Analyzer, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimSuffix(key, "wrapper")
	key = strings.TrimSuffix(key, "analyzer")
	ctor, ok := constructors[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", apperrors.ErrUnknownAnalyzer, name, strings.Join(Names(), ", "))
	}
	return ctor(stop), nil
}

// Names lists the selectors accepted by ForName.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
