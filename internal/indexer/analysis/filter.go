package analysis

import (
	"strings"

	snowballeng "github.com/kljensen/snowball/english"
)

// Filter transforms a token stream. Filters may drop or rewrite tokens and
// may insert tokens that share a position with an existing one.
type Filter interface {
	Filter(tokens []Token) []Token
}

// LowercaseFilter lower-cases every term.
type LowercaseFilter struct{}

func (LowercaseFilter) Filter(tokens []Token) []Token {
	for i := range tokens {
		tokens[i].Term = strings.ToLower(tokens[i].Term)
	}
	return tokens
}

// StopFilter drops terms contained in Words. Surviving tokens keep their
// original positions.
type StopFilter struct {
	Words StopWords
}

func (f StopFilter) Filter(tokens []Token) []Token {
	out := tokens[:0]
	for _, tok := range tokens {
		if f.Words.Contains(tok.Term) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// PossessiveFilter strips a trailing "'s" (straight or curly apostrophe).
type PossessiveFilter struct{}

func (PossessiveFilter) Filter(tokens []Token) []Token {
	for i := range tokens {
		term := tokens[i].Term
		for _, suffix := range []string{"'s", "'S", "’s", "’S"} {
			if strings.HasSuffix(term, suffix) {
				tokens[i].Term = term[:len(term)-len(suffix)]
				break
			}
		}
	}
	return tokens
}

// StemFilter applies the Snowball English stemmer.
type StemFilter struct{}

func (StemFilter) Filter(tokens []Token) []Token {
	out := tokens[:0]
	for _, tok := range tokens {
		tok.Term = snowballeng.Stem(tok.Term, true)
		if tok.Term == "" {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// ShingleFilter adds word n-grams of MinSize..MaxSize tokens, joined by a
// single space and placed at the position of their first token. Unigrams are
// kept when OutputUnigrams is set.
type ShingleFilter struct {
	MinSize        int
	MaxSize        int
	OutputUnigrams bool
}

func (f ShingleFilter) Filter(tokens []Token) []Token {
	minSize, maxSize := f.MinSize, f.MaxSize
	if minSize < 2 {
		minSize = 2
	}
	if maxSize < minSize {
		maxSize = minSize
	}
	out := make([]Token, 0, len(tokens)*(maxSize-minSize+2))
	for i, tok := range tokens {
		if f.OutputUnigrams {
			out = append(out, tok)
		}
		for n := minSize; n <= maxSize && i+n <= len(tokens); n++ {
			parts := make([]string, n)
			for j := 0; j < n; j++ {
				parts[j] = tokens[i+j].Term
			}
			out = append(out, Token{
				Term:     strings.Join(parts, " "),
				Position: tok.Position,
				Start:    tok.Start,
				End:      tokens[i+n-1].End,
			})
		}
	}
	return out
}

// LengthFilter drops terms shorter than Min or longer than Max runes
// (Max <= 0 means unbounded).
type LengthFilter struct {
	Min int
	Max int
}

func (f LengthFilter) Filter(tokens []Token) []Token {
	out := tokens[:0]
	for _, tok := range tokens {
		n := len([]rune(tok.Term))
		if n < f.Min || (f.Max > 0 && n > f.Max) {
			continue
		}
		out = append(out, tok)
	}
	return out
}
