// Package analysis turns raw text into streams of normalised terms. A chain
// is one Tokenizer followed by any number of Filters; the named analyzers
// (StandardAnalyzer, EnglishAnalyzer, ...) are fixed chains.
package analysis

import (
	"unicode"
	"unicode/utf8"
)

// Token is a single term with its position in the token stream and its byte
// offsets in the original text. Positions are not renumbered when filters
// drop tokens, so a removed stop word leaves a gap.
type Token struct {
	Term     string
	Position int
	Start    int
	End      int
}

// Tokenizer splits text into an initial token stream.
type Tokenizer interface {
	Tokenize(text string) []Token
}

// TokenizerFunc adapts a plain function to Tokenizer.
type TokenizerFunc func(text string) []Token

func (f TokenizerFunc) Tokenize(text string) []Token { return f(text) }

// StandardTokenizer splits on word boundaries: runs of letters, digits and
// underscores. An apostrophe between two letters stays inside the word
// ("o'neil"), and a '.' or ',' between two digits stays inside a number
// ("3.14", "1,000").
type StandardTokenizer struct{}

func (StandardTokenizer) Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/6)
	pos := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isWordRune(r) {
			i += size
			continue
		}
		start := i
		prev := r
		i += size
		for i < len(text) {
			r, size = utf8.DecodeRuneInString(text[i:])
			if isWordRune(r) {
				prev = r
				i += size
				continue
			}
			next, nextSize := utf8.DecodeRuneInString(text[i+size:])
			if nextSize == 0 {
				break
			}
			if isApostrophe(r) && unicode.IsLetter(prev) && unicode.IsLetter(next) {
				prev = next
				i += size + nextSize
				continue
			}
			if (r == '.' || r == ',') && unicode.IsDigit(prev) && unicode.IsDigit(next) {
				prev = next
				i += size + nextSize
				continue
			}
			break
		}
		tokens = append(tokens, Token{Term: text[start:i], Position: pos, Start: start, End: i})
		pos++
	}
	return tokens
}

// WhitespaceTokenizer splits on Unicode white space and does nothing else.
type WhitespaceTokenizer struct{}

func (WhitespaceTokenizer) Tokenize(text string) []Token {
	return splitRuns(text, func(r rune) bool { return !unicode.IsSpace(r) })
}

// LetterTokenizer emits maximal runs of letters.
type LetterTokenizer struct{}

func (LetterTokenizer) Tokenize(text string) []Token {
	return splitRuns(text, unicode.IsLetter)
}

// KeywordTokenizer emits the whole input as one token.
type KeywordTokenizer struct{}

func (KeywordTokenizer) Tokenize(text string) []Token {
	if text == "" {
		return nil
	}
	return []Token{{Term: text, Position: 0, Start: 0, End: len(text)}}
}

func splitRuns(text string, keep func(rune) bool) []Token {
	var tokens []Token
	pos := 0
	start := -1
	for i, r := range text {
		if keep(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, Token{Term: text[start:i], Position: pos, Start: start, End: i})
			pos++
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Term: text[start:], Position: pos, Start: start, End: len(text)})
	}
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.Is(unicode.Mn, r)
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '’'
}
