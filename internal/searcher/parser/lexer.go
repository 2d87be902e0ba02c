package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

type tokenKind int

const (
	tkEOF tokenKind = iota
	tkWord
	tkPhrase
	tkLParen
	tkRParen
	tkColon
	tkPlus
	tkMinus
	tkNot
	tkAnd
	tkOr
	tkCaret
	tkTilde
)

func (k tokenKind) String() string {
	switch k {
	case tkEOF:
		return "end of query"
	case tkWord:
		return "term"
	case tkPhrase:
		return "phrase"
	case tkLParen:
		return "'('"
	case tkRParen:
		return "')'"
	case tkColon:
		return "':'"
	case tkPlus:
		return "'+'"
	case tkMinus:
		return "'-'"
	case tkNot:
		return "NOT"
	case tkAnd:
		return "AND"
	case tkOr:
		return "OR"
	case tkCaret:
		return "'^'"
	case tkTilde:
		return "'~'"
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string
	pos  int
	// wildcard is set for words holding an unescaped '*' or '?'.
	wildcard bool
	// number is the value following '^' or '~'; hasNumber reports whether
	// one was given.
	number    float64
	hasNumber bool
}

func syntaxError(pos int, format string, args ...any) error {
	return fmt.Errorf("%w: %s at position %d", apperrors.ErrQuerySyntax, fmt.Sprintf(format, args...), pos)
}

// isTermStart reports whether r may begin a bare word.
func isTermStart(r rune) bool {
	if unicode.IsSpace(r) {
		return false
	}
	return !strings.ContainsRune(`+-!():^[]"{}~\/`, r)
}

// isTermChar reports whether r may continue a bare word.
func isTermChar(r rune) bool {
	return isTermStart(r) || r == '+' || r == '-'
}

func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		if unicode.IsSpace(r) {
			i += size
			continue
		}
		start := i
		if isDoubleOp(input, i) {
			kind := tkAnd
			if r == '|' {
				kind = tkOr
			}
			tokens = append(tokens, token{kind: kind, pos: start})
			i += 2
			continue
		}
		switch r {
		case '(':
			tokens = append(tokens, token{kind: tkLParen, pos: start})
			i++
		case ')':
			tokens = append(tokens, token{kind: tkRParen, pos: start})
			i++
		case ':':
			tokens = append(tokens, token{kind: tkColon, pos: start})
			i++
		case '+':
			tokens = append(tokens, token{kind: tkPlus, pos: start})
			i++
		case '-':
			tokens = append(tokens, token{kind: tkMinus, pos: start})
			i++
		case '!':
			tokens = append(tokens, token{kind: tkNot, pos: start})
			i++
		case '^', '~':
			kind := tkCaret
			if r == '~' {
				kind = tkTilde
			}
			i++
			j := i
			for j < len(input) && (input[j] >= '0' && input[j] <= '9' || input[j] == '.') {
				j++
			}
			tok := token{kind: kind, pos: start}
			if j > i {
				n, err := strconv.ParseFloat(input[i:j], 64)
				if err != nil {
					return nil, syntaxError(i, "invalid number %q", input[i:j])
				}
				tok.number, tok.hasNumber = n, true
			}
			if kind == tkCaret && !tok.hasNumber {
				return nil, syntaxError(start, "boost requires a number")
			}
			tokens = append(tokens, tok)
			i = j
		case '"':
			text, next, err := lexPhrase(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tkPhrase, text: text, pos: start})
			i = next
		case '[', '{', ']', '}':
			return nil, syntaxError(start, "range queries are not supported")
		case '/':
			return nil, syntaxError(start, "regular expression queries are not supported")
		default:
			tok, next, err := lexWord(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		}
	}
	tokens = append(tokens, token{kind: tkEOF, pos: len(input)})
	return tokens, nil
}

// isDoubleOp reports whether "&&" or "||" starts at i.
func isDoubleOp(input string, i int) bool {
	if i+1 >= len(input) {
		return false
	}
	c := input[i]
	return (c == '&' || c == '|') && input[i+1] == c
}

func lexPhrase(input string, i int) (string, int, error) {
	start := i
	i++
	var b strings.Builder
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		switch r {
		case '\\':
			if i+size >= len(input) {
				return "", 0, syntaxError(i, "dangling escape")
			}
			esc, escSize := utf8.DecodeRuneInString(input[i+size:])
			b.WriteRune(esc)
			i += size + escSize
			continue
		case '"':
			return b.String(), i + size, nil
		}
		b.WriteRune(r)
		i += size
	}
	return "", 0, syntaxError(start, "unterminated phrase")
}

func lexWord(input string, i int) (token, int, error) {
	tok := token{kind: tkWord, pos: i}
	var b strings.Builder
	first := true
	escaped := false
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		if r == '\\' {
			if i+size >= len(input) {
				return token{}, 0, syntaxError(i, "dangling escape")
			}
			esc, escSize := utf8.DecodeRuneInString(input[i+size:])
			b.WriteRune(esc)
			i += size + escSize
			first = false
			escaped = true
			continue
		}
		if first && !isTermStart(r) || !first && !isTermChar(r) || isDoubleOp(input, i) {
			break
		}
		if r == '*' || r == '?' {
			tok.wildcard = true
		}
		b.WriteRune(r)
		i += size
		first = false
	}
	tok.text = b.String()
	if !escaped {
		switch tok.text {
		case "AND":
			tok.kind = tkAnd
		case "OR":
			tok.kind = tkOr
		case "NOT":
			tok.kind = tkNot
		}
	}
	return tok, i, nil
}
