// Package parser turns query strings in the classic syntax into query
// trees. Supported: bare and field-qualified terms, quoted phrases with
// optional slop, AND/OR/NOT and &&/||/!, +/- prefixes, parentheses, ^boost,
// *:* and backslash escapes.
package parser

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/searcher/query"
)

// Operator is the implicit operator between clauses.
type Operator int

const (
	OR Operator = iota
	AND
)

func (o Operator) String() string {
	if o == AND {
		return "AND"
	}
	return "OR"
}

// ParseOperator accepts "AND" or "OR" in any case.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "OR":
		return OR, nil
	case "AND":
		return AND, nil
	}
	return OR, fmt.Errorf("unknown default operator %q", s)
}

// Escape backslash-escapes query syntax characters in s.
func Escape(s string) string {
	return query.Escape(s)
}

// Parser is safe for concurrent use once configured.
type Parser struct {
	// Fields are searched by clauses without a field prefix. Several fields
	// turn each such clause into a disjunction over them.
	Fields   []string
	Analyzer analysis.Analyzer
	// FieldAnalyzers overrides Analyzer per field.
	FieldAnalyzers map[string]analysis.Analyzer
	Operator       Operator
	// AutoGeneratePhraseQueries turns a bare word that analyzes to several
	// positions into a phrase instead of a boolean query.
	AutoGeneratePhraseQueries bool
}

// New creates a parser over the given default fields with the OR operator.
func New(a analysis.Analyzer, fields ...string) *Parser {
	return &Parser{Fields: fields, Analyzer: a}
}

type modifier int

const (
	modNone modifier = iota
	modRequired
	modProhibited
)

type conjunction int

const (
	conjNone conjunction = iota
	conjAnd
	conjOr
)

type state struct {
	p      *Parser
	tokens []token
	pos    int
}

func (s *state) peek() token { return s.tokens[s.pos] }

func (s *state) next() token {
	t := s.tokens[s.pos]
	if t.kind != tkEOF {
		s.pos++
	}
	return t
}

// Parse parses input. A query whose every term analyzes away yields nil.
func (p *Parser) Parse(input string) (query.Query, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	s := &state{p: p, tokens: tokens}
	q, err := s.parseQuery("")
	if err != nil {
		return nil, err
	}
	if t := s.peek(); t.kind != tkEOF {
		return nil, syntaxError(t.pos, "unexpected %s", t.kind)
	}
	return q, nil
}

func (s *state) parseQuery(field string) (query.Query, error) {
	var clauses []query.Clause
	var first query.Query
	seen := false
	for {
		t := s.peek()
		if t.kind == tkEOF || t.kind == tkRParen {
			break
		}
		conj := conjNone
		if t.kind == tkAnd || t.kind == tkOr {
			if !seen {
				return nil, syntaxError(t.pos, "unexpected %s", t.kind)
			}
			if t.kind == tkAnd {
				conj = conjAnd
			} else {
				conj = conjOr
			}
			s.next()
		}
		mods := modNone
		switch s.peek().kind {
		case tkPlus:
			mods = modRequired
			s.next()
		case tkMinus, tkNot:
			mods = modProhibited
			s.next()
		}
		q, err := s.parseClause(field)
		if err != nil {
			return nil, err
		}
		if len(clauses) == 0 && conj == conjNone && mods == modNone {
			first = q
		}
		seen = true
		clauses = s.addClause(clauses, conj, mods, q)
	}
	if len(clauses) == 1 && first != nil {
		return first, nil
	}
	if len(clauses) == 0 {
		return nil, nil
	}
	return &query.BooleanQuery{Clauses: clauses}, nil
}

// addClause applies the classic conjunction rules: AND makes the previous
// clause required, OR under a default AND makes it optional, and the new
// clause's occurrence follows its modifier and the default operator.
func (s *state) addClause(clauses []query.Clause, conj conjunction, mods modifier, q query.Query) []query.Clause {
	if n := len(clauses); n > 0 {
		last := &clauses[n-1]
		if conj == conjAnd && last.Occur != query.MustNot {
			last.Occur = query.Must
		}
		if conj == conjOr && s.p.Operator == AND && last.Occur != query.MustNot {
			last.Occur = query.Should
		}
	}
	if q == nil {
		return clauses
	}
	var required, prohibited bool
	if s.p.Operator == OR {
		prohibited = mods == modProhibited
		required = mods == modRequired
		if conj == conjAnd && !prohibited {
			required = true
		}
	} else {
		prohibited = mods == modProhibited
		required = !prohibited && conj != conjOr
	}
	occur := query.Should
	switch {
	case prohibited:
		occur = query.MustNot
	case required:
		occur = query.Must
	}
	return append(clauses, query.Clause{Query: q, Occur: occur})
}

func (s *state) parseClause(field string) (query.Query, error) {
	t := s.peek()
	if t.kind == tkWord && s.tokens[s.pos+1].kind == tkColon {
		s.next()
		s.next()
		if t.text == "*" && t.wildcard {
			star := s.next()
			if star.kind != tkWord || star.text != "*" {
				return nil, syntaxError(star.pos, "only *:* is supported for the * field")
			}
			return s.boosted(query.MatchAllDocsQuery{})
		}
		if t.wildcard {
			return nil, syntaxError(t.pos, "wildcard field names are not supported")
		}
		field = t.text
	}

	t = s.next()
	switch t.kind {
	case tkLParen:
		q, err := s.parseQuery(field)
		if err != nil {
			return nil, err
		}
		if closing := s.next(); closing.kind != tkRParen {
			return nil, syntaxError(closing.pos, "expected ')' but found %s", closing.kind)
		}
		if q == nil {
			if s.peek().kind == tkCaret {
				s.next()
			}
			return nil, nil
		}
		return s.boosted(q)
	case tkWord:
		if t.wildcard {
			return nil, syntaxError(t.pos, "wildcard queries are not supported")
		}
		if s.peek().kind == tkTilde {
			return nil, syntaxError(s.peek().pos, "fuzzy queries are not supported")
		}
		q := s.p.fieldQuery(field, t.text, false, 0)
		return s.boosted(q)
	case tkPhrase:
		slop := 0
		if tilde := s.peek(); tilde.kind == tkTilde {
			s.next()
			if tilde.hasNumber {
				slop = int(tilde.number)
			}
		}
		q := s.p.fieldQuery(field, t.text, true, slop)
		return s.boosted(q)
	}
	return nil, syntaxError(t.pos, "unexpected %s", t.kind)
}

func (s *state) boosted(q query.Query) (query.Query, error) {
	if s.peek().kind != tkCaret {
		return q, nil
	}
	caret := s.next()
	if q == nil || caret.number == 1 {
		return q, nil
	}
	return &query.BoostQuery{Query: q, Boost: caret.number}, nil
}

func (p *Parser) analyzerFor(field string) analysis.Analyzer {
	if a, ok := p.FieldAnalyzers[field]; ok {
		return a
	}
	return p.Analyzer
}

// fieldQuery builds the query for one word or phrase. Without a field the
// default fields are used.
func (p *Parser) fieldQuery(field, text string, quoted bool, slop int) query.Query {
	if field != "" {
		return p.analyzedQuery(field, text, quoted, slop)
	}
	if len(p.Fields) == 1 {
		return p.analyzedQuery(p.Fields[0], text, quoted, slop)
	}
	var subs []query.Query
	for _, f := range p.Fields {
		if q := p.analyzedQuery(f, text, quoted, slop); q != nil {
			subs = append(subs, q)
		}
	}
	switch len(subs) {
	case 0:
		return nil
	case 1:
		return subs[0]
	}
	bq := &query.BooleanQuery{DisableCoord: true}
	for _, q := range subs {
		bq.Add(q, query.Should)
	}
	return bq
}

func (p *Parser) analyzedQuery(field, text string, quoted bool, slop int) query.Query {
	tokens := p.analyzerFor(field).Analyze(text)
	if len(tokens) == 0 {
		return nil
	}
	var groups [][]string
	var positions []int
	for _, tok := range tokens {
		if n := len(positions); n > 0 && positions[n-1] == tok.Position {
			groups[n-1] = append(groups[n-1], tok.Term)
			continue
		}
		groups = append(groups, []string{tok.Term})
		positions = append(positions, tok.Position)
	}

	if len(groups) == 1 {
		return synonyms(field, groups[0])
	}
	if quoted || p.AutoGeneratePhraseQueries {
		pq := &query.PhraseQuery{Field: field, Slop: slop}
		for i, g := range groups {
			pq.Add(g[0], positions[i]-positions[0])
		}
		return pq
	}
	occur := query.Should
	if p.Operator == AND {
		occur = query.Must
	}
	bq := &query.BooleanQuery{}
	for _, g := range groups {
		bq.Add(synonyms(field, g), occur)
	}
	return bq
}

// synonyms is a single term, or a coord-free disjunction of terms sharing a
// position.
func synonyms(field string, terms []string) query.Query {
	if len(terms) == 1 {
		return query.NewTermQuery(field, terms[0])
	}
	bq := &query.BooleanQuery{DisableCoord: true}
	for _, t := range terms {
		bq.Add(query.NewTermQuery(field, t), query.Should)
	}
	return bq
}
