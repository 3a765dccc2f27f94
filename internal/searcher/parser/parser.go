// Package parser turns query strings into query trees. It supports a
// subset of the classic syntax: field prefixes, +/-/NOT modifiers, AND/OR
// conjunctions, grouping, quoted phrases, trailing-star prefixes,
// wildcards and boosts.
package parser

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

type Operator int

const (
	OR Operator = iota
	AND
)

type occur int

const (
	should occur = iota
	must
	mustNot
)

// Parser is safe for concurrent use once configured.
type Parser struct {
	DefaultField string
	Analyzer     analysis.Analyzer
	// DefaultOperator joins clauses that have no explicit conjunction.
	DefaultOperator Operator
	// LowercaseExpandedTerms lower-cases prefix and wildcard terms, which
	// bypass the analyzer.
	LowercaseExpandedTerms bool
	// Schema, when set, marks fields that are indexed untokenized. Their
	// text is matched verbatim.
	Schema *document.Schema
}

func New(defaultField string, a analysis.Analyzer) *Parser {
	if a == nil {
		a = analysis.Standard()
	}
	return &Parser{
		DefaultField:           defaultField,
		Analyzer:               a,
		DefaultOperator:        OR,
		LowercaseExpandedTerms: true,
	}
}

// Parse parses q. Errors are *apperrors.QueryParseError.
func (p *Parser) Parse(q string) (query.Query, error) {
	if strings.TrimSpace(q) == "" {
		return nil, &apperrors.QueryParseError{Query: q, Pos: 0, Msg: "empty query"}
	}
	st := &state{p: p, in: q}
	out, err := st.parseQuery(p.DefaultField, 0)
	if err != nil {
		return nil, err
	}
	if out == nil {
		// every term was analyzed away
		return &query.Boolean{}, nil
	}
	return out, nil
}

// verbatim reports whether field is indexed as a single untokenized term.
func (p *Parser) verbatim(field string) bool {
	if p.Schema == nil {
		return false
	}
	spec, ok := p.Schema.Field(field)
	return ok && !spec.Tokenized
}

type clause struct {
	occ      occur
	explicit bool
	q        query.Query
}

type state struct {
	p   *Parser
	in  string
	pos int
}

func (s *state) fail(pos int, msg string) error {
	return &apperrors.QueryParseError{Query: s.in, Pos: pos, Msg: msg}
}

func (s *state) eof() bool { return s.pos >= len(s.in) }

func (s *state) peek() byte { return s.in[s.pos] }

func (s *state) skipSpace() {
	for !s.eof() {
		r, n := utf8.DecodeRuneInString(s.in[s.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		s.pos += n
	}
}

// word returns the bare word at the cursor without consuming it.
func (s *state) word() string {
	end := s.pos
	for end < len(s.in) {
		r, n := utf8.DecodeRuneInString(s.in[end:])
		if unicode.IsSpace(r) || r == '(' || r == ')' || r == '"' {
			break
		}
		end += n
	}
	return s.in[s.pos:end]
}

// conjunction consumes AND, OR, && or || at the cursor.
func (s *state) conjunction() string {
	rest := s.in[s.pos:]
	switch {
	case strings.HasPrefix(rest, "&&"):
		s.pos += 2
		return "AND"
	case strings.HasPrefix(rest, "||"):
		s.pos += 2
		return "OR"
	}
	if w := s.word(); w == "AND" || w == "OR" {
		s.pos += len(w)
		return w
	}
	return ""
}

// modifier consumes +, -, ! or NOT at the cursor.
func (s *state) modifier() (occur, bool) {
	switch s.peek() {
	case '+':
		s.pos++
		return must, true
	case '-', '!':
		s.pos++
		return mustNot, true
	}
	if s.word() == "NOT" {
		s.pos += 3
		return mustNot, true
	}
	return should, false
}

func (s *state) parseQuery(field string, depth int) (query.Query, error) {
	var clauses []clause
	for {
		s.skipSpace()
		if s.eof() {
			break
		}
		if s.peek() == ')' {
			if depth == 0 {
				return nil, s.fail(s.pos, "unbalanced parenthesis")
			}
			break
		}

		conjPos := s.pos
		conj := s.conjunction()
		if conj != "" {
			if len(clauses) == 0 {
				return nil, s.fail(conjPos, "missing operand before "+conj)
			}
			s.skipSpace()
			if s.eof() || s.peek() == ')' {
				return nil, s.fail(s.pos, "missing operand after "+conj)
			}
			prev := &clauses[len(clauses)-1]
			switch {
			case prev.occ == mustNot:
			case conj == "AND":
				prev.occ = must
			case !prev.explicit:
				prev.occ = should
			}
		}

		occ, explicit := s.modifier()
		if explicit {
			s.skipSpace()
			if s.eof() || s.peek() == ')' {
				return nil, s.fail(s.pos, "missing operand")
			}
		} else {
			switch {
			case conj == "AND":
				occ = must
			case conj == "OR":
				occ = should
			case s.p.DefaultOperator == AND:
				occ = must
			}
		}

		q, err := s.parseClause(field, depth)
		if err != nil {
			return nil, err
		}
		if q == nil {
			continue
		}
		clauses = append(clauses, clause{occ: occ, explicit: explicit, q: q})
	}
	return combine(clauses), nil
}

func combine(clauses []clause) query.Query {
	switch len(clauses) {
	case 0:
		return nil
	case 1:
		if clauses[0].occ != mustNot {
			return clauses[0].q
		}
	}
	b := &query.Boolean{}
	for _, c := range clauses {
		switch c.occ {
		case must:
			b.AddMust(c.q)
		case should:
			b.AddShould(c.q)
		case mustNot:
			b.AddMustNot(c.q)
		}
	}
	if len(b.Must) == 0 && len(b.Should) == 0 {
		// a purely negative query excludes from everything
		b.AddMust(&query.MatchAll{})
	}
	return b
}

// parseClause parses one operand with its optional field prefix and
// boost. It returns nil when analysis leaves nothing to search for.
func (s *state) parseClause(field string, depth int) (query.Query, error) {
	start := s.pos
	if f, ok, err := s.fieldPrefix(); err != nil {
		return nil, err
	} else if ok {
		if f == "*" {
			if !strings.HasPrefix(s.in[s.pos:], "*") {
				return nil, s.fail(start, "field * only supports *:*")
			}
			s.pos++
			return s.boost(&query.MatchAll{})
		}
		field = f
		if s.eof() {
			return nil, s.fail(s.pos, "missing operand after field "+f)
		}
	}

	var q query.Query
	var err error
	switch s.peek() {
	case '(':
		open := s.pos
		s.pos++
		q, err = s.parseQuery(field, depth+1)
		if err != nil {
			return nil, err
		}
		if s.eof() || s.peek() != ')' {
			return nil, s.fail(open, "unbalanced parenthesis")
		}
		s.pos++
	case '"':
		q, err = s.phrase(field)
	case ')', ':', '^':
		return nil, s.fail(s.pos, "missing operand")
	default:
		q, err = s.term(field)
	}
	if err != nil {
		return nil, err
	}
	return s.boost(q)
}

// fieldPrefix consumes "name:" at the cursor.
func (s *state) fieldPrefix() (string, bool, error) {
	start := s.pos
	i := s.pos
	for i < len(s.in) {
		c := s.in[i]
		if c == '\\' {
			i += 2
			continue
		}
		if c == ':' {
			break
		}
		r, n := utf8.DecodeRuneInString(s.in[i:])
		if unicode.IsSpace(r) || strings.ContainsRune(`()"^`, r) {
			return "", false, nil
		}
		i += n
	}
	if i >= len(s.in) {
		return "", false, nil
	}
	if i == start {
		return "", false, s.fail(start, "empty field name")
	}
	name := unescape(s.in[start:i])
	s.pos = i + 1
	return name, true, nil
}

func (s *state) phrase(field string) (query.Query, error) {
	open := s.pos
	s.pos++
	var b strings.Builder
	for {
		if s.eof() {
			return nil, s.fail(open, "unterminated quote")
		}
		c := s.peek()
		if c == '\\' && s.pos+1 < len(s.in) {
			b.WriteByte(s.in[s.pos+1])
			s.pos += 2
			continue
		}
		s.pos++
		if c == '"' {
			break
		}
		b.WriteByte(c)
	}

	if s.p.verbatim(field) {
		return query.NewTerm(field, b.String()), nil
	}
	var terms []string
	var positions []int
	pos, first := -1, -1
	for tok := range s.p.Analyzer.Analyze(field, b.String()) {
		pos += tok.PosInc
		if first < 0 {
			first = pos
		}
		terms = append(terms, tok.Text)
		positions = append(positions, pos-first)
	}
	switch len(terms) {
	case 0:
		return nil, nil
	case 1:
		return query.NewTerm(field, terms[0]), nil
	}
	return &query.Phrase{Field: field, Terms: terms, Positions: positions}, nil
}

func (s *state) term(field string) (query.Query, error) {
	start := s.pos
	var raw, text strings.Builder
	wildcards := 0
	trailingStar := false
	for !s.eof() {
		c := s.peek()
		if c == '\\' {
			if s.pos+1 >= len(s.in) {
				return nil, s.fail(s.pos, "dangling escape")
			}
			raw.WriteString(s.in[s.pos : s.pos+2])
			text.WriteByte(s.in[s.pos+1])
			s.pos += 2
			trailingStar = false
			continue
		}
		r, n := utf8.DecodeRuneInString(s.in[s.pos:])
		if unicode.IsSpace(r) || strings.ContainsRune(`()"^:`, r) {
			break
		}
		if r == '*' || r == '?' {
			wildcards++
		}
		trailingStar = r == '*'
		// copy the input bytes so invalid UTF-8 reaches the term unchanged
		raw.WriteString(s.in[s.pos : s.pos+n])
		text.WriteString(s.in[s.pos : s.pos+n])
		s.pos += n
	}
	if s.pos == start {
		return nil, s.fail(start, "missing operand")
	}
	if !s.eof() && s.peek() == ':' {
		return nil, s.fail(s.pos, "unexpected ':'")
	}

	if wildcards > 0 {
		return s.expanded(field, raw.String(), text.String(), wildcards == 1 && trailingStar), nil
	}
	if s.p.verbatim(field) {
		return query.NewTerm(field, text.String()), nil
	}

	terms := analysis.Terms(s.p.Analyzer, field, text.String())
	switch len(terms) {
	case 0:
		return nil, nil
	case 1:
		return query.NewTerm(field, terms[0]), nil
	}
	b := &query.Boolean{}
	for _, t := range terms {
		b.AddShould(query.NewTerm(field, t))
	}
	return b, nil
}

// expanded builds a prefix or wildcard query. These bypass the analyzer.
func (s *state) expanded(field, pattern, text string, prefix bool) query.Query {
	if s.p.LowercaseExpandedTerms && !s.p.verbatim(field) {
		pattern = strings.ToLower(pattern)
		text = strings.ToLower(text)
	}
	if prefix && len(text) > 1 {
		return query.NewPrefix(field, strings.TrimSuffix(text, "*"))
	}
	return query.NewWildcard(field, pattern)
}

func (s *state) boost(q query.Query) (query.Query, error) {
	if s.eof() || s.peek() != '^' {
		return q, nil
	}
	s.pos++
	start := s.pos
	for !s.eof() && (s.peek() == '.' || (s.peek() >= '0' && s.peek() <= '9')) {
		s.pos++
	}
	f, err := strconv.ParseFloat(s.in[start:s.pos], 64)
	if err != nil {
		return nil, s.fail(start, "invalid boost")
	}
	if q == nil {
		return nil, nil
	}
	return &query.Boost{Query: q, Factor: f}, nil
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
