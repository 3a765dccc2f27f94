package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

// Prefix matches documents containing any term of field that starts with
// Text. Each expanded term scores like a Term query.
type Prefix struct {
	Field string
	Text  string
}

func NewPrefix(field, text string) *Prefix {
	return &Prefix{Field: field, Text: text}
}

func (q *Prefix) CreateWeight(r IndexReader) (Weight, error) {
	return &multiTermWeight{r: r, field: q.Field, prefix: q.Text}, nil
}

func (q *Prefix) String() string {
	return escapeText(q.Field) + ":" + escapeText(q.Text) + "*"
}

// Wildcard matches terms against a glob: '*' is any run of characters, '?'
// exactly one, and a backslash escapes the next character.
type Wildcard struct {
	Field   string
	Pattern string
}

func NewWildcard(field, pattern string) *Wildcard {
	return &Wildcard{Field: field, Pattern: pattern}
}

func (q *Wildcard) CreateWeight(r IndexReader) (Weight, error) {
	re, prefix, err := compileGlob(q.Pattern)
	if err != nil {
		return nil, fmt.Errorf("wildcard %q: %w", q.Pattern, err)
	}
	return &multiTermWeight{r: r, field: q.Field, prefix: prefix, match: re.MatchString}, nil
}

func (q *Wildcard) String() string {
	// the pattern's own escapes and wildcards are already glob syntax
	return escapeText(q.Field) + ":" + escapeExcept(q.Pattern, `\*?`)
}

// compileGlob translates a glob into an anchored regexp and returns the
// literal prefix preceding the first wildcard.
func compileGlob(pattern string) (*regexp.Regexp, string, error) {
	var (
		re      strings.Builder
		prefix  strings.Builder
		literal = true
	)
	re.WriteString(`^(?s:`)
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '*':
			literal = false
			re.WriteString(`.*`)
		case '?':
			literal = false
			re.WriteString(`.`)
		case '\\':
			if i+1 == len(runes) {
				return nil, "", fmt.Errorf("trailing escape: %w", apperrors.ErrInvalidInput)
			}
			i++
			c = runes[i]
			fallthrough
		default:
			re.WriteString(regexp.QuoteMeta(string(c)))
			if literal {
				prefix.WriteRune(c)
			}
		}
	}
	re.WriteString(`)$`)
	compiled, err := regexp.Compile(re.String())
	if err != nil {
		return nil, "", fmt.Errorf("%v: %w", err, apperrors.ErrInvalidInput)
	}
	return compiled, prefix.String(), nil
}

// multiTermWeight expands the terms of a leaf's dictionary that share
// prefix and pass match into a disjunction of term scorers. Each term is
// weighted with its reader-wide document frequency.
type multiTermWeight struct {
	r      IndexReader
	field  string
	prefix string
	match  func(string) bool
}

func (w *multiTermWeight) Scorer(leaf *segment.Leaf) Scorer {
	te := leaf.Terms(w.field)
	coll := collectionStats(w.r, w.field)
	var subs []Scorer
	for ok := te.SeekCeil(w.prefix); ok; ok = te.Next() {
		text := te.Term()
		if !strings.HasPrefix(text, w.prefix) {
			break
		}
		if w.match != nil && !w.match(text) {
			continue
		}
		sim := similarity.Scorer(1, coll, termStats(w.r, w.field, text))
		subs = append(subs, newTermScorer(leaf, w.field, te.Postings(), sim))
	}
	switch len(subs) {
	case 0:
		return nil
	case 1:
		return subs[0]
	}
	return newDisjunction(subs, 1)
}
