// Package query holds the query model and its per-segment execution.
//
// A Query is bound to reader statistics by CreateWeight; the Weight then
// yields one Scorer per leaf. Scorers iterate local doc ids in ascending
// order and never return deleted docs.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

// NoMoreDocs is the doc id of an exhausted iterator.
const NoMoreDocs = index.NoMoreDocs

// IndexReader is the view a query is evaluated against. Both the reader
// snapshot and segment.Leaves implement it.
type IndexReader interface {
	Leaves() []*segment.Leaf
	MaxDoc() int
	DocFreq(field, text string) int
	FieldStats(field string) index.FieldStats
}

type Query interface {
	// CreateWeight binds the query to r's statistics.
	CreateWeight(r IndexReader) (Weight, error)
	// String renders the query in query-string syntax. Queries that can
	// match or score differently render differently; result caches key
	// on it.
	String() string
}

type Weight interface {
	// Scorer returns nil when nothing in leaf can match.
	Scorer(leaf *segment.Leaf) Scorer
}

// DocIterator walks doc ids in ascending order. DocID is -1 before the
// first Next or Advance and NoMoreDocs once exhausted.
type DocIterator interface {
	DocID() int
	Next() int
	// Advance moves to the first doc >= target. Target must be greater
	// than the current doc.
	Advance(target int) int
	Cost() int64
}

type Scorer interface {
	DocIterator
	Score() float64
}

var similarity = ranker.NewBM25()

func collectionStats(r IndexReader, field string) ranker.CollectionStats {
	fs := r.FieldStats(field)
	return ranker.CollectionStats{
		MaxDoc:           int64(r.MaxDoc()),
		DocCount:         int64(fs.DocCount),
		SumTotalTermFreq: fs.SumTotalTermFreq,
	}
}

func termStats(r IndexReader, field, text string) ranker.TermStats {
	return ranker.TermStats{Text: text, DocFreq: int64(r.DocFreq(field, text))}
}

// Boost multiplies the score of the wrapped query.
type Boost struct {
	Query  Query
	Factor float64
}

func (q *Boost) CreateWeight(r IndexReader) (Weight, error) {
	if q.Factor < 0 {
		return nil, fmt.Errorf("negative boost %v: %w", q.Factor, apperrors.ErrInvalidInput)
	}
	w, err := q.Query.CreateWeight(r)
	if err != nil {
		return nil, err
	}
	return &boostWeight{inner: w, factor: q.Factor}, nil
}

func (q *Boost) String() string {
	return wrap(q.Query) + "^" + strconv.FormatFloat(q.Factor, 'g', -1, 64)
}

type boostWeight struct {
	inner  Weight
	factor float64
}

func (w *boostWeight) Scorer(leaf *segment.Leaf) Scorer {
	s := w.inner.Scorer(leaf)
	if s == nil {
		return nil
	}
	return &boostScorer{Scorer: s, factor: w.factor}
}

type boostScorer struct {
	Scorer
	factor float64
}

func (s *boostScorer) Score() float64 { return s.Scorer.Score() * s.factor }

func wrap(q Query) string {
	if _, ok := q.(*Boolean); ok {
		return "(" + q.String() + ")"
	}
	return q.String()
}

// syntaxChars are the bytes the query parser gives a meaning to.
const syntaxChars = "\\+-!():^\"*?~{}[]&| \t\n\r"

// escapeText backslash-escapes syntax characters so a term's text cannot
// be read as an operator or wildcard in String output. It works on bytes,
// leaving invalid UTF-8 untouched.
func escapeText(s string) string {
	return escapeExcept(s, "")
}

// escapeExcept is escapeText leaving the bytes in keep as they are.
func escapeExcept(s, keep string) string {
	if !strings.ContainsAny(s, syntaxChars) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(syntaxChars, c) >= 0 && strings.IndexByte(keep, c) < 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}
