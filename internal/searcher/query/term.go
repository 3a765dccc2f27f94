package query

import (
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/ranker"
)

// Term matches documents whose field contains Text exactly. Text is not
// analyzed.
type Term struct {
	Field string
	Text  string
}

func NewTerm(field, text string) *Term {
	return &Term{Field: field, Text: text}
}

func (q *Term) CreateWeight(r IndexReader) (Weight, error) {
	sim := similarity.Scorer(1, collectionStats(r, q.Field), termStats(r, q.Field, q.Text))
	return &termWeight{field: q.Field, text: q.Text, sim: sim}, nil
}

func (q *Term) String() string {
	return escapeText(q.Field) + ":" + escapeText(q.Text)
}

type termWeight struct {
	field string
	text  string
	sim   *ranker.SimScorer
}

func (w *termWeight) Scorer(leaf *segment.Leaf) Scorer {
	it := leaf.Postings(w.field, w.text)
	if it == nil {
		return nil
	}
	return newTermScorer(leaf, w.field, it, w.sim)
}

// termScorer scores one term's postings in one leaf, skipping deleted
// docs.
type termScorer struct {
	leaf  *segment.Leaf
	field string
	it    *index.PostingsIterator
	sim   *ranker.SimScorer
	live  bool
}

func newTermScorer(leaf *segment.Leaf, field string, it *index.PostingsIterator, sim *ranker.SimScorer) *termScorer {
	return &termScorer{leaf: leaf, field: field, it: it, sim: sim, live: !leaf.HasDeletions()}
}

func (s *termScorer) DocID() int { return s.it.DocID() }

func (s *termScorer) Next() int {
	return s.skipDeleted(s.it.Next())
}

func (s *termScorer) Advance(target int) int {
	return s.skipDeleted(s.it.Advance(target))
}

func (s *termScorer) skipDeleted(doc int) int {
	if s.live {
		return doc
	}
	for doc != NoMoreDocs && !s.leaf.IsLive(doc) {
		doc = s.it.Next()
	}
	return doc
}

func (s *termScorer) Cost() int64 { return s.it.Cost() }

func (s *termScorer) Freq() int { return s.it.Freq() }

func (s *termScorer) Score() float64 {
	return s.sim.Score(float64(s.it.Freq()), float64(s.leaf.FieldLength(s.field, s.it.DocID())))
}
