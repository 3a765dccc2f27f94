package query

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

// Phrase matches documents where Terms occur at consecutive positions, or
// at the relative Positions when those are set (gaps left by stop words).
type Phrase struct {
	Field     string
	Terms     []string
	Positions []int
}

func NewPhrase(field string, terms ...string) *Phrase {
	return &Phrase{Field: field, Terms: terms}
}

func (q *Phrase) CreateWeight(r IndexReader) (Weight, error) {
	if len(q.Positions) != 0 && len(q.Positions) != len(q.Terms) {
		return nil, fmt.Errorf("phrase has %d terms and %d positions: %w",
			len(q.Terms), len(q.Positions), apperrors.ErrInvalidInput)
	}
	offsets := q.Positions
	if len(offsets) == 0 {
		offsets = make([]int, len(q.Terms))
		for i := range offsets {
			offsets[i] = i
		}
	}
	stats := make([]ranker.TermStats, len(q.Terms))
	for i, t := range q.Terms {
		stats[i] = termStats(r, q.Field, t)
	}
	return &phraseWeight{
		field:   q.Field,
		terms:   q.Terms,
		offsets: offsets,
		sim:     similarity.Scorer(1, collectionStats(r, q.Field), stats...),
	}, nil
}

// String marks each position skipped between two terms with "?", so
// "river in india" with the stop word removed renders as "river ? india".
// Positions that are not strictly increasing are listed after '@'.
func (q *Phrase) String() string {
	var b strings.Builder
	b.WriteString(escapeText(q.Field))
	b.WriteString(`:"`)
	increasing := len(q.Positions) == len(q.Terms)
	for i := 1; increasing && i < len(q.Positions); i++ {
		increasing = q.Positions[i] > q.Positions[i-1]
	}
	for i, t := range q.Terms {
		if i > 0 {
			b.WriteByte(' ')
			if increasing {
				for range q.Positions[i] - q.Positions[i-1] - 1 {
					b.WriteString("? ")
				}
			}
		}
		b.WriteString(escapeText(t))
	}
	b.WriteByte('"')
	if len(q.Positions) > 0 && !increasing {
		b.WriteByte('@')
		for i, p := range q.Positions {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(p - q.Positions[0]))
		}
	}
	return b.String()
}

type phraseWeight struct {
	field   string
	terms   []string
	offsets []int
	sim     *ranker.SimScorer
}

func (w *phraseWeight) Scorer(leaf *segment.Leaf) Scorer {
	if len(w.terms) == 0 {
		return nil
	}
	parts := make([]*termScorer, len(w.terms))
	subs := make([]Scorer, len(w.terms))
	for i, t := range w.terms {
		it := leaf.Postings(w.field, t)
		if it == nil {
			return nil
		}
		parts[i] = newTermScorer(leaf, w.field, it, w.sim)
		subs[i] = parts[i]
	}
	return &phraseScorer{
		conj:    newConjunction(subs),
		parts:   parts,
		offsets: w.offsets,
		leaf:    leaf,
		field:   w.field,
		sim:     w.sim,
	}
}

type phraseScorer struct {
	conj    *conjunction
	parts   []*termScorer
	offsets []int
	leaf    *segment.Leaf
	field   string
	sim     *ranker.SimScorer
	freq    int
}

func (s *phraseScorer) DocID() int { return s.conj.DocID() }

func (s *phraseScorer) Next() int { return s.filter(s.conj.Next()) }

func (s *phraseScorer) Advance(target int) int { return s.filter(s.conj.Advance(target)) }

func (s *phraseScorer) filter(doc int) int {
	for doc != NoMoreDocs {
		if s.freq = s.phraseFreq(); s.freq > 0 {
			return doc
		}
		doc = s.conj.Next()
	}
	return doc
}

// phraseFreq counts the start positions at which every term sits at its
// relative offset.
func (s *phraseScorer) phraseFreq() int {
	n := 0
	for _, p0 := range s.parts[0].it.Positions() {
		base := int(p0) - s.offsets[0]
		ok := true
		for i := 1; i < len(s.parts) && ok; i++ {
			want := base + s.offsets[i]
			if want < 0 {
				ok = false
				break
			}
			_, ok = slices.BinarySearch(s.parts[i].it.Positions(), uint32(want))
		}
		if ok {
			n++
		}
	}
	return n
}

func (s *phraseScorer) Cost() int64 { return s.conj.Cost() }

func (s *phraseScorer) Score() float64 {
	doc := s.conj.DocID()
	return s.sim.Score(float64(s.freq), float64(s.leaf.FieldLength(s.field, doc)))
}
