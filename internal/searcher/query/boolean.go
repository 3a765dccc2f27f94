package query

import (
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/segment"
)

// Boolean combines clauses. Every Must clause is required and MustNot
// clauses exclude. Should clauses add score; when Must is empty at least
// max(1, MinShouldMatch) of them must match. A query with no Must and no
// Should clauses matches nothing.
type Boolean struct {
	Must           []Query
	Should         []Query
	MustNot        []Query
	MinShouldMatch int
}

func (q *Boolean) AddMust(c Query) *Boolean {
	q.Must = append(q.Must, c)
	return q
}

func (q *Boolean) AddShould(c Query) *Boolean {
	q.Should = append(q.Should, c)
	return q
}

func (q *Boolean) AddMustNot(c Query) *Boolean {
	q.MustNot = append(q.MustNot, c)
	return q
}

func (q *Boolean) CreateWeight(r IndexReader) (Weight, error) {
	w := &booleanWeight{minShould: q.MinShouldMatch}
	var err error
	if w.must, err = weights(r, q.Must); err != nil {
		return nil, err
	}
	if w.should, err = weights(r, q.Should); err != nil {
		return nil, err
	}
	if w.mustNot, err = weights(r, q.MustNot); err != nil {
		return nil, err
	}
	return w, nil
}

func weights(r IndexReader, qs []Query) ([]Weight, error) {
	out := make([]Weight, 0, len(qs))
	for _, q := range qs {
		w, err := q.CreateWeight(r)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func (q *Boolean) String() string {
	var parts []string
	for _, c := range q.Must {
		parts = append(parts, "+"+wrap(c))
	}
	for _, c := range q.Should {
		parts = append(parts, wrap(c))
	}
	for _, c := range q.MustNot {
		parts = append(parts, "-"+wrap(c))
	}
	s := strings.Join(parts, " ")
	if q.MinShouldMatch > 0 {
		s = "(" + s + ")~" + strconv.Itoa(q.MinShouldMatch)
	}
	return s
}

type booleanWeight struct {
	must      []Weight
	should    []Weight
	mustNot   []Weight
	minShould int
}

func (w *booleanWeight) Scorer(leaf *segment.Leaf) Scorer {
	if len(w.must) == 0 && len(w.should) == 0 {
		return nil
	}
	must := make([]Scorer, 0, len(w.must))
	for _, cw := range w.must {
		s := cw.Scorer(leaf)
		if s == nil {
			return nil
		}
		must = append(must, s)
	}
	should := scorers(leaf, w.should)
	minShould := w.minShould
	if len(must) == 0 {
		minShould = max(minShould, 1)
	}
	if len(should) < minShould {
		return nil
	}

	var main Scorer
	switch {
	case len(must) == 0:
		if len(should) == 1 {
			main = should[0]
		} else {
			main = newDisjunction(should, minShould)
		}
	default:
		if len(must) == 1 {
			main = must[0]
		} else {
			main = newConjunction(must)
		}
		if len(should) > 0 {
			main = &reqOpt{req: main, opt: should, minMatch: minShould}
		}
	}

	if excl := scorers(leaf, w.mustNot); len(excl) > 0 {
		main = &reqExcl{req: main, excl: excl}
	}
	return main
}

func scorers(leaf *segment.Leaf, ws []Weight) []Scorer {
	var out []Scorer
	for _, w := range ws {
		if s := w.Scorer(leaf); s != nil {
			out = append(out, s)
		}
	}
	return out
}
