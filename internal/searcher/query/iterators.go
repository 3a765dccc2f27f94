package query

import (
	"container/heap"
	"slices"
)

// conjunction matches docs present in every sub-scorer by leap-frogging
// from the cheapest one.
type conjunction struct {
	subs []Scorer
	doc  int
}

func newConjunction(subs []Scorer) *conjunction {
	subs = slices.Clone(subs)
	slices.SortFunc(subs, func(a, b Scorer) int {
		switch {
		case a.Cost() < b.Cost():
			return -1
		case a.Cost() > b.Cost():
			return 1
		}
		return 0
	})
	return &conjunction{subs: subs, doc: -1}
}

func (c *conjunction) DocID() int { return c.doc }

func (c *conjunction) Next() int { return c.align(c.subs[0].Next()) }

func (c *conjunction) Advance(target int) int { return c.align(c.subs[0].Advance(target)) }

func (c *conjunction) align(target int) int {
	lead := c.subs[0]
outer:
	for target != NoMoreDocs {
		for _, s := range c.subs[1:] {
			d := s.DocID()
			if d < target {
				d = s.Advance(target)
			}
			if d > target {
				target = lead.Advance(d)
				continue outer
			}
		}
		c.doc = target
		return target
	}
	c.doc = NoMoreDocs
	return c.doc
}

func (c *conjunction) Cost() int64 { return c.subs[0].Cost() }

func (c *conjunction) Score() float64 {
	sum := 0.0
	for _, s := range c.subs {
		sum += s.Score()
	}
	return sum
}

// disjunction matches docs present in at least minMatch sub-scorers.
type disjunction struct {
	h        scorerHeap
	doc      int
	minMatch int
	cost     int64
}

func newDisjunction(subs []Scorer, minMatch int) *disjunction {
	d := &disjunction{h: slices.Clone(subs), doc: -1, minMatch: max(minMatch, 1)}
	for _, s := range subs {
		d.cost += s.Cost()
	}
	heap.Init(&d.h)
	return d
}

func (d *disjunction) DocID() int { return d.doc }

func (d *disjunction) Next() int {
	return d.Advance(d.doc + 1)
}

func (d *disjunction) Advance(target int) int {
	for {
		for len(d.h) > 0 && d.h[0].DocID() < target {
			if d.h[0].Advance(target) == NoMoreDocs {
				heap.Pop(&d.h)
			} else {
				heap.Fix(&d.h, 0)
			}
		}
		if len(d.h) == 0 {
			d.doc = NoMoreDocs
			return d.doc
		}
		d.doc = d.h[0].DocID()
		if d.matches() >= d.minMatch {
			return d.doc
		}
		target = d.doc + 1
	}
}

func (d *disjunction) matches() int {
	n := 0
	for _, s := range d.h {
		if s.DocID() == d.doc {
			n++
		}
	}
	return n
}

func (d *disjunction) Cost() int64 { return d.cost }

func (d *disjunction) Score() float64 {
	sum := 0.0
	for _, s := range d.h {
		if s.DocID() == d.doc {
			sum += s.Score()
		}
	}
	return sum
}

type scorerHeap []Scorer

func (h scorerHeap) Len() int           { return len(h) }
func (h scorerHeap) Less(i, j int) bool { return h[i].DocID() < h[j].DocID() }
func (h scorerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *scorerHeap) Push(x any) { *h = append(*h, x.(Scorer)) }

func (h *scorerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// reqOpt iterates req and adds the scores of the optional scorers that sit
// on the same doc. At least minMatch optionals must match.
type reqOpt struct {
	req      Scorer
	opt      []Scorer
	minMatch int
}

func (s *reqOpt) DocID() int { return s.req.DocID() }

func (s *reqOpt) Next() int { return s.filter(s.req.Next()) }

func (s *reqOpt) Advance(target int) int { return s.filter(s.req.Advance(target)) }

func (s *reqOpt) filter(doc int) int {
	for doc != NoMoreDocs && s.optMatches(doc) < s.minMatch {
		doc = s.req.Next()
	}
	return doc
}

func (s *reqOpt) optMatches(doc int) int {
	n := 0
	for _, o := range s.opt {
		d := o.DocID()
		if d < doc {
			d = o.Advance(doc)
		}
		if d == doc {
			n++
		}
	}
	return n
}

func (s *reqOpt) Cost() int64 { return s.req.Cost() }

func (s *reqOpt) Score() float64 {
	doc := s.req.DocID()
	sum := s.req.Score()
	for _, o := range s.opt {
		if o.DocID() == doc {
			sum += o.Score()
		}
	}
	return sum
}

// reqExcl drops docs matched by any excluded iterator.
type reqExcl struct {
	req  Scorer
	excl []Scorer
}

func (s *reqExcl) DocID() int { return s.req.DocID() }

func (s *reqExcl) Next() int { return s.filter(s.req.Next()) }

func (s *reqExcl) Advance(target int) int { return s.filter(s.req.Advance(target)) }

func (s *reqExcl) filter(doc int) int {
	for doc != NoMoreDocs && s.excluded(doc) {
		doc = s.req.Next()
	}
	return doc
}

func (s *reqExcl) excluded(doc int) bool {
	for _, e := range s.excl {
		d := e.DocID()
		if d < doc {
			d = e.Advance(doc)
		}
		if d == doc {
			return true
		}
	}
	return false
}

func (s *reqExcl) Cost() int64 { return s.req.Cost() }

func (s *reqExcl) Score() float64 { return s.req.Score() }
