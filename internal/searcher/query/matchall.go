package query

import (
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/segment"
)

// MatchAll matches every live document with a constant score of 1.
type MatchAll struct{}

func (q *MatchAll) CreateWeight(IndexReader) (Weight, error) {
	return matchAllWeight{}, nil
}

func (q *MatchAll) String() string { return "*:*" }

type matchAllWeight struct{}

func (matchAllWeight) Scorer(leaf *segment.Leaf) Scorer {
	if leaf.NumDocs() == 0 {
		return nil
	}
	return &allScorer{leaf: leaf, doc: -1}
}

type allScorer struct {
	leaf *segment.Leaf
	doc  int
}

func (s *allScorer) DocID() int { return s.doc }

func (s *allScorer) Next() int { return s.Advance(s.doc + 1) }

func (s *allScorer) Advance(target int) int {
	for d := target; d < s.leaf.MaxDoc(); d++ {
		if s.leaf.IsLive(d) {
			s.doc = d
			return d
		}
	}
	s.doc = NoMoreDocs
	return s.doc
}

func (s *allScorer) Cost() int64 { return int64(s.leaf.MaxDoc()) }

func (s *allScorer) Score() float64 { return 1 }
