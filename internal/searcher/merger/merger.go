// Package merger selects and merges top-K hits under a given ordering.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/query"
)

// Hit is a candidate with the values it is ordered by.
type Hit struct {
	DocID int
	Score float64
	Keys  []query.SortValue
}

// Less reports whether a ranks before b.
type Less func(a, b Hit) bool

// ByScore orders by descending score, then ascending doc id.
func ByScore(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// BySort orders by s, then ascending doc id. A nil s means ByScore.
func BySort(s *query.Sort) Less {
	if s == nil || len(s.Fields) == 0 {
		return ByScore
	}
	return func(a, b Hit) bool {
		if c := s.Compare(a.Keys, b.Keys); c != 0 {
			return c < 0
		}
		return a.DocID < b.DocID
	}
}

// TopK keeps the k best hits seen so far.
type TopK struct {
	h hitHeap
	k int
}

func NewTopK(k int, less Less) *TopK {
	return &TopK{h: hitHeap{less: less}, k: k}
}

// Competitive reports whether a hit could enter the current top k.
func (t *TopK) Competitive(h Hit) bool {
	return len(t.h.hits) < t.k || t.h.less(h, t.h.hits[0])
}

func (t *TopK) Collect(h Hit) {
	if t.k <= 0 || !t.Competitive(h) {
		return
	}
	heap.Push(&t.h, h)
	if t.h.Len() > t.k {
		heap.Pop(&t.h)
	}
}

// Results drains the collector, best first.
func (t *TopK) Results() []Hit {
	result := make([]Hit, t.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&t.h).(Hit)
	}
	return result
}

// hitHeap keeps the worst retained hit on top.
type hitHeap struct {
	hits []Hit
	less Less
}

func (h hitHeap) Len() int           { return len(h.hits) }
func (h hitHeap) Less(i, j int) bool { return h.less(h.hits[j], h.hits[i]) }
func (h hitHeap) Swap(i, j int)      { h.hits[i], h.hits[j] = h.hits[j], h.hits[i] }

func (h *hitHeap) Push(x any) {
	h.hits = append(h.hits, x.(Hit))
}

func (h *hitHeap) Pop() any {
	old := h.hits
	n := len(old)
	item := old[n-1]
	h.hits = old[:n-1]
	return item
}

// Merge k-way merges lists that are each sorted best first into the k
// best hits overall.
func Merge(lists [][]Hit, k int, less Less) []Hit {
	c := &cursors{less: less}
	for _, l := range lists {
		if len(l) > 0 {
			c.items = append(c.items, l)
		}
	}
	heap.Init(c)
	var out []Hit
	for c.Len() > 0 && len(out) < k {
		head := c.items[0]
		out = append(out, head[0])
		if len(head) == 1 {
			heap.Pop(c)
		} else {
			c.items[0] = head[1:]
			heap.Fix(c, 0)
		}
	}
	return out
}

// cursors orders the remaining tails of each list by their head.
type cursors struct {
	items [][]Hit
	less  Less
}

func (c cursors) Len() int           { return len(c.items) }
func (c cursors) Less(i, j int) bool { return c.less(c.items[i][0], c.items[j][0]) }
func (c cursors) Swap(i, j int)      { c.items[i], c.items[j] = c.items[j], c.items[i] }

func (c *cursors) Push(x any) { c.items = append(c.items, x.([]Hit)) }

func (c *cursors) Pop() any {
	old := c.items
	n := len(old)
	item := old[n-1]
	c.items = old[:n-1]
	return item
}
