package index

import (
	"math"
	"sort"
)

// NoMoreDocs is returned by iterators once they are exhausted.
const NoMoreDocs = math.MaxInt32

// Offset is the byte range of one occurrence in the field text.
type Offset struct {
	Start uint32 `json:"s"`
	End   uint32 `json:"e"`
}

// Posting records the occurrences of a term in one document.
type Posting struct {
	DocID     uint32   `json:"d"`
	Frequency uint32   `json:"f"`
	Positions []uint32 `json:"p,omitempty"`
	Offsets   []Offset `json:"o,omitempty"`
}

// PostingList is ordered by ascending DocID.
type PostingList []Posting

// Term addresses the inverted index. Terms order by field, then text.
type Term struct {
	Field string `json:"field"`
	Text  string `json:"text"`
}

func (t Term) Less(o Term) bool {
	if t.Field != o.Field {
		return t.Field < o.Field
	}
	return t.Text < o.Text
}

func (t Term) String() string {
	return t.Field + ":" + t.Text
}

type TermEntry struct {
	Term     Term
	Postings PostingList
}

// PostingsIterator walks a PostingList. DocID is -1 before the first call
// to Next or Advance.
type PostingsIterator struct {
	list PostingList
	i    int
	doc  int
}

func NewPostingsIterator(list PostingList) *PostingsIterator {
	return &PostingsIterator{list: list, i: -1, doc: -1}
}

func (it *PostingsIterator) DocID() int { return it.doc }

func (it *PostingsIterator) Next() int {
	it.i++
	return it.position()
}

// Advance moves to the first document >= target using a galloping search
// from the current position.
func (it *PostingsIterator) Advance(target int) int {
	if it.doc >= target {
		return it.doc
	}
	lo := it.i + 1
	if lo >= len(it.list) {
		it.i = len(it.list)
		return it.position()
	}
	step := 1
	hi := lo
	for hi < len(it.list) && int(it.list[hi].DocID) < target {
		lo = hi + 1
		hi += step
		step <<= 1
	}
	if hi > len(it.list) {
		hi = len(it.list)
	}
	it.i = lo + sort.Search(hi-lo, func(k int) bool {
		return int(it.list[lo+k].DocID) >= target
	})
	return it.position()
}

func (it *PostingsIterator) position() int {
	if it.i >= len(it.list) {
		it.i = len(it.list)
		it.doc = NoMoreDocs
		return it.doc
	}
	it.doc = int(it.list[it.i].DocID)
	return it.doc
}

func (it *PostingsIterator) Cost() int64 { return int64(len(it.list)) }

// Posting returns the current posting. Only valid while positioned.
func (it *PostingsIterator) Posting() *Posting { return &it.list[it.i] }

func (it *PostingsIterator) Freq() int { return int(it.list[it.i].Frequency) }

func (it *PostingsIterator) Positions() []uint32 { return it.list[it.i].Positions }
