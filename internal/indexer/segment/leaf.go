package segment

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

// AllLive returns a bitmap with every doc of s marked live.
func AllLive(s *Segment) *roaring.Bitmap {
	live := roaring.New()
	live.AddRange(0, uint64(s.maxDoc))
	return live
}

// Leaf is a per-segment view inside a reader snapshot. Local doc ids run
// from 0 to MaxDoc-1; global ids are DocBase plus the local id. The live
// bitmap must not be mutated once the leaf is published.
type Leaf struct {
	seg     *Segment
	live    *roaring.Bitmap
	docBase int
	numDocs int
}

func NewLeaf(seg *Segment, live *roaring.Bitmap, docBase int) *Leaf {
	if live == nil {
		live = AllLive(seg)
	}
	return &Leaf{seg: seg, live: live, docBase: docBase, numDocs: int(live.GetCardinality())}
}

func (l *Leaf) Segment() *Segment { return l.seg }

func (l *Leaf) DocBase() int { return l.docBase }

func (l *Leaf) MaxDoc() int { return int(l.seg.maxDoc) }

func (l *Leaf) NumDocs() int { return l.numDocs }

// HasDeletions reports whether any doc of the segment is deleted.
func (l *Leaf) HasDeletions() bool { return l.numDocs < int(l.seg.maxDoc) }

// LiveDocs exposes the bitmap for read-only use.
func (l *Leaf) LiveDocs() *roaring.Bitmap { return l.live }

func (l *Leaf) IsLive(doc int) bool {
	return doc >= 0 && doc < int(l.seg.maxDoc) && l.live.Contains(uint32(doc))
}

func (l *Leaf) Terms(field string) *TermsEnum { return l.seg.Terms(field) }

// Postings returns an iterator over a term's postings, deleted docs
// included, or nil when the term is absent.
func (l *Leaf) Postings(field, text string) *index.PostingsIterator {
	list := l.seg.Postings(field, text)
	if list == nil {
		return nil
	}
	return index.NewPostingsIterator(list)
}

func (l *Leaf) DocFreq(field, text string) int {
	return len(l.seg.Postings(field, text))
}

func (l *Leaf) FieldLength(field string, doc int) uint32 {
	return l.seg.fieldLength(field, doc)
}

func (l *Leaf) FieldStats(field string) index.FieldStats {
	return l.seg.stats[field]
}

// StoredFields returns the stored copy of a live local doc.
func (l *Leaf) StoredFields(doc int) (document.Document, error) {
	if !l.IsLive(doc) {
		return document.Document{}, fmt.Errorf("doc %d: %w", l.docBase+doc, apperrors.ErrNotFound)
	}
	fields := l.seg.storedFields(doc)
	out := make([]document.Field, len(fields))
	copy(out, fields)
	return document.Document{Fields: out}, nil
}

// TermVector returns the stored vector of a live local doc. A doc with no
// tokens in field yields an empty vector.
func (l *Leaf) TermVector(doc int, field string) (index.TermVector, error) {
	if !l.IsLive(doc) {
		return nil, fmt.Errorf("doc %d: %w", l.docBase+doc, apperrors.ErrNotFound)
	}
	tv, _ := l.seg.termVector(doc, field)
	return tv, nil
}

// Leaves is an ordered leaf list, i.e. the composite view a reader or the
// writer's working set exposes to queries.
type Leaves []*Leaf

// Leaves returns ls so a bare leaf list can be searched like a reader.
func (ls Leaves) Leaves() []*Leaf { return ls }

func (ls Leaves) MaxDoc() int {
	n := 0
	for _, l := range ls {
		n += l.MaxDoc()
	}
	return n
}

func (ls Leaves) NumDocs() int {
	n := 0
	for _, l := range ls {
		n += l.NumDocs()
	}
	return n
}

// DocFreq sums a term's document frequency over all leaves. Deleted docs
// are counted until a merge drops them.
func (ls Leaves) DocFreq(field, text string) int {
	n := 0
	for _, l := range ls {
		n += l.DocFreq(field, text)
	}
	return n
}

func (ls Leaves) FieldStats(field string) index.FieldStats {
	var fs index.FieldStats
	for _, l := range ls {
		s := l.FieldStats(field)
		fs.DocCount += s.DocCount
		fs.SumTotalTermFreq += s.SumTotalTermFreq
	}
	return fs
}

// Locate maps a global doc id to its leaf and local id.
func (ls Leaves) Locate(docID int) (*Leaf, int, bool) {
	for _, l := range ls {
		if docID >= l.docBase && docID < l.docBase+l.MaxDoc() {
			return l, docID - l.docBase, true
		}
	}
	return nil, 0, false
}
