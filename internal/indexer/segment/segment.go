// Package segment holds the immutable unit of the inverted index: a sorted
// term dictionary with positional postings, stored fields, field lengths
// and term vectors. A Leaf pairs a segment with its live-docs bitmap and
// doc base inside a reader snapshot.
package segment

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
)

// fieldTerms is the dictionary of one field. terms is sorted and
// postings[i] belongs to terms[i].
type fieldTerms struct {
	terms    []string
	postings []index.PostingList
}

func (f *fieldTerms) find(text string) (int, bool) {
	i := sort.SearchStrings(f.terms, text)
	return i, i < len(f.terms) && f.terms[i] == text
}

// Segment is immutable once built.
type Segment struct {
	id      string
	maxDoc  uint32
	fields  map[string]*fieldTerms
	names   []string
	stored  [][]document.Field
	norms   map[string][]uint32
	stats   map[string]index.FieldStats
	vectors []map[string]index.TermVector
	size    int64
}

// New seals flushed buffer content into a Segment.
func New(id string, f *index.Flushed) *Segment {
	s := &Segment{
		id:      id,
		maxDoc:  f.MaxDoc,
		fields:  make(map[string]*fieldTerms),
		stored:  f.Stored,
		norms:   f.Norms,
		vectors: f.Vectors,
	}
	for _, e := range f.Terms {
		ft, ok := s.fields[e.Term.Field]
		if !ok {
			ft = &fieldTerms{}
			s.fields[e.Term.Field] = ft
		}
		ft.terms = append(ft.terms, e.Term.Text)
		ft.postings = append(ft.postings, e.Postings)
		s.size += int64(len(e.Term.Text)) + int64(len(e.Postings))*16
	}
	s.finish()
	return s
}

func (s *Segment) finish() {
	s.names = make([]string, 0, len(s.fields))
	for name, ft := range s.fields {
		s.names = append(s.names, name)
		if !sort.StringsAreSorted(ft.terms) {
			sort.Sort(byTerm{ft})
		}
	}
	sort.Strings(s.names)
	if s.norms == nil {
		s.norms = make(map[string][]uint32)
	}
	s.stats = index.ComputeFieldStats(s.norms)
	for _, doc := range s.stored {
		for _, f := range doc {
			s.size += int64(len(f.Name) + len(f.Value))
		}
	}
}

type byTerm struct{ f *fieldTerms }

func (b byTerm) Len() int           { return len(b.f.terms) }
func (b byTerm) Less(i, j int) bool { return b.f.terms[i] < b.f.terms[j] }
func (b byTerm) Swap(i, j int) {
	b.f.terms[i], b.f.terms[j] = b.f.terms[j], b.f.terms[i]
	b.f.postings[i], b.f.postings[j] = b.f.postings[j], b.f.postings[i]
}

func (s *Segment) ID() string { return s.id }

func (s *Segment) MaxDoc() int { return int(s.maxDoc) }

// Fields lists indexed field names in order.
func (s *Segment) Fields() []string { return s.names }

// SizeBytes is an estimate of the in-memory footprint.
func (s *Segment) SizeBytes() int64 { return s.size }

// TermCount is the number of distinct (field, text) terms.
func (s *Segment) TermCount() int {
	n := 0
	for _, ft := range s.fields {
		n += len(ft.terms)
	}
	return n
}

// Postings returns the posting list of a term, or nil.
func (s *Segment) Postings(field, text string) index.PostingList {
	ft, ok := s.fields[field]
	if !ok {
		return nil
	}
	i, found := ft.find(text)
	if !found {
		return nil
	}
	return ft.postings[i]
}

// Terms returns an enumerator over the dictionary of field.
func (s *Segment) Terms(field string) *TermsEnum {
	return &TermsEnum{ft: s.fields[field], i: -1}
}

func (s *Segment) storedFields(doc int) []document.Field {
	if doc < 0 || doc >= len(s.stored) {
		return nil
	}
	return s.stored[doc]
}

func (s *Segment) fieldLength(field string, doc int) uint32 {
	n := s.norms[field]
	if doc < 0 || doc >= len(n) {
		return 0
	}
	return n[doc]
}

func (s *Segment) termVector(doc int, field string) (index.TermVector, bool) {
	if doc < 0 || doc >= len(s.vectors) {
		return nil, false
	}
	tv, ok := s.vectors[doc][field]
	return tv, ok
}

// TermsEnum iterates a field's dictionary in lexicographic order. A fresh
// enum is unpositioned; call Next or SeekCeil first.
type TermsEnum struct {
	ft *fieldTerms
	i  int
}

// Next advances to the next term.
func (e *TermsEnum) Next() bool {
	if e.ft == nil {
		return false
	}
	if e.i < len(e.ft.terms) {
		e.i++
	}
	return e.i < len(e.ft.terms)
}

// SeekCeil positions on the first term >= text. It reports false when no
// such term exists.
func (e *TermsEnum) SeekCeil(text string) bool {
	if e.ft == nil {
		return false
	}
	e.i = sort.SearchStrings(e.ft.terms, text)
	return e.i < len(e.ft.terms)
}

// SeekExact positions on text if present.
func (e *TermsEnum) SeekExact(text string) bool {
	if e.ft == nil {
		return false
	}
	i, ok := e.ft.find(text)
	if ok {
		e.i = i
	}
	return ok
}

func (e *TermsEnum) Term() string { return e.ft.terms[e.i] }

func (e *TermsEnum) DocFreq() int { return len(e.ft.postings[e.i]) }

// TotalTermFreq sums the term's frequency over all documents.
func (e *TermsEnum) TotalTermFreq() int64 {
	var n int64
	for _, p := range e.ft.postings[e.i] {
		n += int64(p.Frequency)
	}
	return n
}

// Postings returns a fresh iterator over the current term's postings.
func (e *TermsEnum) Postings() *index.PostingsIterator {
	return index.NewPostingsIterator(e.ft.postings[e.i])
}
