package segment

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
)

// Merge combines the live docs of leaves into a new segment. Deleted docs
// are dropped and the survivors are renumbered densely, preserving the
// relative order of leaves and of docs within each leaf.
func Merge(id string, leaves []*Leaf) *Segment {
	docMaps := make([][]int32, len(leaves))
	var maxDoc uint32
	for i, l := range leaves {
		m := make([]int32, l.MaxDoc())
		for d := range m {
			if l.IsLive(d) {
				m[d] = int32(maxDoc)
				maxDoc++
			} else {
				m[d] = -1
			}
		}
		docMaps[i] = m
	}

	s := &Segment{
		id:      id,
		maxDoc:  maxDoc,
		fields:  make(map[string]*fieldTerms),
		stored:  make([][]document.Field, 0, maxDoc),
		norms:   make(map[string][]uint32),
		vectors: make([]map[string]index.TermVector, 0, maxDoc),
	}

	for i, l := range leaves {
		seg := l.seg
		for d, nd := range docMaps[i] {
			if nd < 0 {
				continue
			}
			s.stored = append(s.stored, seg.storedFields(d))
			var tv map[string]index.TermVector
			if d < len(seg.vectors) {
				tv = seg.vectors[d]
			}
			s.vectors = append(s.vectors, tv)
		}
		for field, lengths := range seg.norms {
			merged, ok := s.norms[field]
			if !ok {
				merged = make([]uint32, maxDoc)
				s.norms[field] = merged
			}
			for d, nd := range docMaps[i] {
				if nd >= 0 && d < len(lengths) {
					merged[nd] = lengths[d]
				}
			}
		}
	}

	fieldNames := make(map[string]struct{})
	for _, l := range leaves {
		for _, name := range l.seg.names {
			fieldNames[name] = struct{}{}
		}
	}
	for field := range fieldNames {
		ft := mergeField(field, leaves, docMaps)
		if len(ft.terms) > 0 {
			s.fields[field] = ft
		}
	}
	for _, ft := range s.fields {
		for i, term := range ft.terms {
			s.size += int64(len(term)) + int64(len(ft.postings[i]))*16
		}
	}
	s.finish()
	return s
}

func mergeField(field string, leaves []*Leaf, docMaps [][]int32) *fieldTerms {
	termSet := make(map[string]struct{})
	for _, l := range leaves {
		if ft := l.seg.fields[field]; ft != nil {
			for _, t := range ft.terms {
				termSet[t] = struct{}{}
			}
		}
	}
	terms := make([]string, 0, len(termSet))
	for t := range termSet {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	out := &fieldTerms{}
	for _, term := range terms {
		var merged index.PostingList
		for i, l := range leaves {
			for _, p := range l.seg.Postings(field, term) {
				nd := docMaps[i][p.DocID]
				if nd < 0 {
					continue
				}
				p.DocID = uint32(nd)
				merged = append(merged, p)
			}
		}
		if len(merged) == 0 {
			continue
		}
		out.terms = append(out.terms, term)
		out.postings = append(out.postings, merged)
	}
	return out
}
