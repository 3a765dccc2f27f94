package index

import (
	"slices"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
)

// FieldStats are per-field collection statistics used for length
// normalization.
type FieldStats struct {
	DocCount         int   `json:"doc_count"`
	SumTotalTermFreq int64 `json:"sum_ttf"`
}

// VectorTerm is one term of a document's term vector.
type VectorTerm struct {
	Text      string   `json:"t"`
	Freq      uint32   `json:"f"`
	Positions []uint32 `json:"p,omitempty"`
	Offsets   []Offset `json:"o,omitempty"`
}

// TermVector lists the terms of one field of one document, sorted by text.
type TermVector []VectorTerm

// Flushed is the content of a MemoryIndex at flush time, ready to be sealed
// into a segment.
type Flushed struct {
	MaxDoc  uint32
	Terms   []TermEntry
	Stored  [][]document.Field
	Norms   map[string][]uint32
	Vectors []map[string]TermVector
}

// MemoryIndex is the writer's in-progress segment. Document ids are dense
// and assigned in insertion order starting at zero.
type MemoryIndex struct {
	mu       sync.RWMutex
	schema   *document.Schema
	analyzer analysis.Analyzer
	index    map[string]map[string]PostingList
	stored   [][]document.Field
	norms    map[string][]uint32
	vectors  []map[string]TermVector
	docCount int
	size     int64
}

func NewMemoryIndex(schema *document.Schema, analyzer analysis.Analyzer) *MemoryIndex {
	m := &MemoryIndex{schema: schema, analyzer: analyzer}
	m.reset()
	return m
}

type fieldState struct {
	pos        int
	offsetBase int
	length     uint32
}

// AddDocument inverts doc into the buffer and returns its local id. The
// document must already be validated against the schema. Fields whose
// analysis panicked are indexed as empty and reported in recovered.
func (m *MemoryIndex) AddDocument(doc document.Document) (docID uint32, recovered []string) {
	termData := make(map[Term]*Posting)
	states := make(map[string]*fieldState)
	var stored []document.Field

	for _, f := range doc.Fields {
		spec, ok := m.schema.Field(f.Name)
		if !ok {
			continue
		}
		if spec.Stored {
			stored = append(stored, f)
		}
		if !spec.Indexed {
			continue
		}
		st, ok := states[f.Name]
		if !ok {
			st = &fieldState{pos: -1}
			states[f.Name] = st
		}
		tokens, ok := m.tokens(spec, f.Value)
		if !ok {
			recovered = append(recovered, f.Name)
		}
		for _, tok := range tokens {
			st.pos += tok.PosInc
			if st.pos < 0 {
				st.pos = 0
			}
			if tok.PosInc > 0 {
				st.length++
			}
			term := Term{Field: f.Name, Text: tok.Text}
			p, exists := termData[term]
			if !exists {
				p = &Posting{Positions: make([]uint32, 0, 4)}
				termData[term] = p
			}
			p.Frequency++
			p.Positions = append(p.Positions, uint32(st.pos))
			if spec.StoreTermVectors {
				p.Offsets = append(p.Offsets, Offset{
					Start: uint32(st.offsetBase + tok.Start),
					End:   uint32(st.offsetBase + tok.End),
				})
			}
		}
		st.offsetBase += len(f.Value) + 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docID = uint32(m.docCount)
	var vectors map[string]TermVector
	for term, posting := range termData {
		posting.DocID = docID
		fieldIdx, exists := m.index[term.Field]
		if !exists {
			fieldIdx = make(map[string]PostingList)
			m.index[term.Field] = fieldIdx
		}
		fieldIdx[term.Text] = append(fieldIdx[term.Text], *posting)
		m.size += int64(len(term.Field) + len(term.Text) + len(posting.Positions)*4 + len(posting.Offsets)*8 + 32)

		if spec, _ := m.schema.Field(term.Field); spec.StoreTermVectors {
			if vectors == nil {
				vectors = make(map[string]TermVector)
			}
			vectors[term.Field] = append(vectors[term.Field], VectorTerm{
				Text:      term.Text,
				Freq:      posting.Frequency,
				Positions: posting.Positions,
				Offsets:   posting.Offsets,
			})
		}
	}
	for _, tv := range vectors {
		sort.Slice(tv, func(i, j int) bool { return tv[i].Text < tv[j].Text })
	}
	for field, st := range states {
		norms := m.norms[field]
		for len(norms) < int(docID) {
			norms = append(norms, 0)
		}
		m.norms[field] = append(norms, st.length)
	}
	for _, f := range stored {
		m.size += int64(len(f.Name) + len(f.Value))
	}
	m.stored = append(m.stored, stored)
	m.vectors = append(m.vectors, vectors)
	m.docCount++
	return docID, recovered
}

func (m *MemoryIndex) tokens(spec document.FieldSpec, value string) ([]analysis.Token, bool) {
	if !spec.Tokenized {
		if value == "" {
			return nil, true
		}
		return []analysis.Token{{Text: value, Start: 0, End: len(value), PosInc: 1}}, true
	}
	return collect(m.analyzer, spec.Name, value)
}

func collect(a analysis.Analyzer, field, text string) (toks []analysis.Token, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			toks, ok = nil, false
		}
	}()
	for tok := range a.Analyze(field, text) {
		toks = append(toks, tok)
	}
	return toks, true
}

// Snapshot copies the buffer into a Flushed value with the term dictionary
// sorted by (field, text).
func (m *MemoryIndex) Snapshot() *Flushed {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]TermEntry, 0, len(m.index))
	for field, terms := range m.index {
		for text, postings := range terms {
			entries = append(entries, TermEntry{
				Term:     Term{Field: field, Text: text},
				Postings: slices.Clone(postings),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term.Less(entries[j].Term)
	})

	norms := make(map[string][]uint32, len(m.norms))
	for field, n := range m.norms {
		padded := make([]uint32, m.docCount)
		copy(padded, n)
		norms[field] = padded
	}
	return &Flushed{
		MaxDoc:  uint32(m.docCount),
		Terms:   entries,
		Stored:  slices.Clone(m.stored),
		Norms:   norms,
		Vectors: slices.Clone(m.vectors),
	}
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docCount
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *MemoryIndex) reset() {
	m.index = make(map[string]map[string]PostingList)
	m.stored = nil
	m.norms = make(map[string][]uint32)
	m.vectors = nil
	m.docCount = 0
	m.size = 0
}

// ComputeFieldStats derives per-field statistics from field lengths.
func ComputeFieldStats(norms map[string][]uint32) map[string]FieldStats {
	stats := make(map[string]FieldStats, len(norms))
	for field, lengths := range norms {
		var fs FieldStats
		for _, n := range lengths {
			if n > 0 {
				fs.DocCount++
				fs.SumTotalTermFreq += int64(n)
			}
		}
		stats[field] = fs
	}
	return stats
}

