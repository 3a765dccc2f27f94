package index

import "slices"

// postings returns a copy of the buffered postings of one term.
func (m *MemoryIndex) postings(field, text string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.index[field][text])
}
