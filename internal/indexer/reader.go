package indexer

import (
	"fmt"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

// Reader is a point-in-time view of the index. It never observes changes
// committed after it was opened. Doc ids are global: a leaf's DocBase plus
// the segment-local id.
type Reader struct {
	idx    *Index
	snap   *snapshot
	closed atomic.Bool
}

func (r *Reader) Generation() uint64 { return r.snap.generation }

// NumDocs counts live docs.
func (r *Reader) NumDocs() int { return r.snap.leaves.NumDocs() }

// MaxDoc is one more than the largest doc id, deleted docs included.
func (r *Reader) MaxDoc() int { return r.snap.leaves.MaxDoc() }

func (r *Reader) Leaves() []*segment.Leaf { return r.snap.leaves }

func (r *Reader) DocFreq(field, text string) int { return r.snap.leaves.DocFreq(field, text) }

func (r *Reader) FieldStats(field string) index.FieldStats { return r.snap.leaves.FieldStats(field) }

func (r *Reader) Schema() *document.Schema { return r.idx.opts.Schema }

func (r *Reader) locate(docID int) (*segment.Leaf, int, error) {
	if r.closed.Load() {
		return nil, 0, fmt.Errorf("index reader: %w", apperrors.ErrClosed)
	}
	leaf, local, ok := r.snap.leaves.Locate(docID)
	if !ok {
		return nil, 0, fmt.Errorf("doc %d: %w", docID, apperrors.ErrNotFound)
	}
	return leaf, local, nil
}

// StoredFields returns the stored fields of a live doc.
func (r *Reader) StoredFields(docID int) (document.Document, error) {
	leaf, local, err := r.locate(docID)
	if err != nil {
		return document.Document{}, err
	}
	return leaf.StoredFields(local)
}

// TermVector returns the term vector of a live doc. The field must be
// configured to store term vectors.
func (r *Reader) TermVector(docID int, field string) (index.TermVector, error) {
	spec, ok := r.idx.opts.Schema.Field(field)
	if !ok {
		return nil, &apperrors.UnknownFieldError{Field: field}
	}
	if !spec.StoreTermVectors {
		return nil, fmt.Errorf("field %q does not store term vectors: %w", field, apperrors.ErrUnsupportedOperation)
	}
	leaf, local, err := r.locate(docID)
	if err != nil {
		return nil, err
	}
	return leaf.TermVector(local, field)
}

// Close releases the snapshot. Closing twice is a no-op.
func (r *Reader) Close() error {
	if r.closed.CompareAndSwap(false, true) {
		r.snap.ref.Release()
	}
	return nil
}
