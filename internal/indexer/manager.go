package indexer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/refcnt"
)

type managedReader struct {
	r   *Reader
	ref *refcnt.Counter
}

// ReaderManager shares one current Reader between concurrent searches and
// swaps it when the index publishes a newer generation. A replaced reader
// is closed once its last search releases it.
type ReaderManager struct {
	idx     *Index
	mu      sync.Mutex
	current atomic.Pointer[managedReader]
}

func NewReaderManager(idx *Index) (*ReaderManager, error) {
	r, err := idx.OpenReader()
	if err != nil {
		return nil, err
	}
	m := &ReaderManager{idx: idx}
	m.current.Store(manage(r))
	return m, nil
}

func manage(r *Reader) *managedReader {
	return &managedReader{r: r, ref: refcnt.New(func() { r.Close() })}
}

// Acquire pins the current reader. The caller must call release exactly
// once when done with it.
func (m *ReaderManager) Acquire() (r *Reader, release func(), err error) {
	for {
		cur := m.current.Load()
		if cur == nil {
			return nil, nil, fmt.Errorf("reader manager: %w", apperrors.ErrClosed)
		}
		if cur.ref.TryAcquire() {
			return cur.r, cur.ref.Release, nil
		}
	}
}

// MaybeRefresh picks up commits made elsewhere and swaps in a reader over
// the newest snapshot. It reports whether the reader changed.
func (m *ReaderManager) MaybeRefresh(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.current.Load()
	if cur == nil {
		return false, fmt.Errorf("reader manager: %w", apperrors.ErrClosed)
	}
	if _, err := m.idx.Refresh(ctx); err != nil {
		return false, err
	}
	next, err := m.idx.Reopen(cur.r)
	if err != nil {
		return false, err
	}
	if next == cur.r {
		return false, nil
	}
	m.current.Store(manage(next))
	cur.ref.Release()
	return true, nil
}

// Close drops the manager's reference. Searches holding the reader finish
// normally.
func (m *ReaderManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur := m.current.Swap(nil); cur != nil {
		cur.ref.Release()
	}
	return nil
}
