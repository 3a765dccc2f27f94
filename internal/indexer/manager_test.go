package indexer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/storage"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

func TestReaderManagerSwapsAfterCommit(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, nil, testOptions())
	w := openWriter(t, idx)
	addAll(t, w, rivers()[:2])
	require.NoError(t, w.Commit(ctx))

	m, err := NewReaderManager(idx)
	require.NoError(t, err)
	defer m.Close()

	changed, err := m.MaybeRefresh(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	old, releaseOld, err := m.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 2, old.NumDocs())

	addAll(t, w, rivers()[2:])
	require.NoError(t, w.Commit(ctx))
	changed, err = m.MaybeRefresh(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	cur, release, err := m.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 5, cur.NumDocs())
	assert.Equal(t, idx.Generation(), cur.Generation())
	release()

	// the replaced reader serves its in-flight search until released
	assert.Equal(t, []string{"Amazon", "Nile"}, search(t, old, query.NewTerm("body", "river"), query.NewSort(query.SortField{Field: "id"})))
	releaseOld()
	_, err = old.StoredFields(0)
	assert.ErrorIs(t, err, apperrors.ErrClosed)
}

func TestReaderManagerRefreshesFromStorage(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	writerSide := openIndex(t, store, testOptions())
	readerSide := openIndex(t, store, testOptions())

	m, err := NewReaderManager(readerSide)
	require.NoError(t, err)
	defer m.Close()

	w := openWriter(t, writerSide)
	addAll(t, w, rivers())
	require.NoError(t, w.Commit(ctx))

	changed, err := m.MaybeRefresh(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	r, release, err := m.Acquire()
	require.NoError(t, err)
	defer release()
	assert.Equal(t, 5, r.NumDocs())
}

func TestReaderManagerConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, nil, testOptions())
	w := openWriter(t, idx)
	addAll(t, w, rivers())
	require.NoError(t, w.Commit(ctx))

	m, err := NewReaderManager(idx)
	require.NoError(t, err)
	defer m.Close()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				r, release, err := m.Acquire()
				if !assert.NoError(t, err) {
					return
				}
				_, err = r.StoredFields(1 + i%4)
				assert.NoError(t, err)
				release()
			}
		}()
	}
	for range 5 {
		_, err := w.UpdateDocument(ctx, index.Term{Field: "id", Text: "1"}, rivers()[0])
		require.NoError(t, err)
		require.NoError(t, w.Commit(ctx))
		_, err = m.MaybeRefresh(ctx)
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestReaderManagerClosed(t *testing.T) {
	idx := openIndex(t, nil, testOptions())
	m, err := NewReaderManager(idx)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, _, err = m.Acquire()
	assert.ErrorIs(t, err, apperrors.ErrClosed)
	_, err = m.MaybeRefresh(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrClosed)
}
