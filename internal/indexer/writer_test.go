package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

func TestDocIDStableWhenSegmentFullyDeleted(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, nil, testOptions())
	w := openWriter(t, idx)

	a := document.New("id", "a", "title", "Amazon", "body", "river")
	b := document.New("id", "b", "title", "Nile", "body", "river")

	_, err := w.AddDocument(a)
	require.NoError(t, err)
	require.NoError(t, w.Commit(ctx))

	n, err := w.DeleteTerm(ctx, "id", "a")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	id, err := w.AddDocument(b)
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	require.NoError(t, w.Commit(ctx))

	r := openReader(t, idx)
	assert.Equal(t, 1, r.NumDocs())
	assert.Equal(t, 2, r.MaxDoc())
	doc, err := r.StoredFields(id)
	require.NoError(t, err)
	assert.Equal(t, "Nile", doc.Get("title"))
	_, err = r.StoredFields(0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, []int{1}, docIDs(t, r, query.NewTerm("body", "river")))

	// a merge is what reclaims the empty segment and renumbers
	require.NoError(t, w.ForceMerge(ctx, 1))
	require.NoError(t, w.Commit(ctx))
	merged := openReader(t, idx)
	assert.Equal(t, 1, merged.MaxDoc())
	doc, err = merged.StoredFields(0)
	require.NoError(t, err)
	assert.Equal(t, "Nile", doc.Get("title"))
}

func TestDocIDsAcrossSeveralCommits(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, nil, testOptions())
	w := openWriter(t, idx)

	ids := make(map[string]int)
	for i, d := range rivers() {
		id, err := w.AddDocument(d)
		require.NoError(t, err)
		ids[d.Get("title")] = id
		if i%2 == 1 {
			require.NoError(t, w.Commit(ctx))
			_, err := w.DeleteTerm(ctx, "id", d.Get("id"))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Commit(ctx))

	r := openReader(t, idx)
	for _, title := range []string{"Amazon", "Ganges", "Mekong"} {
		doc, err := r.StoredFields(ids[title])
		require.NoError(t, err, title)
		assert.Equal(t, title, doc.Get("title"))
	}
	for _, title := range []string{"Nile", "Sahara"} {
		_, err := r.StoredFields(ids[title])
		assert.ErrorIs(t, err, apperrors.ErrNotFound, title)
	}
}
