package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

func TestParseSort(t *testing.T) {
	s, err := ParseSort("title, -year:numeric,score")
	require.NoError(t, err)
	assert.Equal(t, []SortField{
		{Field: "title", Type: SortString},
		{Field: "year", Type: SortNumeric, Reverse: true},
		{Field: "score", Type: SortScore},
	}, s.Fields)
	assert.Equal(t, "title:string,-year:numeric,score:score", s.String())
	assert.True(t, s.NeedsFields())

	s, err = ParseSort("")
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.False(t, s.NeedsFields())

	_, err = ParseSort("title:date")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = ParseSort("-")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSortCompare(t *testing.T) {
	byYear := NewSort(SortField{Field: "year", Type: SortNumeric})
	old := byYear.Keys(document.New("year", "1999"), 0)
	recent := byYear.Keys(document.New("year", " 2024 "), 0)
	none := byYear.Keys(document.New("title", "x"), 0)
	junk := byYear.Keys(document.New("year", "soon"), 0)

	assert.Negative(t, byYear.Compare(old, recent))
	assert.Positive(t, byYear.Compare(none, old))
	assert.Zero(t, byYear.Compare(none, junk))

	rev := NewSort(SortField{Field: "year", Type: SortNumeric, Reverse: true})
	assert.Positive(t, rev.Compare(old, recent))
	// missing still sorts last
	assert.Positive(t, rev.Compare(none, old))

	byTitle := NewSort(SortField{Field: "title"})
	assert.Negative(t, byTitle.Compare(
		byTitle.Keys(document.New("title", "Amazon"), 0),
		byTitle.Keys(document.New("title", "Nile"), 0),
	))

	byScore := NewSort(SortField{Field: "score", Type: SortScore})
	assert.False(t, byScore.NeedsFields())
	assert.Negative(t, byScore.Compare(byScore.Keys(document.Document{}, 2), byScore.Keys(document.Document{}, 1)))
}
