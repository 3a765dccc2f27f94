package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFDecreasesWithDocFreq(t *testing.T) {
	prev := IDF(100, 1)
	for df := int64(2); df <= 100; df++ {
		cur := IDF(100, df)
		assert.Less(t, cur, prev, "df=%d", df)
		assert.Greater(t, cur, 0.0)
		prev = cur
	}
}

func TestIDFKnownValue(t *testing.T) {
	// ln(1 + (5 - 4 + 0.5) / (4 + 0.5))
	assert.InDelta(t, 0.28768, IDF(5, 4), 1e-5)
}

func TestScoreSaturatesInFrequency(t *testing.T) {
	s := NewBM25().Scorer(1, CollectionStats{MaxDoc: 10, DocCount: 10, SumTotalTermFreq: 50}, TermStats{Text: "x", DocFreq: 3})
	prev := 0.0
	var deltas []float64
	for f := 1.0; f <= 10; f++ {
		cur := s.Score(f, 5)
		assert.Greater(t, cur, prev)
		deltas = append(deltas, cur-prev)
		prev = cur
	}
	for i := 1; i < len(deltas); i++ {
		assert.Less(t, deltas[i], deltas[i-1])
	}
	// bounded by (k1+1) * idf
	assert.Less(t, s.Score(1e6, 5), (k1+1)*IDF(10, 3)+1e-9)
}

func TestScorePenalisesLongFields(t *testing.T) {
	s := NewBM25().Scorer(1, CollectionStats{MaxDoc: 10, DocCount: 10, SumTotalTermFreq: 50}, TermStats{DocFreq: 3})
	assert.Greater(t, s.Score(1, 2), s.Score(1, 20))
}

func TestScoreDeterministicAndBoosted(t *testing.T) {
	coll := CollectionStats{MaxDoc: 4, DocCount: 4, SumTotalTermFreq: 12}
	a := NewBM25().Scorer(1, coll, TermStats{DocFreq: 2})
	b := NewBM25().Scorer(2, coll, TermStats{DocFreq: 2})
	assert.Equal(t, a.Score(2, 3), a.Score(2, 3))
	assert.InDelta(t, 2*a.Score(2, 3), b.Score(2, 3), 1e-12)
	assert.Zero(t, a.Score(0, 3))
}

func TestPhraseSumsIDF(t *testing.T) {
	coll := CollectionStats{MaxDoc: 10, DocCount: 10, SumTotalTermFreq: 40}
	one := NewBM25().Scorer(1, coll, TermStats{DocFreq: 2})
	two := NewBM25().Scorer(1, coll, TermStats{DocFreq: 2}, TermStats{DocFreq: 2})
	assert.InDelta(t, 2*one.Score(1, 4), two.Score(1, 4), 1e-12)
}
