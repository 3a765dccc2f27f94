package ranker

import (
	"math"
)

const (
	k1 = 1.2
	b  = 0.75
)

// CollectionStats describe one field over a whole reader.
type CollectionStats struct {
	MaxDoc           int64
	DocCount         int64
	SumTotalTermFreq int64
}

// AvgFieldLength is the mean token count of the field over the documents
// that have it.
func (c CollectionStats) AvgFieldLength() float64 {
	if c.DocCount == 0 {
		return 0
	}
	return float64(c.SumTotalTermFreq) / float64(c.DocCount)
}

// TermStats carry a term's document frequency over the reader.
type TermStats struct {
	Text    string
	DocFreq int64
}

// BM25 scores documents with k1 and b. The zero value is not usable; use
// NewBM25 for the standard parameters.
type BM25 struct {
	K1 float64
	B  float64
}

func NewBM25() BM25 {
	return BM25{K1: k1, B: b}
}

// SimScorer is a BM25 scorer bound to one query's statistics.
type SimScorer struct {
	weight float64
	avgLen float64
	k1     float64
	b      float64
}

// Scorer binds the similarity to collection and term statistics. Several
// terms (a phrase) contribute the sum of their IDFs.
func (s BM25) Scorer(boost float64, coll CollectionStats, terms ...TermStats) *SimScorer {
	idf := 0.0
	for _, t := range terms {
		idf += computeIDF(coll.MaxDoc, t.DocFreq)
	}
	return &SimScorer{
		weight: boost * idf,
		avgLen: coll.AvgFieldLength(),
		k1:     s.K1,
		b:      s.B,
	}
}

// Score returns the contribution of freq occurrences in a field of
// fieldLength tokens.
func (s *SimScorer) Score(freq, fieldLength float64) float64 {
	if freq <= 0 {
		return 0
	}
	return s.weight * computeTFNorm(freq, fieldLength, s.avgLen, s.k1, s.b)
}

// IDF is ln(1 + (N - df + 0.5) / (df + 0.5)). It is never negative.
func IDF(totalDocs, docFreq int64) float64 {
	return computeIDF(totalDocs, docFreq)
}

func computeIDF(totalDocs int64, docFreq int64) float64 {
	if docFreq > totalDocs {
		totalDocs = docFreq
	}
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq, docLength, avgDocLength, k1, b float64) float64 {
	lengthRatio := 1.0
	if avgDocLength > 0 {
		lengthRatio = docLength / avgDocLength
	}
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
