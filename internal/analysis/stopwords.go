package analysis

// EnglishStopWords is the classic English stop set.
var EnglishStopWords = NewStopSet(
	"a", "an", "and", "are", "as", "at", "be", "but", "by",
	"for", "if", "in", "into", "is", "it", "no", "not", "of",
	"on", "or", "such", "that", "the", "their", "then", "there",
	"these", "they", "this", "to", "was", "will", "with",
)

// StopSet is a set of words removed by the Stop filter.
type StopSet map[string]struct{}

// NewStopSet builds a StopSet from words.
func NewStopSet(words ...string) StopSet {
	set := make(StopSet, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Contains reports whether word is in the set.
func (s StopSet) Contains(word string) bool {
	_, ok := s[word]
	return ok
}
