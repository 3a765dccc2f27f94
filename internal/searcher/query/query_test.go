package query

import (
	"maps"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

var schema = document.MustSchema(
	document.StringField("title"),
	document.TextField("body"),
	document.StoredField("year"),
)

func buildSegment(id string, docs ...document.Document) *segment.Segment {
	m := index.NewMemoryIndex(schema, analysis.Standard())
	for _, d := range docs {
		m.AddDocument(d)
	}
	return segment.New(id, m.Snapshot())
}

func rivers() *segment.Segment {
	return buildSegment("seg_000001",
		document.New("title", "Ganges", "body", "River in India"),
		document.New("title", "Mekong", "body", "This river flows in south Asia"),
		document.New("title", "Amazon", "body", "Rain forest river"),
		document.New("title", "Rhine", "body", "Belongs to Europe"),
		document.New("title", "Nile", "body", "Longest River"),
	)
}

func riverReader() segment.Leaves {
	return segment.Leaves{segment.NewLeaf(rivers(), nil, 0)}
}

func run(t *testing.T, r IndexReader, q Query) map[int]float64 {
	t.Helper()
	w, err := q.CreateWeight(r)
	require.NoError(t, err)
	out := map[int]float64{}
	for _, leaf := range r.Leaves() {
		s := w.Scorer(leaf)
		if s == nil {
			continue
		}
		for d := s.Next(); d != NoMoreDocs; d = s.Next() {
			out[leaf.DocBase()+d] = s.Score()
		}
	}
	return out
}

func docs(hits map[int]float64) []int {
	return slices.Sorted(maps.Keys(hits))
}

func TestTermQuery(t *testing.T) {
	r := riverReader()

	hits := run(t, r, NewTerm("body", "river"))
	assert.Equal(t, []int{0, 1, 2, 4}, docs(hits))
	for _, s := range hits {
		assert.Greater(t, s, 0.0)
	}
	// shorter fields score higher for the same frequency
	assert.Greater(t, hits[4], hits[1])

	assert.Empty(t, run(t, r, NewTerm("body", "River")))
	assert.Empty(t, run(t, r, NewTerm("missing", "river")))
	assert.Equal(t, []int{4}, docs(run(t, r, NewTerm("title", "Nile"))))
}

func TestTermQuerySkipsDeletedDocs(t *testing.T) {
	s := rivers()
	live := segment.AllLive(s)
	live.Remove(1)
	live.Remove(4)
	r := segment.Leaves{segment.NewLeaf(s, live, 0)}

	assert.Equal(t, []int{0, 2}, docs(run(t, r, NewTerm("body", "river"))))
	assert.Equal(t, []int{0, 2, 3}, docs(run(t, r, &MatchAll{})))
}

func TestPrefixQuery(t *testing.T) {
	r := riverReader()
	term := docs(run(t, r, NewTerm("body", "river")))
	prefix := docs(run(t, r, NewPrefix("body", "riv")))
	assert.Equal(t, term, prefix)
	assert.Subset(t, docs(run(t, r, NewPrefix("body", "r"))), term)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, docs(run(t, r, NewPrefix("body", ""))))
	assert.Empty(t, run(t, r, NewPrefix("body", "zz")))
}

func TestWildcardQuery(t *testing.T) {
	r := riverReader()
	assert.Equal(t, []int{0, 1, 2, 4}, docs(run(t, r, NewWildcard("body", "riv*"))))
	assert.Equal(t, []int{0, 1, 2, 4}, docs(run(t, r, NewWildcard("body", "*ver"))))
	assert.Equal(t, []int{2}, docs(run(t, r, NewWildcard("body", "r?in"))))
	assert.Equal(t, []int{1}, docs(run(t, r, NewWildcard("body", "*o?s"))))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, docs(run(t, r, NewWildcard("title", "*"))))

	_, err := NewWildcard("body", `riv\`).CreateWeight(r)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCompileGlob(t *testing.T) {
	cases := []struct {
		pattern string
		prefix  string
		match   []string
		reject  []string
	}{
		{"riv*er", "riv", []string{"river", "riveer", "riv er"}, []string{"rive", "arriver"}},
		{"?x", "", []string{"ax", "éx"}, []string{"x", "abx"}},
		{`a\*b`, "a*b", []string{"a*b"}, []string{"axb"}},
		{"a.b", "a.b", []string{"a.b"}, []string{"axb"}},
	}
	for _, c := range cases {
		re, prefix, err := compileGlob(c.pattern)
		require.NoError(t, err, c.pattern)
		assert.Equal(t, c.prefix, prefix, c.pattern)
		for _, m := range c.match {
			assert.True(t, re.MatchString(m), "%s ~ %s", c.pattern, m)
		}
		for _, m := range c.reject {
			assert.False(t, re.MatchString(m), "%s !~ %s", c.pattern, m)
		}
	}
}

func TestBooleanQuery(t *testing.T) {
	r := riverReader()

	q := (&Boolean{}).AddMust(NewTerm("body", "river")).AddMustNot(NewTerm("body", "longest"))
	assert.Equal(t, []int{0, 1, 2}, docs(run(t, r, q)))

	q = (&Boolean{}).AddShould(NewTerm("body", "india")).AddShould(NewTerm("body", "europe"))
	assert.Equal(t, []int{0, 3}, docs(run(t, r, q)))

	riverOnly := run(t, r, NewTerm("body", "river"))
	q = (&Boolean{}).AddMust(NewTerm("body", "river")).AddShould(NewTerm("body", "south"))
	hits := run(t, r, q)
	assert.Equal(t, []int{0, 1, 2, 4}, docs(hits))
	assert.Greater(t, hits[1], riverOnly[1])
	assert.InDelta(t, riverOnly[2], hits[2], 1e-12)

	q = (&Boolean{}).AddMust(NewTerm("body", "river")).AddMust(NewTerm("body", "rain"))
	assert.Equal(t, []int{2}, docs(run(t, r, q)))

	q = (&Boolean{}).AddMust(NewTerm("body", "river")).AddMust(NewTerm("body", "absent"))
	assert.Empty(t, run(t, r, q))

	q = (&Boolean{}).AddMustNot(NewTerm("body", "river"))
	assert.Empty(t, run(t, r, q))
	assert.Empty(t, run(t, r, &Boolean{}))

	q = &Boolean{
		Should:         []Query{NewTerm("body", "river"), NewTerm("body", "south"), NewTerm("body", "asia")},
		MinShouldMatch: 2,
	}
	assert.Equal(t, []int{1}, docs(run(t, r, q)))

	q = &Boolean{
		Must:           []Query{NewPrefix("body", "")},
		Should:         []Query{NewTerm("body", "river"), NewTerm("body", "rain")},
		MinShouldMatch: 2,
	}
	assert.Equal(t, []int{2}, docs(run(t, r, q)))
}

func TestPhraseQuery(t *testing.T) {
	r := riverReader()
	assert.Equal(t, []int{1}, docs(run(t, r, NewPhrase("body", "south", "asia"))))
	assert.Empty(t, run(t, r, NewPhrase("body", "asia", "south")))
	assert.Equal(t, []int{2}, docs(run(t, r, NewPhrase("body", "rain", "forest", "river"))))

	// "in" is a stop word, so india sits two positions after river
	assert.Empty(t, run(t, r, NewPhrase("body", "river", "india")))
	gap := &Phrase{Field: "body", Terms: []string{"river", "india"}, Positions: []int{0, 2}}
	assert.Equal(t, []int{0}, docs(run(t, r, gap)))

	_, err := (&Phrase{Field: "body", Terms: []string{"a"}, Positions: []int{0, 1}}).CreateWeight(r)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestBoostAndMultipleLeaves(t *testing.T) {
	s1 := rivers()
	s2 := buildSegment("seg_000002",
		document.New("title", "Danube", "body", "River through Europe"),
	)
	r := segment.Leaves{segment.NewLeaf(s1, nil, 0), segment.NewLeaf(s2, nil, s1.MaxDoc())}

	plain := run(t, r, NewTerm("body", "river"))
	assert.Equal(t, []int{0, 1, 2, 4, 5}, docs(plain))
	assert.Equal(t, []int{3, 5}, docs(run(t, r, NewTerm("body", "europe"))))

	boosted := run(t, r, &Boost{Query: NewTerm("body", "river"), Factor: 3})
	for doc, s := range plain {
		assert.InDelta(t, 3*s, boosted[doc], 1e-9)
	}

	_, err := (&Boost{Query: NewTerm("body", "river"), Factor: -1}).CreateWeight(r)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestQueryStrings(t *testing.T) {
	q := &Boolean{
		Must:    []Query{NewTerm("body", "river")},
		Should:  []Query{NewPrefix("title", "Am"), &Boost{Query: NewPhrase("body", "south", "asia"), Factor: 2}},
		MustNot: []Query{NewWildcard("body", "l?ng*")},
	}
	assert.Equal(t, `+body:river title:Am* body:"south asia"^2 -body:l?ng*`, q.String())
	assert.Equal(t, "*:*", (&MatchAll{}).String())
}

func TestQueryStringsEscapeAndMarkGaps(t *testing.T) {
	tests := []struct {
		q    Query
		want string
	}{
		{NewTerm("title", "ab*"), `title:ab\*`},
		{NewPrefix("title", "ab"), `title:ab*`},
		{NewPrefix("title", "a*b"), `title:a\*b*`},
		{NewTerm("title", "rio grande"), `title:rio\ grande`},
		{NewTerm("title", `c:\dir`), `title:c\:\\dir`},
		{NewWildcard("title", `a\*b?`), `title:a\*b?`},
		{NewWildcard("title", "a b*"), `title:a\ b*`},
		{NewTerm("id", "x\xffy"), "id:x\xffy"},
		{NewPhrase("body", "river", "india"), `body:"river india"`},
		{&Phrase{Field: "body", Terms: []string{"river", "india"}, Positions: []int{0, 2}}, `body:"river ? india"`},
		{&Phrase{Field: "body", Terms: []string{"river", "india"}, Positions: []int{3, 6}}, `body:"river ? ? india"`},
		{&Phrase{Field: "body", Terms: []string{"river", "?"}}, `body:"river \?"`},
		{&Phrase{Field: "body", Terms: []string{"big", "large"}, Positions: []int{1, 1}}, `body:"big large"@0,0`},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.String())
		})
	}
}

// sliceScorer iterates fixed doc ids with a score of 1.
type sliceScorer struct {
	ids []int
	i   int
}

func newSliceScorer(ids ...int) *sliceScorer { return &sliceScorer{ids: ids, i: -1} }

func (s *sliceScorer) DocID() int {
	switch {
	case s.i < 0:
		return -1
	case s.i >= len(s.ids):
		return NoMoreDocs
	}
	return s.ids[s.i]
}

func (s *sliceScorer) Next() int {
	s.i++
	return s.DocID()
}

func (s *sliceScorer) Advance(target int) int {
	for s.Next() < target {
	}
	return s.DocID()
}

func (s *sliceScorer) Cost() int64    { return int64(len(s.ids)) }
func (s *sliceScorer) Score() float64 { return 1 }

func drain(s Scorer) []int {
	var out []int
	for d := s.Next(); d != NoMoreDocs; d = s.Next() {
		out = append(out, d)
	}
	return out
}

func TestIterators(t *testing.T) {
	conj := newConjunction([]Scorer{
		newSliceScorer(1, 3, 5, 7, 9, 11),
		newSliceScorer(3, 4, 5, 9, 10, 11, 12),
		newSliceScorer(0, 3, 9, 11),
	})
	assert.Equal(t, []int{3, 9, 11}, drain(conj))

	disj := newDisjunction([]Scorer{newSliceScorer(1, 5), newSliceScorer(2, 5, 8), newSliceScorer()}, 1)
	assert.Equal(t, []int{1, 2, 5, 8}, drain(disj))

	two := newDisjunction([]Scorer{newSliceScorer(1, 5, 9), newSliceScorer(2, 5, 9), newSliceScorer(9)}, 2)
	require.Equal(t, 5, two.Next())
	assert.Equal(t, 2.0, two.Score())
	require.Equal(t, 9, two.Next())
	assert.Equal(t, 3.0, two.Score())
	assert.Equal(t, NoMoreDocs, two.Next())

	excl := &reqExcl{req: newSliceScorer(1, 2, 3, 4, 5), excl: []Scorer{newSliceScorer(2, 4), newSliceScorer(5)}}
	assert.Equal(t, []int{1, 3}, drain(excl))

	opt := &reqOpt{req: newSliceScorer(1, 2, 3), opt: []Scorer{newSliceScorer(2, 3), newSliceScorer(3)}, minMatch: 1}
	require.Equal(t, 2, opt.Next())
	assert.Equal(t, 2.0, opt.Score())
	require.Equal(t, 3, opt.Next())
	assert.Equal(t, 3.0, opt.Score())

	adv := newDisjunction([]Scorer{newSliceScorer(1, 5, 20), newSliceScorer(7, 30)}, 1)
	assert.Equal(t, 7, adv.Advance(6))
	assert.Equal(t, 20, adv.Advance(8))
	assert.Equal(t, 30, adv.Next())
}
