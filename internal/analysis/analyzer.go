// Package analysis turns field text into token streams. An Analyzer is one
// Tokenizer followed by a chain of Filters; PerField dispatches to a
// different analyzer per field name with an explicit default.
//
// Token streams are iter.Seq values: lazy, finite, and re-runnable by
// ranging over them again. Analysis never fails: empty or odd input yields
// fewer tokens, not an error.
package analysis

import (
	"iter"
)

// Token is a single unit of analyzed text.
type Token struct {
	Text string
	// Start and End are byte offsets of the token in the analyzed text.
	Start int
	End   int
	// PosInc is the distance in positions from the previous token. Zero
	// stacks the token on the previous position (synonyms).
	PosInc int
}

// Tokenizer splits raw text into initial tokens.
type Tokenizer interface {
	Tokenize(text string) iter.Seq[Token]
}

// Filter transforms a token stream.
type Filter interface {
	Filter(in iter.Seq[Token]) iter.Seq[Token]
}

// Analyzer produces the token stream for a field value.
type Analyzer interface {
	Analyze(field, text string) iter.Seq[Token]
}

// TokenizerFunc adapts a function to Tokenizer.
type TokenizerFunc func(text string) iter.Seq[Token]

func (f TokenizerFunc) Tokenize(text string) iter.Seq[Token] { return f(text) }

// FilterFunc adapts a function to Filter.
type FilterFunc func(in iter.Seq[Token]) iter.Seq[Token]

func (f FilterFunc) Filter(in iter.Seq[Token]) iter.Seq[Token] { return f(in) }

// Pipeline is a tokenizer followed by filters applied in order.
type Pipeline struct {
	tokenizer Tokenizer
	filters   []Filter
}

// NewPipeline builds a Pipeline.
func NewPipeline(tokenizer Tokenizer, filters ...Filter) *Pipeline {
	return &Pipeline{tokenizer: tokenizer, filters: filters}
}

// Analyze runs the pipeline over text. The field name is ignored.
func (p *Pipeline) Analyze(_ string, text string) iter.Seq[Token] {
	if text == "" {
		return empty
	}
	seq := p.tokenizer.Tokenize(text)
	for _, f := range p.filters {
		seq = f.Filter(seq)
	}
	return seq
}

// PerField dispatches analysis by field name, falling back to Default.
type PerField struct {
	Default Analyzer
	Fields  map[string]Analyzer
}

// NewPerField builds a PerField analyzer. A nil default means Standard.
func NewPerField(def Analyzer, fields map[string]Analyzer) *PerField {
	if def == nil {
		def = Standard()
	}
	if fields == nil {
		fields = make(map[string]Analyzer)
	}
	return &PerField{Default: def, Fields: fields}
}

// For returns the analyzer used for field.
func (p *PerField) For(field string) Analyzer {
	if a, ok := p.Fields[field]; ok && a != nil {
		return a
	}
	return p.Default
}

func (p *PerField) Analyze(field, text string) iter.Seq[Token] {
	return p.For(field).Analyze(field, text)
}

// Terms collects the token texts produced by a for text.
func Terms(a Analyzer, field, text string) []string {
	var out []string
	for tok := range a.Analyze(field, text) {
		out = append(out, tok.Text)
	}
	return out
}

func empty(func(Token) bool) {}
