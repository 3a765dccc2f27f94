package analysis

import (
	"fmt"
	"sort"
	"sync"
)

// Standard is UAX#29 words, lower-cased, English stop words removed.
func Standard() *Pipeline {
	return NewPipeline(StandardTokenizer{}, Lowercase(), Stop(EnglishStopWords))
}

// Simple is letter runs, lower-cased.
func Simple() *Pipeline {
	return NewPipeline(LetterTokenizer{}, Lowercase())
}

// StopAnalyzer is letter runs, lower-cased, English stop words removed.
func StopAnalyzer() *Pipeline {
	return NewPipeline(LetterTokenizer{}, Lowercase(), Stop(EnglishStopWords))
}

// Whitespace splits on whitespace and keeps case.
func Whitespace() *Pipeline {
	return NewPipeline(WhitespaceTokenizer{})
}

// Keyword indexes the whole value as one token.
func Keyword() *Pipeline {
	return NewPipeline(KeywordTokenizer{})
}

// English is Standard followed by Porter stemming.
func English() *Pipeline {
	return NewPipeline(StandardTokenizer{}, Lowercase(), Stop(EnglishStopWords), PorterStem())
}

var tokenizerFactories = map[string]func() Tokenizer{
	"standard":   func() Tokenizer { return StandardTokenizer{} },
	"letter":     func() Tokenizer { return LetterTokenizer{} },
	"whitespace": func() Tokenizer { return WhitespaceTokenizer{} },
	"keyword":    func() Tokenizer { return KeywordTokenizer{} },
}

var filterFactories = map[string]func() Filter{
	"lowercase":      Lowercase,
	"stop":           func() Filter { return Stop(EnglishStopWords) },
	"porterstem":     PorterStem,
	"capitalization": Capitalization,
}

// Builder assembles a custom Pipeline from component names. The first
// unknown name is reported by Build.
type Builder struct {
	tokenizer Tokenizer
	filters   []Filter
	err       error
}

// NewBuilder starts an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Tokenizer selects the tokenizer by name.
func (b *Builder) Tokenizer(name string) *Builder {
	factory, ok := tokenizerFactories[name]
	if !ok {
		b.fail(fmt.Errorf("unknown tokenizer %q", name))
		return b
	}
	b.tokenizer = factory()
	return b
}

// Filter appends a filter by name.
func (b *Builder) Filter(name string) *Builder {
	factory, ok := filterFactories[name]
	if !ok {
		b.fail(fmt.Errorf("unknown token filter %q", name))
		return b
	}
	b.filters = append(b.filters, factory())
	return b
}

// With appends an already constructed filter.
func (b *Builder) With(f Filter) *Builder {
	b.filters = append(b.filters, f)
	return b
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build returns the assembled Pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.tokenizer == nil {
		return nil, fmt.Errorf("analyzer requires a tokenizer")
	}
	return NewPipeline(b.tokenizer, b.filters...), nil
}

// Registry resolves analyzers by name. The zero value is not usable; use
// NewRegistry, which pre-registers the built-in analyzers.
type Registry struct {
	mu        sync.RWMutex
	analyzers map[string]Analyzer
}

// NewRegistry returns a Registry holding the built-in analyzers.
func NewRegistry() *Registry {
	return &Registry{
		analyzers: map[string]Analyzer{
			"standard":   Standard(),
			"simple":     Simple(),
			"stop":       StopAnalyzer(),
			"whitespace": Whitespace(),
			"keyword":    Keyword(),
			"english":    English(),
		},
	}
}

// Register adds or replaces a named analyzer.
func (r *Registry) Register(name string, a Analyzer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyzers[name] = a
}

// Lookup returns the analyzer registered under name.
func (r *Registry) Lookup(name string) (Analyzer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.analyzers[name]
	if !ok {
		return nil, fmt.Errorf("unknown analyzer %q", name)
	}
	return a, nil
}

// Names lists registered analyzer names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.analyzers))
	for name := range r.analyzers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
