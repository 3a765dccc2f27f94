// Package document defines the field and document model the writer
// consumes: FieldSpecs grouped in a Schema, and Documents as ordered lists
// of raw string fields.
package document

import (
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

// FieldSpec describes how a field value is treated at index time.
type FieldSpec struct {
	Name             string `yaml:"name" json:"name"`
	Stored           bool   `yaml:"stored" json:"stored"`
	Indexed          bool   `yaml:"indexed" json:"indexed"`
	Tokenized        bool   `yaml:"tokenized" json:"tokenized"`
	StoreTermVectors bool   `yaml:"store_term_vectors" json:"store_term_vectors"`
	// Analyzer names a registered analyzer used for this field instead of
	// the index default. Empty means the default.
	Analyzer string `yaml:"analyzer" json:"analyzer,omitempty"`
}

// TextField is stored, indexed and tokenized.
func TextField(name string) FieldSpec {
	return FieldSpec{Name: name, Stored: true, Indexed: true, Tokenized: true}
}

// StringField is stored and indexed as a single verbatim token.
func StringField(name string) FieldSpec {
	return FieldSpec{Name: name, Stored: true, Indexed: true}
}

// StoredField is kept verbatim but not searchable.
func StoredField(name string) FieldSpec {
	return FieldSpec{Name: name, Stored: true}
}

func (f FieldSpec) validate() error {
	switch {
	case strings.TrimSpace(f.Name) == "":
		return fmt.Errorf("%w: field name is empty", apperrors.ErrSchemaViolation)
	case !utf8.ValidString(f.Name):
		return fmt.Errorf("%w: field name %q is not valid UTF-8", apperrors.ErrSchemaViolation, f.Name)
	case !f.Stored && !f.Indexed:
		return fmt.Errorf("%w: field %q is neither stored nor indexed", apperrors.ErrSchemaViolation, f.Name)
	case f.StoreTermVectors && !f.Indexed:
		return fmt.Errorf("%w: field %q stores term vectors but is not indexed", apperrors.ErrSchemaViolation, f.Name)
	case f.Tokenized && !f.Indexed:
		return fmt.Errorf("%w: field %q is tokenized but not indexed", apperrors.ErrSchemaViolation, f.Name)
	}
	return nil
}

// Schema is an ordered set of field specs.
type Schema struct {
	fields []FieldSpec
	byName map[string]int
}

// NewSchema validates the specs and builds a Schema. Duplicate names are
// rejected.
func NewSchema(fields ...FieldSpec) (*Schema, error) {
	s := &Schema{
		fields: make([]FieldSpec, 0, len(fields)),
		byName: make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if err := f.validate(); err != nil {
			return nil, err
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", apperrors.ErrSchemaViolation, f.Name)
		}
		s.byName[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustSchema is NewSchema that panics on error. Intended for tests and
// package-level schemas.
func MustSchema(fields ...FieldSpec) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Field looks up a spec by name.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	i, ok := s.byName[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i], true
}

// Fields returns the specs in declaration order.
func (s *Schema) Fields() []FieldSpec {
	out := make([]FieldSpec, len(s.fields))
	copy(out, s.fields)
	return out
}

// Validate checks that every field of doc is declared.
func (s *Schema) Validate(doc Document) error {
	for _, f := range doc.Fields {
		if _, ok := s.byName[f.Name]; !ok {
			return &apperrors.UnknownFieldError{Field: f.Name}
		}
	}
	return nil
}

// Field is one name/value pair of a document.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Document is an ordered list of fields. A name may repeat for
// multi-valued fields.
type Document struct {
	Fields []Field `json:"fields"`
}

// New builds a document from alternating name, value arguments.
func New(pairs ...string) Document {
	if len(pairs)%2 != 0 {
		panic("document.New: odd number of arguments")
	}
	d := Document{Fields: make([]Field, 0, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		d.Add(pairs[i], pairs[i+1])
	}
	return d
}

// Add appends a field value.
func (d *Document) Add(name, value string) {
	d.Fields = append(d.Fields, Field{Name: name, Value: value})
}

// Get returns the first value of name, or "" when absent.
func (d Document) Get(name string) string {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Values returns every value of name in insertion order.
func (d Document) Values(name string) []string {
	var out []string
	for _, f := range d.Fields {
		if f.Name == name {
			out = append(out, f.Value)
		}
	}
	return out
}

// Has reports whether the document carries name.
func (d Document) Has(name string) bool {
	for _, f := range d.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Map flattens the document into first-value-per-field form.
func (d Document) Map() map[string]string {
	out := make(map[string]string, len(d.Fields))
	for _, f := range d.Fields {
		if _, ok := out[f.Name]; !ok {
			out[f.Name] = f.Value
		}
	}
	return out
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	fields := make([]Field, len(d.Fields))
	copy(fields, d.Fields)
	return Document{Fields: fields}
}
