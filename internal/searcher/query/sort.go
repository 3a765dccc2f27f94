package query

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

type SortType int

const (
	SortString SortType = iota
	SortNumeric
	SortScore
)

func (t SortType) String() string {
	switch t {
	case SortNumeric:
		return "numeric"
	case SortScore:
		return "score"
	default:
		return "string"
	}
}

// SortField orders hits by the first stored value of Field. Missing or
// unparsable values sort last in either direction.
type SortField struct {
	Field   string
	Type    SortType
	Reverse bool
}

// Sort is an ordered list of sort keys. Ties on every key break by
// ascending doc id.
type Sort struct {
	Fields []SortField
}

func NewSort(fields ...SortField) *Sort {
	return &Sort{Fields: fields}
}

// NeedsFields reports whether stored fields must be loaded to build keys.
func (s *Sort) NeedsFields() bool {
	if s == nil {
		return false
	}
	for _, f := range s.Fields {
		if f.Type != SortScore {
			return true
		}
	}
	return false
}

func (s *Sort) String() string {
	if s == nil {
		return ""
	}
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		p := f.Field + ":" + f.Type.String()
		if f.Reverse {
			p = "-" + p
		}
		parts[i] = p
	}
	return strings.Join(parts, ",")
}

// ParseSort reads "field[:type]" items separated by commas; a leading '-'
// reverses the order. "score" sorts by relevance descending.
func ParseSort(spec string) (*Sort, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	s := &Sort{}
	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		var f SortField
		if strings.HasPrefix(item, "-") {
			f.Reverse = true
			item = item[1:]
		}
		name, typ, _ := strings.Cut(item, ":")
		if name == "" {
			return nil, fmt.Errorf("sort %q: empty field: %w", spec, apperrors.ErrInvalidInput)
		}
		f.Field = name
		switch typ {
		case "", "string":
			f.Type = SortString
		case "numeric", "number", "int", "float":
			f.Type = SortNumeric
		case "score":
			f.Type = SortScore
		default:
			return nil, fmt.Errorf("sort %q: unknown type %q: %w", spec, typ, apperrors.ErrInvalidInput)
		}
		if name == "score" && typ == "" {
			f.Type = SortScore
		}
		s.Fields = append(s.Fields, f)
	}
	return s, nil
}

// SortValue is one computed key.
type SortValue struct {
	Str     string
	Num     float64
	Missing bool
}

// Keys builds the sort keys of a doc from its stored fields and score.
func (s *Sort) Keys(doc document.Document, score float64) []SortValue {
	keys := make([]SortValue, len(s.Fields))
	for i, f := range s.Fields {
		switch f.Type {
		case SortScore:
			keys[i] = SortValue{Num: score}
		case SortNumeric:
			if !doc.Has(f.Field) {
				keys[i] = SortValue{Missing: true}
				continue
			}
			n, err := strconv.ParseFloat(strings.TrimSpace(doc.Get(f.Field)), 64)
			keys[i] = SortValue{Num: n, Missing: err != nil}
		default:
			keys[i] = SortValue{Str: doc.Get(f.Field), Missing: !doc.Has(f.Field)}
		}
	}
	return keys
}

// Compare orders two key lists. Score keys sort descending unless
// reversed; other keys ascending unless reversed.
func (s *Sort) Compare(a, b []SortValue) int {
	for i, f := range s.Fields {
		x, y := a[i], b[i]
		if x.Missing || y.Missing {
			switch {
			case x.Missing && y.Missing:
				continue
			case x.Missing:
				return 1
			default:
				return -1
			}
		}
		var c int
		switch f.Type {
		case SortScore:
			c = cmp.Compare(y.Num, x.Num)
		case SortNumeric:
			c = cmp.Compare(x.Num, y.Num)
		default:
			c = strings.Compare(x.Str, y.Str)
		}
		if f.Reverse {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}
