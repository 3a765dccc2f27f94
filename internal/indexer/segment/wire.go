package segment

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
)

// wireString carries arbitrary bytes through the JSON body. Valid UTF-8 is
// written as a plain string; anything else as {"b": base64} so that
// encoding/json cannot substitute U+FFFD for invalid sequences.
type wireString string

type rawBytes struct {
	B []byte `json:"b"`
}

func (s wireString) MarshalJSON() ([]byte, error) {
	if utf8.ValidString(string(s)) {
		return json.Marshal(string(s))
	}
	return json.Marshal(rawBytes{B: []byte(s)})
}

func (s *wireString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '{' {
		var raw rawBytes
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*s = wireString(raw.B)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = wireString(str)
	return nil
}

type wireField struct {
	Name  string     `json:"name"`
	Value wireString `json:"value"`
}

type wireVectorTerm struct {
	Text      wireString     `json:"t"`
	Freq      uint32         `json:"f"`
	Positions []uint32       `json:"p,omitempty"`
	Offsets   []index.Offset `json:"o,omitempty"`
}

func toWireStored(stored [][]document.Field) [][]wireField {
	out := make([][]wireField, len(stored))
	for i, fields := range stored {
		out[i] = make([]wireField, len(fields))
		for j, f := range fields {
			out[i][j] = wireField{Name: f.Name, Value: wireString(f.Value)}
		}
	}
	return out
}

func fromWireStored(stored [][]wireField) [][]document.Field {
	out := make([][]document.Field, len(stored))
	for i, fields := range stored {
		out[i] = make([]document.Field, len(fields))
		for j, f := range fields {
			out[i][j] = document.Field{Name: f.Name, Value: string(f.Value)}
		}
	}
	return out
}

func toWireVectors(vectors []map[string]index.TermVector) []map[string][]wireVectorTerm {
	if vectors == nil {
		return nil
	}
	out := make([]map[string][]wireVectorTerm, len(vectors))
	for i, byField := range vectors {
		if byField == nil {
			continue
		}
		out[i] = make(map[string][]wireVectorTerm, len(byField))
		for field, tv := range byField {
			terms := make([]wireVectorTerm, len(tv))
			for j, t := range tv {
				terms[j] = wireVectorTerm{Text: wireString(t.Text), Freq: t.Freq, Positions: t.Positions, Offsets: t.Offsets}
			}
			out[i][field] = terms
		}
	}
	return out
}

func fromWireVectors(vectors []map[string][]wireVectorTerm) []map[string]index.TermVector {
	if vectors == nil {
		return nil
	}
	out := make([]map[string]index.TermVector, len(vectors))
	for i, byField := range vectors {
		if byField == nil {
			continue
		}
		out[i] = make(map[string]index.TermVector, len(byField))
		for field, terms := range byField {
			tv := make(index.TermVector, len(terms))
			for j, t := range terms {
				tv[j] = index.VectorTerm{Text: string(t.Text), Freq: t.Freq, Positions: t.Positions, Offsets: t.Offsets}
			}
			out[i][field] = tv
		}
	}
	return out
}
