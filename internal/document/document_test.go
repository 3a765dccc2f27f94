package document

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

func TestSchemaValidate(t *testing.T) {
	s := MustSchema(StringField("id"), TextField("body"))

	require.NoError(t, s.Validate(New("id", "1", "body", "hello")))

	err := s.Validate(New("id", "1", "title", "x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrSchemaViolation))

	var unknown *apperrors.UnknownFieldError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "title", unknown.Field)
}

func TestNewSchemaRejectsBadSpecs(t *testing.T) {
	tests := []struct {
		name   string
		fields []FieldSpec
	}{
		{"empty name", []FieldSpec{{Name: " ", Stored: true}}},
		{"neither stored nor indexed", []FieldSpec{{Name: "x"}}},
		{"vectors without index", []FieldSpec{{Name: "x", Stored: true, StoreTermVectors: true}}},
		{"duplicate", []FieldSpec{TextField("x"), StringField("x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.fields...)
			require.ErrorIs(t, err, apperrors.ErrSchemaViolation)
		})
	}
}

func TestSchemaFieldsKeepOrder(t *testing.T) {
	s := MustSchema(TextField("b"), StringField("a"), StoredField("c"))
	names := make([]string, 0, 3)
	for _, f := range s.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"b", "a", "c"}, names)

	f, ok := s.Field("a")
	require.True(t, ok)
	assert.False(t, f.Tokenized)
	_, ok = s.Field("zzz")
	assert.False(t, ok)
}

func TestDocumentAccessors(t *testing.T) {
	d := New("tag", "a", "title", "T", "tag", "b")
	assert.Equal(t, "a", d.Get("tag"))
	assert.Equal(t, []string{"a", "b"}, d.Values("tag"))
	assert.True(t, d.Has("title"))
	assert.False(t, d.Has("body"))
	assert.Equal(t, "", d.Get("body"))
	assert.Equal(t, map[string]string{"tag": "a", "title": "T"}, d.Map())

	c := d.Clone()
	c.Fields[0].Value = "changed"
	assert.Equal(t, "a", d.Get("tag"))
}
