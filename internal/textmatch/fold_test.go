package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	tests := []struct {
		name     string
		haystack string
		needle   string
		want     bool
	}{
		{"exact", "foo", "foo", true},
		{"title case", "Foobar", "foo", true},
		{"upper needle", "we discuss foo today", "FOO", true},
		{"missing", "bar baz", "foo", false},
		{"empty needle", "anything", "", true},
		{"german sharp s", "Straße", "STRASSE", true},
		{"fullwidth", "ｆｏｏ", "foo", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Contains(tt.haystack, tt.needle))
		})
	}
}

func TestMatcher(t *testing.T) {
	m := NewMatcher("Foo")
	assert.True(t, m.Match("no", "has FOO inside"))
	assert.False(t, m.Match("no", "nope"))
	assert.True(t, NewMatcher("").Match())
}
