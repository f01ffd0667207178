package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTags_RegistryIsClosed(t *testing.T) {
	tags := Tags()
	assert.Len(t, tags, 24)

	seen := map[string]bool{}
	for _, tag := range tags {
		assert.False(t, seen[tag.ID], "duplicate tag %s", tag.ID)
		seen[tag.ID] = true
		assert.Equal(t, tag.ID, NormalizeTag(tag.ID), "registry ids are canonical")
	}

	tags[0].ID = "mutated"
	assert.Equal(t, "link", Tags()[0].ID, "Tags returns a copy")
}

func TestIsKnownTag(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"urgent", true},
		{" Urgent ", true},
		{"TODO", true},
		{"fitness", true},
		{"groceries", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsKnownTag(tt.input))
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{}, NormalizeTags(nil))
	assert.Equal(t, []string{"idea", "work"}, NormalizeTags([]string{"Idea", "", "work", "IDEA"}))
}
