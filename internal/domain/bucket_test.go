package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketInput_WithDefaults(t *testing.T) {
	in := BucketInput{Name: "Work"}.WithDefaults()
	assert.Equal(t, DefaultBucketColor, in.Color)
	assert.Equal(t, DefaultBucketIcon, in.Icon)

	in = BucketInput{Name: "Work", Color: "blue", Icon: "briefcase"}.WithDefaults()
	assert.Equal(t, "blue", in.Color)
	assert.Equal(t, "briefcase", in.Icon)
}

func TestBucketPatch_Apply(t *testing.T) {
	name := "Renamed"
	b := &Bucket{Name: "Work", Color: "primary", Icon: "briefcase"}

	BucketPatch{Name: &name}.Apply(b)

	assert.Equal(t, "Renamed", b.Name)
	assert.Equal(t, "primary", b.Color)
	assert.Equal(t, "briefcase", b.Icon)
}

func TestParseCountMode(t *testing.T) {
	m, err := ParseCountMode(" Membership ")
	require.NoError(t, err)
	assert.Equal(t, CountMembership, m)

	m, err = ParseCountMode("")
	require.NoError(t, err)
	assert.Equal(t, CountMode(""), m)

	_, err = ParseCountMode("shared")
	assert.Error(t, err)
}

func TestPalette(t *testing.T) {
	assert.True(t, IsBucketColor(DefaultBucketColor))
	assert.True(t, IsBucketIcon(DefaultBucketIcon))
	assert.True(t, IsNoteColor(DefaultNoteColor))
	assert.False(t, IsNoteColor("primary"))
	assert.False(t, IsBucketIcon("sticky"))
}
