package domain

import (
	"fmt"
	"strings"
)

// Bucket is a user-defined category container for notes. A bucket belongs to
// exactly one owner.
type Bucket struct {
	Timestamps
	ID          string `json:"id"`
	OwnerID     string `json:"userId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color"` // one of BucketColors
	Icon        string `json:"icon"`  // one of BucketIcons
}

// BucketWithCount is a bucket plus its derived note count. Never persisted.
type BucketWithCount struct {
	Bucket
	NoteCount int `json:"noteCount"`
}

// BucketInput carries the fields accepted when creating a bucket.
type BucketInput struct {
	Name        string `json:"name" validate:"required,notblank,max=255"`
	Description string `json:"description,omitempty" validate:"max=2000"`
	Color       string `json:"color,omitempty" validate:"omitempty,bucketcolor"`
	Icon        string `json:"icon,omitempty" validate:"omitempty,bucketicon"`
}

// WithDefaults fills the color and icon defaults.
func (in BucketInput) WithDefaults() BucketInput {
	if in.Color == "" {
		in.Color = DefaultBucketColor
	}
	if in.Icon == "" {
		in.Icon = DefaultBucketIcon
	}
	return in
}

// BucketPatch is a partial update. Nil fields are left untouched.
type BucketPatch struct {
	Name        *string `json:"name,omitempty" validate:"omitnil,notblank,max=255"`
	Description *string `json:"description,omitempty" validate:"omitnil,max=2000"`
	Color       *string `json:"color,omitempty" validate:"omitnil,bucketcolor"`
	Icon        *string `json:"icon,omitempty" validate:"omitnil,bucketicon"`
}

// Apply copies the supplied fields onto b. It does not touch timestamps.
func (p BucketPatch) Apply(b *Bucket) {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Color != nil {
		b.Color = *p.Color
	}
	if p.Icon != nil {
		b.Icon = *p.Icon
	}
}

// CountMode selects how BucketWithCount.NoteCount is derived.
type CountMode string

const (
	// CountPrimary counts only notes whose primary bucket is the bucket.
	CountPrimary CountMode = "primary"
	// CountMembership counts primary notes plus notes sharing the bucket.
	CountMembership CountMode = "membership"
)

// ParseCountMode parses a count mode name. The empty string yields "", which
// backends read as "use my default".
func ParseCountMode(s string) (CountMode, error) {
	switch m := CountMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", CountPrimary, CountMembership:
		return m, nil
	default:
		return "", fmt.Errorf("unknown note count mode %q", s)
	}
}
