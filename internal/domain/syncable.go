package domain

import "time"

// Timestamps carries the creation and last-modification times shared by
// buckets and notes.
type Timestamps struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
// Call this when creating a new entity.
func (t *Timestamps) InitTimestamps(now time.Time) {
	t.CreatedAt = now
	t.UpdatedAt = now
}

// Touch refreshes UpdatedAt. Every partial update calls this, even when no
// field actually changed.
func (t *Timestamps) Touch(now time.Time) {
	t.UpdatedAt = now
}
