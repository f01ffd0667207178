package domain

import (
	"regexp"
	"slices"
	"strings"
)

// TagDefinition describes one entry of the fixed tag registry.
type TagDefinition struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// tagRegistry is the closed set of tag ids a note may carry, in display order.
var tagRegistry = []TagDefinition{
	{"link", "Link", "Contains important links or references"},
	{"todo", "Todo", "Task or item to be completed"},
	{"urgent", "Urgent", "Requires immediate attention"},
	{"reminder", "Reminder", "Something to remember or follow up on"},
	{"secret", "Secret", "Confidential or private information"},
	{"important", "Important", "High priority or significant content"},
	{"favorite", "Favorite", "Personal favorite or liked content"},
	{"idea", "Idea", "Creative idea or inspiration"},
	{"work", "Work", "Work-related content"},
	{"personal", "Personal", "Personal or private content"},
	{"shopping", "Shopping", "Shopping list or purchase notes"},
	{"meeting", "Meeting", "Meeting notes or discussions"},
	{"project", "Project", "Project-related content"},
	{"reference", "Reference", "Reference material or documentation"},
	{"event", "Event", "Event or appointment related"},
	{"note", "Note", "General note or observation"},
	{"quick", "Quick", "Quick note or temporary content"},
	{"archive", "Archive", "Archived or completed content"},
	{"bookmark", "Bookmark", "Saved for later reference"},
	{"goal", "Goal", "Goal or objective related"},
	{"progress", "Progress", "Progress tracking or updates"},
	{"finance", "Finance", "Financial or money related"},
	{"health", "Health", "Health related content"},
	{"fitness", "Fitness", "Fitness related content"},
}

var tagIndex = func() map[string]TagDefinition {
	m := make(map[string]TagDefinition, len(tagRegistry))
	for _, t := range tagRegistry {
		m[t.ID] = t
	}
	return m
}()

// Tags returns a copy of the registry in display order.
func Tags() []TagDefinition {
	return slices.Clone(tagRegistry)
}

// LookupTag returns the definition for a tag id.
func LookupTag(id string) (TagDefinition, bool) {
	t, ok := tagIndex[NormalizeTag(id)]
	return t, ok
}

// IsKnownTag reports whether id (after normalization) is in the registry.
func IsKnownTag(id string) bool {
	_, ok := LookupTag(id)
	return ok
}

var (
	// Matches anything that is not a lowercase letter or digit.
	nonTagCharRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeTag canonicalizes user input to a registry id.
//
//	" Urgent "  -> "urgent"
//	"TODO!"     -> "todo"
func NormalizeTag(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	return nonTagCharRe.ReplaceAllString(s, "")
}

// NormalizeTags normalizes every tag and removes blanks and duplicates while
// keeping first-seen order. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = NormalizeTag(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
