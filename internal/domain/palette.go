package domain

import "slices"

// Defaults applied when a create request leaves a styling field empty.
const (
	DefaultBucketColor = "primary"
	DefaultBucketIcon  = "sticky-note"
	DefaultNoteColor   = "accent"
	DefaultFontFamily  = "Inter"
)

// BucketColors lists the accepted bucket colors.
var BucketColors = []string{"primary", "accent", "green", "blue", "purple", "red", "yellow", "pink"}

// NoteColors lists the accepted note colors.
var NoteColors = []string{"accent", "yellow", "blue", "green", "pink", "purple", "orange"}

// BucketIcons lists the accepted bucket icon keys. The default icon is
// included so that stored defaults always validate.
var BucketIcons = []string{
	DefaultBucketIcon,
	"briefcase", "home", "lightbulb", "shopping-cart", "star", "heart",
	"book", "coffee", "camera", "music", "map-pin", "gift", "folder",
	"archive", "bookmark", "tag", "flag", "badge-dollar-sign",
}

// IsBucketColor reports whether c is a valid bucket color.
func IsBucketColor(c string) bool { return slices.Contains(BucketColors, c) }

// IsNoteColor reports whether c is a valid note color.
func IsNoteColor(c string) bool { return slices.Contains(NoteColors, c) }

// IsBucketIcon reports whether icon is in the bucket icon set.
func IsBucketIcon(icon string) bool { return slices.Contains(BucketIcons, icon) }
