package scoring

import (
	"strings"

	"golang.org/x/text/width"
)

// Normalize prepares text for keyword matching: half-width folding (the
// catalog mixes full-width and half-width forms), lower casing, and
// whitespace collapsing. Both corpus terms and job fields pass through this
// before comparison.
func Normalize(s string) string {
	s = width.Fold.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}
