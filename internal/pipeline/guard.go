package pipeline

import (
	"strings"

	"github.com/trailcraft-group/augment-cli/internal/model"
)

// augmentMarker is the heading prefix every recommendation block starts with.
// Its presence in a body means the document was already augmented (or an
// author hand-wrote an identically formatted block; skipping those is the
// safer failure mode than inserting duplicates).
const augmentMarker = "**Recommended "

// SentinelKey is the pipeline-owned frontmatter key set on every augmented
// write. Unlike the body marker it survives later manual edits to the
// recommendation blocks.
const SentinelKey = "gear_recommendations"

// AlreadyAugmented reports whether the document has been through the
// pipeline before, via the frontmatter sentinel or the body marker.
func AlreadyAugmented(doc model.GuideDocument) bool {
	if v, ok := doc.Frontmatter[SentinelKey]; ok && v != "" && v != "false" {
		return true
	}
	return strings.Contains(doc.Body, augmentMarker)
}

// countRecommendedProducts counts the bullet lines inside recommendation
// blocks, the same unit the extract path reports as products added. Bullets
// outside a recommendation block do not count; a blank line or any non-bullet
// line ends the block.
func countRecommendedProducts(body string) int {
	count := 0
	inBlock := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, augmentMarker):
			inBlock = true
		case inBlock && strings.HasPrefix(trimmed, "- "):
			count++
		default:
			inBlock = false
		}
	}
	return count
}
