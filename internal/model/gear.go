package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// GearMention is a reference to a piece of physical equipment found in a
// guide body. Produced once per document by the extractor; never persisted.
type GearMention struct {
	Item     string
	Category string
	Context  string
}

// GearWithCandidates joins a mention with its ranked catalog matches.
// Products are sorted by similarity descending (ties by ID ascending) and
// already filtered to the configured threshold and cap.
type GearWithCandidates struct {
	Gear     GearMention
	Products []CatalogCandidate
}

var itemFolder = cases.Fold()

// NormalizeItem returns the canonical form of a gear item name used for
// deduplication: NFC-normalized, case-folded, whitespace-trimmed, inner
// whitespace collapsed.
func NormalizeItem(item string) string {
	s := norm.NFC.String(item)
	s = itemFolder.String(s)
	return strings.Join(strings.Fields(s), " ")
}
