package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailcraft-group/augment-cli/internal/model"
)

func gearDoc(body string) model.GuideDocument {
	return model.GuideDocument{ID: "g.md", Body: body}
}

func TestAugment_SingleCandidate(t *testing.T) {
	doc := gearDoc("A lightweight tent is essential.")
	res := Augment(doc, []model.GearWithCandidates{{
		Gear: model.GearMention{Item: "tent", Context: "A lightweight tent is essential."},
		Products: []model.CatalogCandidate{{
			ID:         "p1",
			Name:       "Trail Tent X",
			ProductURL: "https://x/t",
			Price:      199,
			Similarity: 0.85,
		}},
	}})

	assert.Equal(t, 1, res.TotalProductsAdded)
	assert.Contains(t, res.AugmentedContent, "**Recommended tent:**")
	assert.Contains(t, res.AugmentedContent, "Trail Tent X")
	assert.Contains(t, res.AugmentedContent, "$199")
	assert.Contains(t, res.AugmentedContent, "85.0%")
	assert.Contains(t, res.AugmentedContent, "A lightweight tent is essential.")

	require.Len(t, res.ProductsUsed, 1)
	assert.Equal(t, "Trail Tent X", res.ProductsUsed[0].Name)
	assert.Equal(t, "A lightweight tent is essential.", res.ProductsUsed[0].Context)
}

func TestAugment_EmptyInputIsIdentity(t *testing.T) {
	doc := gearDoc("Nothing to recommend here.")

	res := Augment(doc, nil)
	assert.Equal(t, doc.Body, res.AugmentedContent)
	assert.Zero(t, res.TotalProductsAdded)
	assert.Empty(t, res.ProductsUsed)
}

func TestAugment_AllEmptyProductsIsIdentity(t *testing.T) {
	doc := gearDoc("Gear was mentioned but nothing matched.")

	res := Augment(doc, []model.GearWithCandidates{
		{Gear: model.GearMention{Item: "tent"}},
		{Gear: model.GearMention{Item: "stove"}},
	})
	assert.Equal(t, doc.Body, res.AugmentedContent)
	assert.Zero(t, res.TotalProductsAdded)
}

func TestAugment_PreservesExtractionOrder(t *testing.T) {
	doc := gearDoc("First a stove, then a tent.")
	res := Augment(doc, []model.GearWithCandidates{
		{
			Gear:     model.GearMention{Item: "stove"},
			Products: []model.CatalogCandidate{{ID: "s1", Name: "Pocket Stove", ProductURL: "https://x/s", Similarity: 0.5}},
		},
		{
			Gear:     model.GearMention{Item: "tent"},
			Products: []model.CatalogCandidate{{ID: "t1", Name: "Trail Tent X", ProductURL: "https://x/t", Similarity: 0.99}},
		},
	})

	stoveIdx := strings.Index(res.AugmentedContent, "**Recommended stove:**")
	tentIdx := strings.Index(res.AugmentedContent, "**Recommended tent:**")
	require.NotEqual(t, -1, stoveIdx)
	require.NotEqual(t, -1, tentIdx)
	// Narrative order, not relevance order.
	assert.Less(t, stoveIdx, tentIdx)
}

func TestAugment_DuplicateProductInsertedOnce(t *testing.T) {
	doc := gearDoc("A tent and a shelter.")
	shared := model.CatalogCandidate{ID: "p1", Name: "Trail Tent X", ProductURL: "https://x/t", Similarity: 0.8}

	res := Augment(doc, []model.GearWithCandidates{
		{Gear: model.GearMention{Item: "tent"}, Products: []model.CatalogCandidate{shared}},
		{Gear: model.GearMention{Item: "shelter"}, Products: []model.CatalogCandidate{shared}},
	})

	assert.Equal(t, 1, res.TotalProductsAdded)
	assert.Equal(t, 1, strings.Count(res.AugmentedContent, "Trail Tent X"))
	// Second entry had nothing left, so its heading is omitted entirely.
	assert.NotContains(t, res.AugmentedContent, "**Recommended shelter:**")
}

func TestAugment_OptionalFieldsOmittedCleanly(t *testing.T) {
	doc := gearDoc("Minimal product data.")
	res := Augment(doc, []model.GearWithCandidates{{
		Gear:     model.GearMention{Item: "headlamp"},
		Products: []model.CatalogCandidate{{ID: "h1", Name: "Beam 300", ProductURL: "https://x/h"}},
	}})

	assert.Contains(t, res.AugmentedContent, "- [Beam 300](https://x/h)\n")
	assert.NotContains(t, res.AugmentedContent, "$")
	assert.NotContains(t, res.AugmentedContent, "by ")
	assert.NotContains(t, res.AugmentedContent, "% match")
}

func TestAugment_AllFieldsRendered(t *testing.T) {
	doc := gearDoc("Full product data.")
	res := Augment(doc, []model.GearWithCandidates{{
		Gear: model.GearMention{Item: "sleeping bag"},
		Products: []model.CatalogCandidate{{
			ID:         "sb1",
			Name:       "Cloud 20",
			ProductURL: "https://x/sb",
			Brand:      "Peakline",
			Price:      249.95,
			Weight:     850,
			WeightUnit: "g",
			Similarity: 0.912,
		}},
	}})

	assert.Contains(t, res.AugmentedContent,
		"- [Cloud 20](https://x/sb) — by Peakline — $249.95 — 850g — 91.2% match")
}

func TestAugment_ResultTriggersGuard(t *testing.T) {
	doc := gearDoc("A tent.")
	res := Augment(doc, []model.GearWithCandidates{{
		Gear:     model.GearMention{Item: "tent"},
		Products: []model.CatalogCandidate{{ID: "p1", Name: "T", ProductURL: "https://x/t", Similarity: 0.5}},
	}})

	augmented := model.GuideDocument{ID: doc.ID, Body: res.AugmentedContent}
	assert.True(t, AlreadyAugmented(augmented))
}
