package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/trailcraft-group/augment-cli/internal/model"
)

// Augment merges matched candidates into the document body as recommendation
// blocks, one per gear entry with at least one product. Entries keep their
// extraction order so the rewritten guide reads in the same narrative order
// as the original mentions. A product matched by more than one entry is
// inserted only once, under the first entry that matched it. When nothing
// qualifies the body is returned unchanged. Pure: no I/O, persistence is the
// orchestrator's decision.
func Augment(doc model.GuideDocument, gears []model.GearWithCandidates) model.AugmentationResult {
	seen := make(map[string]bool)
	var blocks []string
	var used []model.ProductUse

	for _, entry := range gears {
		var bullets []string
		for _, p := range entry.Products {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			bullets = append(bullets, renderBullet(p))
			used = append(used, model.ProductUse{
				Name:       p.Name,
				URL:        p.ProductURL,
				Context:    entry.Gear.Context,
				Similarity: p.Similarity,
			})
		}
		if len(bullets) == 0 {
			continue
		}
		blocks = append(blocks, "**Recommended "+entry.Gear.Item+":**\n"+strings.Join(bullets, "\n"))
	}

	if len(blocks) == 0 {
		return model.AugmentationResult{AugmentedContent: doc.Body}
	}

	body := strings.TrimRight(doc.Body, "\n")
	return model.AugmentationResult{
		AugmentedContent:   body + "\n\n" + strings.Join(blocks, "\n\n") + "\n",
		TotalProductsAdded: len(used),
		ProductsUsed:       used,
	}
}

// renderBullet renders one product as a markdown bullet. Optional fields are
// appended only when present, so an absent field never leaves a stray
// separator.
func renderBullet(p model.CatalogCandidate) string {
	line := fmt.Sprintf("- [%s](%s)", p.Name, p.ProductURL)

	var parts []string
	if p.Brand != "" {
		parts = append(parts, "by "+p.Brand)
	}
	if p.Price > 0 {
		parts = append(parts, p.FormatPrice())
	}
	if p.Weight > 0 {
		parts = append(parts, strconv.FormatFloat(p.Weight, 'f', -1, 64)+p.WeightUnit)
	}
	if p.Similarity > 0 {
		parts = append(parts, p.FormatSimilarity()+" match")
	}

	if len(parts) > 0 {
		line += " — " + strings.Join(parts, " — ")
	}
	return line
}
