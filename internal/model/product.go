package model

import (
	"fmt"
	"strconv"
)

// CatalogCandidate is a product record returned by the catalog's semantic
// search as a potential match for a gear mention. Ordered by descending
// similarity; consumed by the augmenter, never mutated.
type CatalogCandidate struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ProductURL string   `json:"product_url"`
	Brand      string   `json:"brand,omitempty"`
	Price      float64  `json:"price,omitempty"`
	Currency   string   `json:"currency,omitempty"`
	Weight     float64  `json:"weight,omitempty"`
	WeightUnit string   `json:"weight_unit,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Rating     float64  `json:"rating,omitempty"`
	Similarity float64  `json:"similarity"`
}

// FormatSimilarity renders the [0,1] similarity score as a percentage with
// one decimal place (0.852 → "85.2%").
func (c CatalogCandidate) FormatSimilarity() string {
	return fmt.Sprintf("%.1f%%", c.Similarity*100)
}

// FormatPrice renders the price with minimal decimals ("$199", "$24.95").
// Non-USD currencies render as "<price> <code>" to avoid a wrong $ prefix.
func (c CatalogCandidate) FormatPrice() string {
	n := strconv.FormatFloat(c.Price, 'f', -1, 64)
	if c.Currency != "" && c.Currency != "USD" {
		return n + " " + c.Currency
	}
	return "$" + n
}
