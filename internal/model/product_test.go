package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSimilarity(t *testing.T) {
	assert.Equal(t, "85.2%", CatalogCandidate{Similarity: 0.852}.FormatSimilarity())
	assert.Equal(t, "85.0%", CatalogCandidate{Similarity: 0.85}.FormatSimilarity())
	assert.Equal(t, "100.0%", CatalogCandidate{Similarity: 1}.FormatSimilarity())
	assert.Equal(t, "0.0%", CatalogCandidate{}.FormatSimilarity())
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "$199", CatalogCandidate{Price: 199}.FormatPrice())
	assert.Equal(t, "$24.95", CatalogCandidate{Price: 24.95}.FormatPrice())
	assert.Equal(t, "$199", CatalogCandidate{Price: 199, Currency: "USD"}.FormatPrice())
	assert.Equal(t, "179 EUR", CatalogCandidate{Price: 179, Currency: "EUR"}.FormatPrice())
}
