package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trailcraft-group/augment-cli/internal/model"
	"github.com/trailcraft-group/augment-cli/pkg/catalog"
	catalogmocks "github.com/trailcraft-group/augment-cli/pkg/catalog/mocks"
)

func searchResponse(items ...catalog.Item) *catalog.SearchResponse {
	return &catalog.SearchResponse{Results: items, Total: len(items)}
}

func TestMatch_FiltersBelowThreshold(t *testing.T) {
	c := catalogmocks.NewMockClient(t)
	c.On("Search", mock.Anything, "tent", mock.Anything, mock.Anything).
		Return(searchResponse(
			catalog.Item{ID: "p1", Name: "Trail Tent X", Similarity: 0.85},
			catalog.Item{ID: "p2", Name: "Old Tarp", Similarity: 0.2},
		), nil).Once()

	m := NewMatcher(c, 0.3, 3, 1)
	gears, soft := m.Match(context.Background(), []model.GearMention{{Item: "tent"}})

	assert.Zero(t, soft)
	require.Len(t, gears, 1)
	require.Len(t, gears[0].Products, 1)
	assert.Equal(t, "p1", gears[0].Products[0].ID)
	for _, p := range gears[0].Products {
		assert.GreaterOrEqual(t, p.Similarity, 0.3)
	}
}

func TestMatch_CapsAtLimit(t *testing.T) {
	c := catalogmocks.NewMockClient(t)
	c.On("Search", mock.Anything, "stove", mock.Anything, mock.Anything).
		Return(searchResponse(
			catalog.Item{ID: "p1", Similarity: 0.9},
			catalog.Item{ID: "p2", Similarity: 0.8},
			catalog.Item{ID: "p3", Similarity: 0.7},
			catalog.Item{ID: "p4", Similarity: 0.6},
		), nil).Once()

	m := NewMatcher(c, 0.3, 2, 1)
	gears, _ := m.Match(context.Background(), []model.GearMention{{Item: "stove"}})

	require.Len(t, gears[0].Products, 2)
	assert.Equal(t, "p1", gears[0].Products[0].ID)
	assert.Equal(t, "p2", gears[0].Products[1].ID)
}

func TestMatch_OrdersBySimilarityThenID(t *testing.T) {
	c := catalogmocks.NewMockClient(t)
	c.On("Search", mock.Anything, "pack", mock.Anything, mock.Anything).
		Return(searchResponse(
			catalog.Item{ID: "zzz", Similarity: 0.8},
			catalog.Item{ID: "aaa", Similarity: 0.8},
			catalog.Item{ID: "mmm", Similarity: 0.9},
		), nil).Once()

	m := NewMatcher(c, 0.3, 5, 1)
	gears, _ := m.Match(context.Background(), []model.GearMention{{Item: "pack"}})

	ids := []string{}
	for _, p := range gears[0].Products {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"mmm", "aaa", "zzz"}, ids)
}

func TestMatch_ZeroLimitSkipsSearch(t *testing.T) {
	c := catalogmocks.NewMockClient(t)

	m := NewMatcher(c, 0.3, 0, 1)
	gears, soft := m.Match(context.Background(), []model.GearMention{{Item: "tent"}})

	assert.Zero(t, soft)
	require.Len(t, gears, 1)
	assert.Empty(t, gears[0].Products)
	c.AssertNotCalled(t, "Search")
}

func TestMatch_FailedSearchDegradesToSoftError(t *testing.T) {
	c := catalogmocks.NewMockClient(t)
	c.On("Search", mock.Anything, "tent", mock.Anything, mock.Anything).
		Return(searchResponse(catalog.Item{ID: "p1", Similarity: 0.9}), nil).Once()
	c.On("Search", mock.Anything, "stove", mock.Anything, mock.Anything).
		Return(nil, errors.New("catalog down")).Once()
	c.On("Search", mock.Anything, "headlamp", mock.Anything, mock.Anything).
		Return(searchResponse(catalog.Item{ID: "p2", Similarity: 0.7}), nil).Once()

	m := NewMatcher(c, 0.3, 3, 1)
	gears, soft := m.Match(context.Background(), []model.GearMention{
		{Item: "tent"}, {Item: "stove"}, {Item: "headlamp"},
	})

	assert.Equal(t, 1, soft)
	require.Len(t, gears, 3)
	// The failed mention degrades; its neighbors are unaffected.
	assert.Len(t, gears[0].Products, 1)
	assert.Empty(t, gears[1].Products)
	assert.Len(t, gears[2].Products, 1)
	// Mention order preserved despite concurrent searches.
	assert.Equal(t, "tent", gears[0].Gear.Item)
	assert.Equal(t, "stove", gears[1].Gear.Item)
	assert.Equal(t, "headlamp", gears[2].Gear.Item)
}

func TestMatch_PassesCategoryFilter(t *testing.T) {
	c := catalogmocks.NewMockClient(t)
	c.On("Search", mock.Anything, "tent",
		mock.AnythingOfType("catalog.SearchOption"),
		mock.AnythingOfType("catalog.SearchOption"),
	).Return(searchResponse(), nil).Once()

	m := NewMatcher(c, 0.3, 3, 1)
	gears, _ := m.Match(context.Background(), []model.GearMention{{Item: "tent", Category: "shelter"}})

	assert.Empty(t, gears[0].Products)
}
