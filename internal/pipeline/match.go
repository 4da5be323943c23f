package pipeline

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trailcraft-group/augment-cli/internal/model"
	"github.com/trailcraft-group/augment-cli/pkg/catalog"
)

// overfetchFloor is the minimum number of candidates requested per search so
// the threshold filter has enough raw results to work with.
const overfetchFloor = 10

// Matcher joins gear mentions with ranked catalog candidates.
type Matcher struct {
	catalog     catalog.Client
	threshold   float64
	limit       int
	concurrency int
}

// NewMatcher creates a Matcher. Candidates below threshold are discarded and
// each mention keeps at most limit products. Mentions within one document
// are searched concurrently, at most concurrency at a time.
func NewMatcher(c catalog.Client, threshold float64, limit, concurrency int) *Matcher {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Matcher{
		catalog:     c,
		threshold:   threshold,
		limit:       limit,
		concurrency: concurrency,
	}
}

// Match searches the catalog for every mention and returns the results in
// mention order, plus the number of searches that degraded. A failed search
// degrades its mention to zero candidates; it never fails the document. All
// searches settle before Match returns.
func (m *Matcher) Match(ctx context.Context, mentions []model.GearMention) ([]model.GearWithCandidates, int) {
	results := make([]model.GearWithCandidates, len(mentions))
	softErrors := make([]bool, len(mentions))

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, mention := range mentions {
		g.Go(func() error {
			products, err := m.matchOne(ctx, mention)
			if err != nil {
				zap.L().Warn("catalog search degraded",
					zap.String("item", mention.Item),
					zap.Error(err),
				)
				softErrors[i] = true
				products = nil
			}
			results[i] = model.GearWithCandidates{Gear: mention, Products: products}
			return nil
		})
	}
	_ = g.Wait()

	soft := 0
	for _, degraded := range softErrors {
		if degraded {
			soft++
		}
	}
	return results, soft
}

func (m *Matcher) matchOne(ctx context.Context, mention model.GearMention) ([]model.CatalogCandidate, error) {
	if m.limit <= 0 {
		return nil, nil
	}

	overfetch := m.limit * 3
	if overfetch < overfetchFloor {
		overfetch = overfetchFloor
	}

	resp, err := m.catalog.Search(ctx, mention.Item,
		catalog.WithLimit(overfetch),
		catalog.WithCategory(mention.Category),
	)
	if err != nil {
		return nil, err
	}

	candidates := make([]model.CatalogCandidate, 0, len(resp.Results))
	for _, item := range resp.Results {
		if item.Similarity < m.threshold {
			continue
		}
		candidates = append(candidates, toCandidate(item))
	}

	// Descending similarity, ties broken by id ascending for determinism.
	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].Similarity != candidates[b].Similarity {
			return candidates[a].Similarity > candidates[b].Similarity
		}
		return candidates[a].ID < candidates[b].ID
	})

	if len(candidates) > m.limit {
		candidates = candidates[:m.limit]
	}
	return candidates, nil
}

func toCandidate(item catalog.Item) model.CatalogCandidate {
	return model.CatalogCandidate{
		ID:         item.ID,
		Name:       item.Name,
		ProductURL: item.ProductURL,
		Brand:      item.Brand,
		Price:      item.Price,
		Currency:   item.Currency,
		Weight:     item.Weight,
		WeightUnit: item.WeightUnit,
		Categories: item.Categories,
		Rating:     item.Rating,
		Similarity: item.Similarity,
	}
}
