package model

// ProductUse records one product actually inserted into a document, tagged
// with the gear context it was matched against, for auditability.
type ProductUse struct {
	Name       string  `json:"name"`
	URL        string  `json:"url"`
	Context    string  `json:"context,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}

// AugmentationResult is the augmenter's output for one document. When no
// products qualify, AugmentedContent equals the original body and
// TotalProductsAdded is zero.
type AugmentationResult struct {
	AugmentedContent   string
	TotalProductsAdded int
	ProductsUsed       []ProductUse
}

// DocStatus is the terminal state of one document within a batch run.
type DocStatus string

const (
	DocEnhanced DocStatus = "enhanced"
	DocSkipped  DocStatus = "skipped"
	DocErrored  DocStatus = "errored"
)

// DocumentResult tags one document with its terminal state. Aggregate run
// statistics are derived purely from the sequence of these results.
type DocumentResult struct {
	Path          string    `json:"path"`
	Status        DocStatus `json:"status"`
	Reason        string    `json:"reason,omitempty"` // skip reason
	Error         string    `json:"error,omitempty"`  // error message when Status == DocErrored
	ProductsAdded int       `json:"products_added"`
	SoftErrors    int       `json:"soft_errors,omitempty"` // degraded catalog searches
}

// RunStatistics accumulates counts across a batch run; never rolled back.
type RunStatistics struct {
	Processed     int `json:"processed"`
	Enhanced      int `json:"enhanced"`
	Skipped       int `json:"skipped"`
	Errors        int `json:"errors"`
	TotalProducts int `json:"total_products"`
}

// Add folds one document result into the statistics.
func (s *RunStatistics) Add(r DocumentResult) {
	s.Processed++
	switch r.Status {
	case DocEnhanced:
		s.Enhanced++
		s.TotalProducts += r.ProductsAdded
	case DocSkipped:
		s.Skipped++
	case DocErrored:
		s.Errors++
	}
}

// AvgProductsPerEnhanced returns the mean number of products inserted per
// enhanced document, or 0 when nothing was enhanced.
func (s RunStatistics) AvgProductsPerEnhanced() float64 {
	if s.Enhanced == 0 {
		return 0
	}
	return float64(s.TotalProducts) / float64(s.Enhanced)
}

// AggregateResults derives run statistics from a sequence of document results.
func AggregateResults(results []DocumentResult) RunStatistics {
	var stats RunStatistics
	for _, r := range results {
		stats.Add(r)
	}
	return stats
}
