// Package catalog provides a client for the product catalog's semantic
// search service.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the catalog search operations used by the pipeline.
type Client interface {
	// Search performs a semantic search for the free-text query and returns
	// items ranked by descending similarity.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// SearchResponse is the parsed search service response.
type SearchResponse struct {
	Results []Item `json:"results"`
	Total   int    `json:"total"`
}

// Item is a single catalog product returned by semantic search.
type Item struct {
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

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	limit     int
	offset    int
	category  string
	minRating float64
}

// WithLimit caps the number of results returned.
func WithLimit(n int) SearchOption {
	return func(o *searchOpts) {
		o.limit = n
	}
}

// WithOffset skips the first n results.
func WithOffset(n int) SearchOption {
	return func(o *searchOpts) {
		o.offset = n
	}
}

// WithCategory restricts results to a catalog category.
func WithCategory(category string) SearchOption {
	return func(o *searchOpts) {
		o.category = category
	}
}

// WithMinRating filters out items rated below the threshold.
func WithMinRating(rating float64) SearchOption {
	return func(o *searchOpts) {
		o.minRating = rating
	}
}

// Option configures the catalog client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new catalog search client. The API key may be empty
// for unauthenticated deployments.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes a request with exponential backoff retries on transient
// failures (429, 500, 502, 503). Returns the response body and status code
// on success, or the last error after exhausting retries.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryReq := req.Clone(ctx)

		resp, err := c.http.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "catalog: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("catalog: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	so := &searchOpts{}
	for _, opt := range opts {
		opt(so)
	}

	params := url.Values{}
	params.Set("q", query)
	if so.limit > 0 {
		params.Set("limit", strconv.Itoa(so.limit))
	}
	if so.offset > 0 {
		params.Set("offset", strconv.Itoa(so.offset))
	}
	if so.category != "" {
		params.Set("category", so.category)
	}
	if so.minRating > 0 {
		params.Set("min_rating", strconv.FormatFloat(so.minRating, 'f', -1, 64))
	}

	reqURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: create search request")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: search request failed")
	}

	// The search service reports "no matching items" as 404/422.
	// Treat both as empty results rather than an error.
	if statusCode == http.StatusNotFound || statusCode == http.StatusUnprocessableEntity {
		return &SearchResponse{}, nil
	}

	if statusCode != http.StatusOK {
		return nil, eris.Errorf("catalog: search unexpected status %d: %s", statusCode, string(body))
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "catalog: unmarshal search response")
	}

	return &result, nil
}
