package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/pkg/errno"
	genericoptions "github.com/wyrdlab/reverie/internal/pkg/options"
	"github.com/wyrdlab/reverie/pkg/utils/json"
)

// BraveSearch implements Gateway against the Brave Search API.
type BraveSearch struct {
	apiKey  string
	baseURL string
	country string
	lang    string
	client  *http.Client
}

// NewBraveSearch creates a gateway from options. A missing API key is not
// an immediate error; searches fail at call time so the server can still
// start without search configured.
func NewBraveSearch(opts *genericoptions.SearchOptions) *BraveSearch {
	return &BraveSearch{
		apiKey:  opts.ResolveAPIKey(),
		baseURL: opts.BaseURL,
		country: opts.Country,
		lang:    opts.Lang,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search queries Brave and formats up to maxResults entries.
func (b *BraveSearch) Search(ctx context.Context, query string, maxResults int) (string, error) {
	if b.apiKey == "" {
		return "", errno.ErrSearchDisabled
	}
	if maxResults < 1 {
		maxResults = 5
	}
	if maxResults > 20 {
		maxResults = 20
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprintf("%d", maxResults))
	if b.country != "" {
		params.Set("country", b.country)
	}
	if b.lang != "" {
		params.Set("search_lang", b.lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("search API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read search response: %w", err)
	}

	var parsed braveResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}

	return formatResults(query, parsed, maxResults), nil
}

// formatResults renders results as numbered entries.
func formatResults(query string, parsed braveResponse, maxResults int) string {
	results := parsed.Web.Results
	if len(results) == 0 {
		return fmt.Sprintf("No web results found for %q.", query)
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Description != "" {
			fmt.Fprintf(&b, "   %s\n", r.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
