// Package search is the narrow gateway to the external web search provider.
package search

import (
	"context"
)

// Gateway runs one web search and returns formatted result text suitable
// for prompt injection: numbered entries with title, URL and excerpt.
type Gateway interface {
	Search(ctx context.Context, query string, maxResults int) (string, error)
}
