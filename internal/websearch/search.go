// ABOUTME: Web search result types and their context rendering for the model
// ABOUTME: Service interface keeps the concrete search backend swappable

package websearch

import (
	"context"
	"fmt"
	"strings"
)

// Result is a single web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Response holds the results of one search.
type Response struct {
	Query   string
	Results []Result
}

// HasResults reports whether the search returned anything.
func (r *Response) HasResults() bool {
	return len(r.Results) > 0
}

// ToContext renders the results as a context block for the model,
// capped at maxResults entries.
func (r *Response) ToContext(maxResults int) string {
	if len(r.Results) == 0 {
		return fmt.Sprintf("No web search results found for: %q", r.Query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Web search results for %q\n\n", r.Query)

	for i, result := range r.Results {
		if i >= maxResults {
			break
		}
		fmt.Fprintf(&b, "### [%d] %s\n- URL: %s\n- Snippet: %s\n\n", i+1, result.Title, result.URL, result.Snippet)
	}

	b.WriteString("---\nAnswer the user's question using the search results above, and cite the source URLs.")
	return b.String()
}

// Service performs web searches. Implementations must not fail the
// turn: errors are returned for logging but an empty Response is always
// usable.
type Service interface {
	Search(ctx context.Context, query string) (*Response, error)
}
