// ABOUTME: DuckDuckGo instant answer client, the default search backend
// ABOUTME: Failures return an empty response so turns degrade instead of dying

package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const defaultSearchBase = "https://api.duckduckgo.com"

// DuckDuckGo queries the DuckDuckGo instant answer API.
type DuckDuckGo struct {
	baseURL    string
	maxResults int
	region     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDuckDuckGo creates a search client. maxResults caps how many hits
// one search yields; region biases results (e.g. "kr-kr").
func NewDuckDuckGo(maxResults int, region string, logger *slog.Logger) *DuckDuckGo {
	if maxResults <= 0 {
		maxResults = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DuckDuckGo{
		baseURL:    defaultSearchBase,
		maxResults: maxResults,
		region:     region,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With("component", "websearch"),
	}
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

// Search runs a query. Network or decode failures are logged and return
// an empty response with the error; callers treat it as "no results".
func (d *DuckDuckGo) Search(ctx context.Context, query string) (*Response, error) {
	empty := &Response{Query: query}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")
	if d.region != "" {
		params.Set("kl", d.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return empty, fmt.Errorf("building search request: %w", err)
	}

	d.logger.Info("performing web search", "query", query)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Error("web search failed", "query", query, "error", err)
		return empty, fmt.Errorf("web search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.logger.Error("web search returned error status", "query", query, "status", resp.StatusCode)
		return empty, fmt.Errorf("web search: status %d", resp.StatusCode)
	}

	var payload ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		d.logger.Error("web search response decode failed", "query", query, "error", err)
		return empty, fmt.Errorf("decoding search response: %w", err)
	}

	results := d.collect(&payload)
	d.logger.Info("web search completed", "query", query, "results", len(results))
	return &Response{Query: query, Results: results}, nil
}

// collect flattens the instant answer payload into plain results. The
// abstract, when present, always comes first.
func (d *DuckDuckGo) collect(payload *ddgResponse) []Result {
	var results []Result

	if payload.AbstractText != "" {
		results = append(results, Result{
			Title:   payload.Heading,
			URL:     payload.AbstractURL,
			Snippet: payload.AbstractText,
		})
	}

	var walk func(topics []ddgTopic)
	walk = func(topics []ddgTopic) {
		for _, topic := range topics {
			if len(results) >= d.maxResults {
				return
			}
			if len(topic.Topics) > 0 {
				walk(topic.Topics)
				continue
			}
			if topic.Text == "" || topic.FirstURL == "" {
				continue
			}
			results = append(results, Result{
				Title:   topic.Text,
				URL:     topic.FirstURL,
				Snippet: topic.Text,
			})
		}
	}
	walk(payload.RelatedTopics)

	if len(results) > d.maxResults {
		results = results[:d.maxResults]
	}
	return results
}

var _ Service = (*DuckDuckGo)(nil)
