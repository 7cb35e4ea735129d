// ABOUTME: Tests for search intent detection and query extraction.
// ABOUTME: Covers English and Korean phrasings and the short-query fallback.

package websearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		wantHit   bool
		wantQuery string
	}{
		{
			name:      "english search for",
			message:   "search for golang generics tutorial",
			wantHit:   true,
			wantQuery: "golang generics tutorial",
		},
		{
			name:      "english web search about",
			message:   "web search about quantum computing",
			wantHit:   true,
			wantQuery: "quantum computing",
		},
		{
			name:      "english look up",
			message:   "look up the population of Seoul",
			wantHit:   true,
			wantQuery: "the population of Seoul",
		},
		{
			name:      "english search the web",
			message:   "search the web for today's news",
			wantHit:   true,
			wantQuery: "today's news",
		},
		{
			name:      "korean search command",
			message:   "검색해줘 서울 날씨",
			wantHit:   true,
			wantQuery: "서울 날씨",
		},
		{
			name:      "korean find command",
			message:   "찾아줘 맛집 추천",
			wantHit:   true,
			wantQuery: "맛집 추천",
		},
		{
			name:    "plain question has no intent",
			message: "what is the capital of France?",
			wantHit: false,
		},
		{
			name:    "empty message",
			message: "",
			wantHit: false,
		},
		{
			name:      "command only falls back to whole message",
			message:   "look up",
			wantHit:   true,
			wantQuery: "look up",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, query := DetectIntent(tt.message)
			assert.Equal(t, tt.wantHit, hit)
			if tt.wantHit {
				assert.Equal(t, tt.wantQuery, query)
			} else {
				assert.Empty(t, query)
			}
		})
	}
}

func TestResponse_ToContext(t *testing.T) {
	resp := &Response{
		Query: "go generics",
		Results: []Result{
			{Title: "A Tour of Generics", URL: "https://go.dev/tour", Snippet: "intro"},
			{Title: "Generics FAQ", URL: "https://go.dev/faq", Snippet: "answers"},
		},
	}

	ctx := resp.ToContext(5)
	assert.Contains(t, ctx, `"go generics"`)
	assert.Contains(t, ctx, "[1] A Tour of Generics")
	assert.Contains(t, ctx, "[2] Generics FAQ")
	assert.Contains(t, ctx, "https://go.dev/tour")
	assert.Contains(t, ctx, "cite the source URLs")
}

func TestResponse_ToContext_CapsResults(t *testing.T) {
	resp := &Response{Query: "q"}
	for i := 0; i < 10; i++ {
		resp.Results = append(resp.Results, Result{Title: "t", URL: "u", Snippet: "s"})
	}

	ctx := resp.ToContext(3)
	assert.Contains(t, ctx, "[3]")
	assert.NotContains(t, ctx, "[4]")
}

func TestResponse_ToContext_Empty(t *testing.T) {
	resp := &Response{Query: "nothing here"}

	ctx := resp.ToContext(5)
	assert.Contains(t, ctx, "No web search results")
	assert.Contains(t, ctx, "nothing here")
}
