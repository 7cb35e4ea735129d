// ABOUTME: Search intent detection and query extraction from user messages
// ABOUTME: Matches explicit English and Korean search phrasings

package websearch

import (
	"regexp"
	"strings"
)

var intentPatterns = []string{
	// Korean
	`웹\s*서칭|웹\s*검색`,
	`검색\s*해\s*줘|검색\s*해줘`,
	`찾아\s*줘|찾아줘`,
	`인터넷에서|온라인에서`,
	`최신\s*정보|최근\s*뉴스`,
	`~에\s*대해\s*검색`,
	// English
	`(?:web\s*)?search\s+(?:for|about)`,
	`look\s*up|find\s+(?:information|info)\s+(?:about|on)`,
	`search\s+the\s+(?:web|internet)`,
	`google\s+(?:it|this|that)`,
}

var intentRegex = regexp.MustCompile(`(?i)` + strings.Join(intentPatterns, "|"))

// commandPatterns strip the search-command phrasing itself so only the
// subject of the search remains.
var commandPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)웹\s*서칭\s*해\s*줘\.?\s*`),
	regexp.MustCompile(`(?i)웹\s*검색\s*해\s*줘\.?\s*`),
	regexp.MustCompile(`(?i)검색\s*해\s*줘\.?\s*`),
	regexp.MustCompile(`(?i)찾아\s*줘\.?\s*`),
	regexp.MustCompile(`(?i)인터넷에서\s*`),
	regexp.MustCompile(`(?i)온라인에서\s*`),
	regexp.MustCompile(`(?i)(?:web\s*)?search\s+(?:for|about)\s*`),
	regexp.MustCompile(`(?i)look\s*up\s*`),
	regexp.MustCompile(`(?i)find\s+(?:information|info)\s+(?:about|on)\s*`),
	regexp.MustCompile(`(?i)search\s+the\s+(?:web|internet)\s+(?:for)?\s*`),
	regexp.MustCompile(`(?i)google\s+`),
}

// DetectIntent reports whether a message asks for a web search and, if
// so, the query to run. When stripping the command phrasing leaves too
// little to search on, the whole message becomes the query.
func DetectIntent(message string) (bool, string) {
	if !intentRegex.MatchString(message) {
		return false, ""
	}

	query := message
	for _, pattern := range commandPatterns {
		query = pattern.ReplaceAllString(query, "")
	}
	query = strings.TrimSpace(query)

	if len(query) < 2 {
		query = message
	}
	return true, query
}
