// ABOUTME: Renders retrieved documents as a bounded context block
// ABOUTME: Whole entries are dropped once the character budget is hit

package rag

import (
	"fmt"
	"strings"
)

// DefaultContextChars bounds how much retrieved text is fed to the model.
const DefaultContextChars = 4000

// FormatContext renders results as a context block of at most maxChars
// characters. Entries are included whole in order; the first entry that
// would overflow the budget ends the block.
func FormatContext(results []Result, maxChars int) string {
	if len(results) == 0 {
		return ""
	}
	if maxChars <= 0 {
		maxChars = DefaultContextChars
	}

	var parts []string
	total := 0
	for i, result := range results {
		entry := fmt.Sprintf("[Document %d] (score: %.2f)\n%s\n", i+1, result.Score, result.Content)
		if total+len(entry) > maxChars {
			break
		}
		parts = append(parts, entry)
		total += len(entry)
	}

	if len(parts) == 0 {
		return ""
	}
	return "### Related documents\n\n" + strings.Join(parts, "\n")
}
