// Package websearch detects search intent in user messages and fetches
// web results to feed the model as context. Detection covers English
// and Korean phrasings; searches are best-effort and never fail a turn.
package websearch
