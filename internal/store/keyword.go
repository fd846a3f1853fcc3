package store

import "strings"

// wholeWordCount counts whole-word, case-insensitive occurrences of word in
// content. Used as the store's exact-match reference implementation that
// backs KeywordMatchCounts; the bleve index handles the heavier
// SearchKeyword path with stemming/analysis instead.
func wholeWordCount(content, word string) int {
	lower := strings.ToLower(content)
	needle := strings.ToLower(word)
	if needle == "" {
		return 0
	}
	count := 0
	idx := 0
	for {
		pos := strings.Index(lower[idx:], needle)
		if pos < 0 {
			return count
		}
		start := idx + pos
		end := start + len(needle)
		if isWordBoundary(lower, start-1) && isWordBoundary(lower, end) {
			count++
		}
		idx = start + 1
	}
}

func isWordBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	r := s[i]
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
}
