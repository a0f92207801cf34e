package utils

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var nonWordChars = regexp.MustCompile(`[^가-힣a-zA-Z0-9]`)

// NormalizeQuery lower-cases and trims free text for matching and cache keys.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// ContainsFold reports whether needle occurs in haystack ignoring case.
// An empty needle never matches.
func ContainsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// TitleTokens splits a title on whitespace, strips everything but Hangul,
// ASCII letters and digits, and keeps tokens of at least two characters.
func TitleTokens(title string) []string {
	fields := strings.Fields(title)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		cleaned := nonWordChars.ReplaceAllString(f, "")
		if utf8.RuneCountInString(cleaned) >= 2 {
			tokens = append(tokens, cleaned)
		}
	}
	return tokens
}

// Counter tallies string occurrences while remembering first-seen order,
// so ties in Top are broken by insertion order.
type Counter struct {
	counts map[string]int
	order  []string
}

func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

func (c *Counter) Add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *Counter) Len() int { return len(c.order) }

// Top returns up to n keys ordered by descending count.
func (c *Counter) Top(n int) []string {
	keys := make([]string, len(c.order))
	copy(keys, c.order)
	sort.SliceStable(keys, func(i, j int) bool {
		return c.counts[keys[i]] > c.counts[keys[j]]
	})
	if n >= 0 && len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
