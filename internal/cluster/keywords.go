package cluster

import (
	"regexp"
	"slices"
	"strings"

	"github.com/kalambet/lifelens/internal/lexicon"
)

// MaxKeywords is how many ranked keywords a theme stores.
const MaxKeywords = 15

// UnlabeledTheme is used when a cluster yields no keywords at all.
const UnlabeledTheme = "Unlabeled"

var (
	// Word boundaries are Unicode-aware: "cafés" is one token, not "caf".
	tokenPattern   = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	keywordPattern = regexp.MustCompile(`^[a-z]{4,}$`)
)

// Keywords ranks the words of four or more ASCII letters across texts by
// frequency, first occurrence breaking ties, after dropping stop words.
// Tokens with any other letter or digit are skipped whole.
func Keywords(texts []string) []string {
	all := strings.ToLower(strings.Join(texts, " "))

	counts := make(map[string]int)
	var order []string
	for _, w := range tokenPattern.FindAllString(all, -1) {
		if !keywordPattern.MatchString(w) {
			continue
		}
		if _, stop := lexicon.StopWords[w]; stop {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	slices.SortStableFunc(order, func(a, b string) int {
		return counts[b] - counts[a]
	})
	if len(order) > MaxKeywords {
		order = order[:MaxKeywords]
	}
	return order
}

// Label picks the category sharing the most words with keywords, earliest
// category on ties. With no overlap it title-cases the top two keywords.
func Label(keywords []string) string {
	best, bestScore := "", 0
	for _, cat := range lexicon.Categories {
		score := 0
		for _, kw := range keywords {
			if _, ok := cat.Words[kw]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = cat.Name, score
		}
	}
	if bestScore > 0 {
		return best
	}
	if len(keywords) == 0 {
		return UnlabeledTheme
	}

	top := keywords[:min(2, len(keywords))]
	parts := make([]string, len(top))
	for i, w := range top {
		parts[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(parts, " ")
}
