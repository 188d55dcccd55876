// Package diag turns near-miss directive spellings into did-you-mean hints.
package diag

import "github.com/hbollon/go-edlib"

// directiveNames are the keyword spellings the lexer recognizes after a
// line-leading '#'.
var directiveNames = []string{
	"include", "line", "define", "undef",
	"if", "ifdef", "ifndef", "else", "elif", "endif", "error",
}

// suggestionThreshold is the minimum Jaro-Winkler similarity for a
// suggestion to be worth showing. Below it, hints are more confusing than
// helpful.
const suggestionThreshold = 0.80

// SuggestDirective returns the closest known directive keyword for a
// misspelled one, or false when nothing is similar enough.
func SuggestDirective(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	best := ""
	bestScore := float32(0)
	for _, candidate := range directiveNames {
		if candidate == name {
			return "", false // not a misspelling
		}
		score, err := edlib.StringsSimilarity(name, candidate, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}
	if bestScore < suggestionThreshold {
		return "", false
	}
	return best, true
}
