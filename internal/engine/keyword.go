package engine

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultScanDepth is the number of trailing history messages a keyword
// gate scans when a rule has no override.
const DefaultScanDepth = 4

var folder = cases.Fold()

// foldText normalizes text for case-insensitive comparison.
func foldText(s string) string {
	return folder.String(norm.NFC.String(s))
}

// matchKeyword returns the first keyword contained in haystack, comparing
// case-folded forms. Blank keywords never match.
func matchKeyword(keywords []string, haystack string) (string, bool) {
	folded := foldText(haystack)
	for _, k := range keywords {
		if strings.TrimSpace(k) == "" {
			continue
		}
		if strings.Contains(folded, foldText(k)) {
			return k, true
		}
	}
	return "", false
}
