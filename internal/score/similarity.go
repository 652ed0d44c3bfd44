package score

import (
	"regexp"
	"sort"
	"strings"

	"github.com/xrash/smetrics"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Similarity returns a token-sort ratio in [0,1] between two context strings.
//
// Both inputs are NFKC-normalized, case-folded, stripped to letters and
// digits, split into tokens, sorted, and re-joined. The ratio is
// 1 - indel/(len(a)+len(b)), where indel is the edit distance with insert
// and delete cost 1 and substitution cost 2. The result is symmetric and
// insensitive to word order.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	pa, pb := tokenSort(a), tokenSort(b)
	if pa == "" || pb == "" {
		return 0.0
	}

	total := len(pa) + len(pb)
	distance := smetrics.WagnerFischer(pa, pb, 1, 1, 2)
	return 1.0 - float64(distance)/float64(total)
}

// tokenSort folds case, drops punctuation and sorts the remaining tokens
func tokenSort(s string) string {
	// cases.Caser is stateful, so one is built per call
	s = cases.Fold().String(norm.NFKC.String(s))
	tokens := strings.Fields(nonAlnum.ReplaceAllString(s, " "))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
