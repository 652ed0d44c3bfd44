package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	wordRun    = regexp.MustCompile(`[a-z]+`)
	nonNumeric = regexp.MustCompile(`[^\d.]`)
)

// magnitudes maps a whole alphabetic run to its multiplier. Runs are matched
// whole, so "million" never degrades to its trailing "m".
var magnitudes = map[string]float64{
	"k":        1e3,
	"thousand": 1e3,
	"m":        1e6,
	"million":  1e6,
	"b":        1e9,
	"billion":  1e9,
}

// Normalize converts a raw numeric literal such as "$2.5 million", "2,500" or
// "3.1B" into a scalar in base units. It reports false when the literal
// cannot be normalized: no digits, more than one decimal point, or more than
// one magnitude cue ("2 million k").
func Normalize(raw string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, ",", "")

	multiplier := 1.0
	cues := 0
	for _, word := range wordRun.FindAllString(s, -1) {
		if m, ok := magnitudes[word]; ok {
			multiplier = m
			cues++
		}
	}
	if cues > 1 {
		return 0, false
	}

	digits := nonNumeric.ReplaceAllString(s, "")
	if digits == "" || digits == "." {
		return 0, false
	}

	value, err := strconv.ParseFloat(digits, 64)
	if err != nil || math.IsInf(value, 0) {
		return 0, false
	}

	return value * multiplier, true
}
