package dedupe

import (
	"github.com/agnivade/levenshtein"
)

// Ratio is 1 - distance/maxLen over runes. Two empty strings are identical.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// PartialRatio is the best Ratio of the shorter string against every
// equal-length window of the longer one.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		if len(rb) == 0 {
			return 1
		}
		return 0
	}

	short := string(ra)
	best := 0.0
	for i := 0; i+len(ra) <= len(rb); i++ {
		if r := Ratio(short, string(rb[i:i+len(ra)])); r > best {
			best = r
			if best == 1 {
				break
			}
		}
	}
	return best
}

// Similarity is the larger of Ratio and PartialRatio.
func Similarity(a, b string) float64 {
	return max(Ratio(a, b), PartialRatio(a, b))
}
