package geometry

import "github.com/xrash/smetrics"

// JaroWinkler returns the Jaro-Winkler similarity of two strings in
// [0,1]: standard Jaro plus a 0.1-per-character bonus for up to 4
// matching leading characters. The bonus is applied unconditionally
// (no boost threshold). Comparison is case-sensitive; callers are
// expected to normalize case first (see the streets package).
func JaroWinkler(s1, s2 string) float64 {
	return smetrics.JaroWinkler(s1, s2, 0, 4)
}
