package answers

import (
	"strings"
	"unicode"
)

// Normalize lowercases s, strips punctuation and collapses runs of
// whitespace into single spaces. All question and answer-key matching
// happens on normalized text.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the set of normalized tokens in s.
func Tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range strings.Fields(Normalize(s)) {
		out[t] = struct{}{}
	}
	return out
}

// Jaccard scores the token overlap of a and b: intersection over union,
// in [0,1]. Empty inputs score 0.
func Jaccard(a, b string) float64 {
	ta := Tokens(a)
	tb := Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Match scores question against every key in answersMap and returns the
// best key/value pair with its score. An exact match after normalization
// scores 1.0. Returns empty key and score 0 when answersMap is empty.
func Match(question string, answersMap map[string]string) (key, answer string, score float64) {
	qn := Normalize(question)
	if qn == "" {
		return "", "", 0
	}
	for k, v := range answersMap {
		if Normalize(k) == qn {
			return k, v, 1.0
		}
	}
	for k, v := range answersMap {
		if s := Jaccard(qn, k); s > score {
			key, answer, score = k, v, s
		}
	}
	return key, answer, score
}
