package transcript

import (
	"strings"
)

// Similarity scores how well pattern appears in text, in [0, 1]. A
// normalized substring hit scores 1. Otherwise it is the Ratcliff/Obershelp
// ratio of the two strings, boosted by 0.3 when every word of pattern
// occurs somewhere in text.
func Similarity(text, pattern string) float64 {
	t := Normalize(text)
	p := Normalize(pattern)
	if p == "" {
		return 0
	}
	if strings.Contains(t, p) {
		return 1
	}

	score := ratio([]rune(t), []rune(p))

	words := make(map[string]bool)
	for _, w := range strings.Fields(t) {
		words[w] = true
	}
	all := true
	for _, w := range strings.Fields(p) {
		if !words[w] {
			all = false
			break
		}
	}
	if all {
		score = min(1, score+0.3)
	}
	return score
}

func ratio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(matching(a, b)) / float64(total)
}

// matching counts the characters in the matching blocks of a and b: the
// longest common run, then recursively the pieces on either side of it.
func matching(a, b []rune) int {
	i, j, k := longestMatch(a, b)
	if k == 0 {
		return 0
	}
	return k + matching(a[:i], b[:j]) + matching(a[i+k:], b[j+k:])
}

func longestMatch(a, b []rune) (ai, bj, size int) {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					ai, bj = i-size, j-size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return ai, bj, size
}
