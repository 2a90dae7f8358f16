package textnorm

import (
	"strings"
	"unicode"
)

const (
	maxRepeatUnit = 8
	minRepeats    = 3
)

// collapseRepeats reduces runs of three or more back-to-back copies of the
// same short unit ("ㅋㅋㅋㅋ", "abcabcabc") to a single copy. Units made only
// of digits or spaces are left alone so amounts keep their value.
func collapseRepeats(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(runes); {
		collapsed := false
		for unit := 1; unit <= maxRepeatUnit && i+unit*minRepeats <= len(runes); unit++ {
			if !collapsible(runes[i : i+unit]) {
				continue
			}
			count := 1
			for j := i + unit; j+unit <= len(runes) && equalRunes(runes[i:i+unit], runes[j:j+unit]); j += unit {
				count++
			}
			if count >= minRepeats {
				b.WriteString(string(runes[i : i+unit]))
				i += unit * count
				collapsed = true
				break
			}
		}
		if !collapsed {
			b.WriteRune(runes[i])
			i++
		}
	}
	return b.String()
}

func collapsible(unit []rune) bool {
	for _, r := range unit {
		if !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

func equalRunes(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// excessiveRepetition flags sentences dominated by a repeated word or rune.
func excessiveRepetition(sentence string) bool {
	words := strings.Fields(strings.ToLower(sentence))
	if len(words) >= 4 {
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			unique[w] = struct{}{}
		}
		if len(unique)*3 <= len(words) {
			return true
		}
	}

	counts := make(map[rune]int)
	total, top := 0, 0
	for _, r := range sentence {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		total++
		counts[r]++
		if counts[r] > top {
			top = counts[r]
		}
	}
	return total >= 6 && top*10 >= total*7
}
