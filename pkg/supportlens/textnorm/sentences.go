package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/cognicore/supportlens/pkg/supportlens/patterns"
)

// SplitSentences splits text on sentence-ending punctuation (.!?~ and their
// full-width forms) and on line breaks. Terminators stay attached to their
// sentence; a period between two digits does not end a sentence.
func SplitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' || r == '\r' {
			flush()
			continue
		}
		cur.WriteRune(r)
		if !isTerminator(r) {
			continue
		}
		if r == '.' && i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
			continue
		}
		for i+1 < len(runes) && isTerminator(runes[i+1]) {
			i++
			cur.WriteRune(runes[i])
		}
		flush()
	}
	flush()
	return out
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '~', '。', '！', '？', '～':
		return true
	}
	return false
}

// QuestionDetector decides whether a sentence is phrased as a question
type QuestionDetector struct {
	words   []string
	endings *regexp.Regexp
}

// NewQuestionDetector builds a detector from question words and the library's
// question-ending pattern. A nil library selects patterns.Default().
func NewQuestionDetector(words []string, lib *patterns.Library) *QuestionDetector {
	if lib == nil {
		lib = patterns.Default()
	}
	q := &QuestionDetector{endings: lib.QuestionEndings()}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			q.words = append(q.words, w)
		}
	}
	return q
}

// IsQuestion reports whether text has a question mark, contains a question
// word, or ends with a question inflection.
func (q *QuestionDetector) IsQuestion(text string) bool {
	if strings.ContainsAny(text, "?？") {
		return true
	}
	lower := strings.ToLower(text)
	for _, w := range q.words {
		if containsWord(lower, w) {
			return true
		}
	}
	return q.endings != nil && q.endings.MatchString(strings.TrimSpace(text))
}

// containsWord matches ASCII words on word boundaries so "how" does not match
// "show"; other scripts attach particles to words and match as substrings.
func containsWord(text, word string) bool {
	if !isASCII(word) {
		return strings.Contains(text, word)
	}
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		before := idx == 0 || !isASCIIWordByte(text[idx-1])
		after := end == len(text) || !isASCIIWordByte(text[end])
		if before && after {
			return true
		}
		start = idx + 1
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func isASCIIWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
