package textnorm

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cognicore/supportlens/pkg/supportlens/patterns"
)

const (
	// minSentenceRunes is the shortest sentence kept by Clean.
	minSentenceRunes = 3

	// maxCleanPasses bounds the passes Clean makes to reach a fixed point.
	maxCleanPasses = 8
)

var (
	listMarker      = regexp.MustCompile(`(?m)^[ \t]*\d{1,3}[.)][ \t]+`)
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\r\x{00A0}\x{3000}]+`)
)

// Normalizer strips boilerplate from support text using an injected pattern
// library. A Normalizer holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	lib       *patterns.Library
	greetings []string
	signOffs  []string
	rules     []patterns.Rule
	residual  []patterns.Rule
}

// New creates a normalizer over the given library. A nil library selects
// patterns.Default().
func New(lib *patterns.Library) *Normalizer {
	if lib == nil {
		lib = patterns.Default()
	}
	return &Normalizer{
		lib:       lib,
		greetings: lib.Greetings(),
		signOffs:  lib.SignOffs(),
		rules:     lib.Rules(),
		residual:  lib.RulesFor(patterns.CategoryContactCodes, patterns.CategoryHashes),
	}
}

// Library returns the pattern library the normalizer was built with
func (n *Normalizer) Library() *patterns.Library { return n.lib }

// Normalize collapses whitespace and strips leading greetings and trailing
// sign-offs. Phrases are only removed at the edges of the text, never from
// the middle.
func (n *Normalizer) Normalize(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	for {
		before := s
		s = strings.TrimFunc(s, isEdgeTrim)
		s = n.stripGreeting(s)
		s = n.stripSignOff(s)
		if s == before {
			return s
		}
	}
}

// Clean is the heavy cleanup pass used for extracted inquiries. It removes
// system, boilerplate, link and PII-like tokens, splits the remainder into
// sentences and de-duplicates them. Two or more surviving sentences are
// returned as a numbered list; a single sentence is returned bare; when no
// sentence survives the cleaned flat text is returned.
//
// The pass is repeated until its output no longer changes, so
// Clean(Clean(x)) == Clean(x).
func (n *Normalizer) Clean(text string) string {
	out := n.cleanOnce(text)
	for i := 0; i < maxCleanPasses; i++ {
		next := n.cleanOnce(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func (n *Normalizer) cleanOnce(text string) string {
	s := n.applyRules(listMarker.ReplaceAllString(text, " "))
	// Collapsing can expose a link or code ("hhhttp://..."), so rules run again.
	s = n.applyRules(collapseRepeats(s))
	s = horizontalSpace.ReplaceAllString(s, " ")
	flat := strings.Join(strings.Fields(s), " ")

	var kept []string
	seen := make(map[string]struct{})
	for _, sent := range SplitSentences(s) {
		sent = listMarker.ReplaceAllString(sent, "")
		if n.isResidualNoise(sent) {
			continue
		}
		sent = n.settle(sent)
		if utf8.RuneCountInString(sent) < minSentenceRunes {
			continue
		}
		key := strings.ToLower(sent)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, sent)
	}

	switch len(kept) {
	case 0:
		return flat
	case 1:
		return kept[0]
	}
	var b strings.Builder
	for i, sent := range kept {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, sent)
	}
	return b.String()
}

func (n *Normalizer) applyRules(s string) string {
	for _, r := range n.rules {
		s = r.Pattern.ReplaceAllString(s, " ")
	}
	return s
}

// settle alternates edge normalization and word de-duplication until neither
// changes the sentence. Both steps only remove text, so the loop terminates.
func (n *Normalizer) settle(sent string) string {
	for {
		next := DedupeWords(n.Normalize(sent))
		if next == sent {
			return sent
		}
		sent = next
	}
}

// isResidualNoise reports sentences that still look like verification codes,
// contact numbers, opaque hashes or repetition after the rule passes.
func (n *Normalizer) isResidualNoise(sent string) bool {
	for _, r := range n.residual {
		if r.Pattern.MatchString(sent) {
			return true
		}
	}
	return excessiveRepetition(sent)
}

func (n *Normalizer) stripGreeting(s string) string {
	for _, g := range n.greetings {
		if len(s) < len(g) || !strings.EqualFold(s[:len(g)], g) {
			continue
		}
		rest := s[len(g):]
		r, _ := utf8.DecodeRuneInString(rest)
		if rest == "" || !isWordRune(r) {
			return rest
		}
	}
	return s
}

func (n *Normalizer) stripSignOff(s string) string {
	for _, g := range n.signOffs {
		if len(s) < len(g) || !strings.EqualFold(s[len(s)-len(g):], g) {
			continue
		}
		rest := s[:len(s)-len(g)]
		r, _ := utf8.DecodeLastRuneInString(rest)
		if rest == "" || !isWordRune(r) {
			return rest
		}
	}
	return s
}

// DedupeWords drops repeated whitespace-separated words, compared
// case-insensitively, keeping the first occurrence. Words of one rune are
// always kept.
func DedupeWords(sentence string) string {
	words := strings.Fields(sentence)
	seen := make(map[string]struct{}, len(words))
	out := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 1 {
			out = append(out, w)
			continue
		}
		key := strings.ToLower(w)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isEdgeTrim(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	return strings.ContainsRune(",.!~;:-_·…。！～", r)
}
