package records

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cognicore/supportlens/pkg/supportlens/conversation"
	"github.com/cognicore/supportlens/pkg/supportlens/internalerr"
	"github.com/cognicore/supportlens/pkg/supportlens/textnorm"
)

// Rule selects the representative message of a conversation
type Rule string

const (
	RuleLongest       Rule = "longest"
	RuleLatest        Rule = "latest"
	RuleQuestionFirst Rule = "question_first"
)

// ParseRule validates a representative-message rule name. The empty string
// selects RuleLongest.
func ParseRule(s string) (Rule, error) {
	switch r := Rule(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RuleLongest, nil
	case RuleLongest, RuleLatest, RuleQuestionFirst:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown representative message rule %q", internalerr.ErrInvalidConfig, s)
}

// Record is one (entity, tag, text) row derived from a conversation
type Record struct {
	Entity         string `json:"entity"`
	Tag            string `json:"tag"`
	Text           string `json:"text"`
	ConversationID string `json:"conversationId"`
}

// Key is the composite de-duplication key: lower-cased entity and tag plus
// the whitespace-collapsed, lower-cased text.
func (r Record) Key() string {
	return strings.ToLower(strings.TrimSpace(r.Entity)) + "\x00" +
		strings.ToLower(strings.TrimSpace(r.Tag)) + "\x00" +
		strings.ToLower(strings.Join(strings.Fields(r.Text), " "))
}

// Builder turns conversations and their customer messages into unique
// tagged records.
type Builder struct {
	norm      *textnorm.Normalizer
	questions *textnorm.QuestionDetector
	rule      Rule
}

// NewBuilder creates a record builder. Nil collaborators select defaults
// over the default pattern library; an empty rule selects RuleLongest.
func NewBuilder(norm *textnorm.Normalizer, questions *textnorm.QuestionDetector, rule Rule) *Builder {
	if norm == nil {
		norm = textnorm.New(nil)
	}
	if questions == nil {
		lib := norm.Library()
		questions = textnorm.NewQuestionDetector(lib.QuestionWords(), lib)
	}
	if rule == "" {
		rule = RuleLongest
	}
	return &Builder{norm: norm, questions: questions, rule: rule}
}

// Build explodes every conversation into one record per tag, using a single
// representative customer message per conversation. msgs are matched to
// conversations by ConversationID; a conversation absent from msgs falls back
// to its own Messages. Records are de-duplicated by Key, keeping the first,
// and returned in first-seen order.
func (b *Builder) Build(convs []conversation.Conversation, msgs []conversation.Message) []Record {
	ix := conversation.NewIndex(msgs, conversation.Message.IsCustomer)

	var out []Record
	seen := make(map[string]struct{})
	for i := range convs {
		c := &convs[i]
		if c.ID == "" {
			continue
		}
		tags := conversation.NormalizeTags(c.Tags)
		if len(tags) == 0 {
			continue
		}

		candidates := ix.Messages(c.ID)
		if candidates == nil {
			candidates = ownCustomerMessages(c)
		}
		text := b.representative(candidates)
		if text == "" {
			continue
		}

		for _, tag := range tags {
			rec := Record{Entity: c.Entity, Tag: tag, Text: text, ConversationID: c.ID}
			key := rec.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}

// representative picks one message by the configured rule and returns its
// normalized text, or "" when nothing usable remains.
func (b *Builder) representative(msgs []conversation.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	switch b.rule {
	case RuleLatest:
		return b.norm.Normalize(msgs[len(msgs)-1].Text())
	case RuleQuestionFirst:
		for _, m := range msgs {
			if b.questions.IsQuestion(m.Text()) {
				return b.norm.Normalize(m.Text())
			}
		}
		return b.norm.Normalize(msgs[0].Text())
	}

	best, bestLen := "", 0
	for _, m := range msgs {
		text := b.norm.Normalize(m.Text())
		if n := utf8.RuneCountInString(text); n > bestLen {
			best, bestLen = text, n
		}
	}
	return best
}

func ownCustomerMessages(c *conversation.Conversation) []conversation.Message {
	var out []conversation.Message
	for _, m := range c.Messages {
		if m.IsCustomer() {
			out = append(out, m)
		}
	}
	conversation.SortChronological(out)
	return out
}
