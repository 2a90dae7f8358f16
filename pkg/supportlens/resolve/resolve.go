package resolve

import (
	"strings"
	"unicode/utf8"

	"github.com/cognicore/supportlens/pkg/supportlens/conversation"
	"github.com/cognicore/supportlens/pkg/supportlens/patterns"
	"github.com/cognicore/supportlens/pkg/supportlens/textnorm"
)

// NoContent is returned when no tier recovers an inquiry
const NoContent = "문의 내용 없음"

// minRunes is the length a tier result must exceed, after trimming, to win.
const minRunes = 2

// Tier identifies the strategy that produced an inquiry
type Tier int

const (
	TierNone Tier = iota
	TierEnrichment
	TierMarkup
	TierLabel
	TierTranscript
	TierSubject
	TierFallback
)

var tierNames = [...]string{"none", "enrichment", "markup", "label", "transcript", "subject", "fallback"}

func (t Tier) String() string {
	if t < 0 || int(t) >= len(tierNames) {
		return "unknown"
	}
	return tierNames[t]
}

// Inquiry is the best customer-inquiry text of a conversation and the tier
// that found it.
type Inquiry struct {
	Text string
	Tier Tier
}

// Found reports whether a tier produced content
func (i Inquiry) Found() bool {
	return i.Tier != TierNone
}

type tier struct {
	kind Tier
	fn   func(*conversation.Conversation) string
}

// Resolver recovers the customer's question from a conversation by trying an
// ordered list of tiers and keeping the first that yields content. It holds
// no mutable state and is safe for concurrent use.
type Resolver struct {
	lib   *patterns.Library
	norm  *textnorm.Normalizer
	tiers []tier
}

// New builds a resolver. Nil arguments select the default pattern library
// and a normalizer over it.
func New(lib *patterns.Library, norm *textnorm.Normalizer) *Resolver {
	if lib == nil {
		if norm != nil {
			lib = norm.Library()
		} else {
			lib = patterns.Default()
		}
	}
	if norm == nil {
		norm = textnorm.New(lib)
	}
	r := &Resolver{lib: lib, norm: norm}
	r.tiers = []tier{
		{TierEnrichment, r.enrichment},
		{TierMarkup, r.markup},
		{TierLabel, r.label},
		{TierTranscript, r.transcript},
		{TierSubject, r.subject},
		{TierFallback, r.fallback},
	}
	return r
}

// Tiers returns the tiers in the order they are tried
func (r *Resolver) Tiers() []Tier {
	out := make([]Tier, len(r.tiers))
	for i, t := range r.tiers {
		out[i] = t.kind
	}
	return out
}

// Resolve returns the first tier result longer than two characters, or
// NoContent. It never fails and never modifies the conversation.
func (r *Resolver) Resolve(c *conversation.Conversation) Inquiry {
	if c == nil {
		return Inquiry{Text: NoContent, Tier: TierNone}
	}
	for _, t := range r.tiers {
		text := t.fn(c)
		if utf8.RuneCountInString(strings.TrimSpace(text)) > minRunes {
			return Inquiry{Text: text, Tier: t.kind}
		}
	}
	return Inquiry{Text: NoContent, Tier: TierNone}
}

// ResolveRaw resolves a decoded JSON conversation object. Input that is not
// a conversation object yields NoContent.
func (r *Resolver) ResolveRaw(v any) Inquiry {
	c, ok := conversation.FromRaw(v)
	if !ok {
		return Inquiry{Text: NoContent, Tier: TierNone}
	}
	return r.Resolve(&c)
}

// enrichment returns an attached enrichment result unless it is an error
// placeholder.
func (r *Resolver) enrichment(c *conversation.Conversation) string {
	if r.lib.IsFailureMarker(c.Enrichment) {
		return ""
	}
	return c.Enrichment
}

// markup joins every block the markup marks as end-user authored.
func (r *Resolver) markup(c *conversation.Conversation) string {
	m := r.lib.Markup()
	blocks := textnorm.MarkedBlocks(c.Body, m)
	for _, msg := range c.Messages {
		blocks = append(blocks, textnorm.MarkedBlocks(msg.Body, m)...)
	}
	return strings.TrimSpace(strings.Join(blocks, "\n"))
}

// label returns the text after the first customer-inquiry label.
func (r *Resolver) label(c *conversation.Conversation) string {
	re := r.lib.CustomerLabel()
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(c.Concatenated())
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// transcript keeps "(HH:MM:SS) Speaker: content" segments whose speaker is
// not a bot or agent. Each part of the conversation is split on its own, so a
// segment never runs into the next message, and agent or system messages are
// not read at all.
func (r *Resolver) transcript(c *conversation.Conversation) string {
	var parts []string
	for _, text := range customerParts(c) {
		for _, seg := range r.segments(text) {
			if r.lib.IsExcludedSpeaker(seg.speaker) {
				continue
			}
			if content := strings.TrimSpace(seg.content); content != "" {
				parts = append(parts, content)
			}
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return r.norm.Clean(strings.Join(parts, "\n"))
}

// subject keeps lines mentioning the customer named in a
// "<name>'s conversation" subject.
func (r *Resolver) subject(c *conversation.Conversation) string {
	re := r.lib.SubjectName()
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(c.Subject)
	if len(m) < 2 {
		return ""
	}
	name := strings.ToLower(strings.TrimSpace(m[1]))
	if name == "" {
		return ""
	}

	var kept []string
	for _, line := range strings.Split(c.Concatenated(), "\n") {
		if !strings.Contains(strings.ToLower(line), name) {
			continue
		}
		speaker, content := r.splitSpeaker(line)
		if r.lib.IsExcludedSpeaker(speaker) {
			continue
		}
		if content = strings.TrimSpace(content); content != "" {
			kept = append(kept, content)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return r.norm.Clean(strings.Join(kept, "\n"))
}

// fallback keeps every substantive, non-noise line. Customer messages are
// preferred when the conversation has any. Lines spoken by an excluded
// speaker are dropped.
func (r *Resolver) fallback(c *conversation.Conversation) string {
	text := c.Concatenated()
	if c.HasCustomerMessages() {
		text = strings.Join(customerParts(c), "\n")
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) < 3 || r.lib.IsNoiseLine(line) {
			continue
		}
		if speaker, _ := r.splitSpeaker(line); r.lib.IsExcludedSpeaker(speaker) {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return ""
	}
	return r.norm.Clean(strings.Join(kept, "\n"))
}

// customerParts returns the body and every message not written by an agent
// or the system, one entry each.
func customerParts(c *conversation.Conversation) []string {
	var parts []string
	if body := strings.TrimSpace(textnorm.PlainText(c.Body)); body != "" {
		parts = append(parts, body)
	}
	for _, m := range c.Messages {
		if m.Role == conversation.RoleAgent || m.Role == conversation.RoleSystem {
			continue
		}
		if text := strings.TrimSpace(m.Text()); text != "" {
			parts = append(parts, text)
		}
	}
	return parts
}
