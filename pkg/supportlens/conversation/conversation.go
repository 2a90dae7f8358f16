package conversation

import (
	"errors"
	"strings"
	"time"

	"github.com/cognicore/supportlens/pkg/supportlens/textnorm"
)

// Role marks who authored a message
type Role string

const (
	RoleUnknown  Role = ""
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
	RoleSystem   Role = "system"
)

// Message is one entry of a conversation thread. ConversationID refers back
// to the owning conversation; it does not own it.
type Message struct {
	ID             string
	ConversationID string
	AuthorID       string
	Role           Role
	Body           string
	PlainText      string
	CreatedAt      time.Time
}

// Text returns the plain-text variant when present, otherwise the body with
// any HTML markup flattened to text.
func (m Message) Text() string {
	if strings.TrimSpace(m.PlainText) != "" {
		return m.PlainText
	}
	return textnorm.PlainText(m.Body)
}

// IsCustomer reports whether the message was written by the end user
func (m Message) IsCustomer() bool {
	return m.Role == RoleCustomer
}

// Conversation is a support ticket or chat thread with its category tags and
// chronologically ordered messages.
type Conversation struct {
	ID          string
	Entity      string
	CreatedAt   time.Time
	Subject     string
	Body        string
	RequesterID string
	Tags        []string
	Messages    []Message

	// Enrichment holds an inquiry string computed by an external enrichment
	// collaborator, if any.
	Enrichment string
}

// Validate checks if the conversation has the fields the pipeline keys on
func (c *Conversation) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("conversation id is required")
	}
	return nil
}

// WithEnrichment returns a copy of the conversation carrying the given
// enrichment result. The receiver is not modified.
func (c Conversation) WithEnrichment(inquiry string) Conversation {
	c.Enrichment = inquiry
	return c
}

// Concatenated joins the conversation body and every message text, one per line.
func (c *Conversation) Concatenated() string {
	parts := make([]string, 0, len(c.Messages)+1)
	if body := strings.TrimSpace(textnorm.PlainText(c.Body)); body != "" {
		parts = append(parts, body)
	}
	for _, m := range c.Messages {
		if text := strings.TrimSpace(m.Text()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// HasCustomerMessages reports whether any message is customer-authored
func (c *Conversation) HasCustomerMessages() bool {
	for _, m := range c.Messages {
		if m.IsCustomer() {
			return true
		}
	}
	return false
}

// NormalizeTags trims, collapses inner whitespace and lower-cases tags,
// dropping empties and duplicates while keeping first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.Join(strings.Fields(t), " "))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
