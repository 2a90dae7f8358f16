package conversation

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// maxDepth bounds the walk over nested message structures.
const maxDepth = 32

// Field names accepted for each attribute, in priority order.
var (
	idKeys          = []string{"id", "ticketId", "ticket_id", "chatId", "chat_id", "userChatId", "conversationId", "conversation_id"}
	subjectKeys     = []string{"subject", "title", "name"}
	bodyKeys        = []string{"body", "description", "content", "text"}
	entityKeys      = []string{"entity", "workspace", "channel", "channelName", "brand", "organization"}
	requesterKeys   = []string{"requesterId", "requester_id", "customerId", "customer_id", "userId", "user_id"}
	enrichmentKeys  = []string{"inquiry", "extractedInquiry", "llmInquiry", "aiInquiry"}
	createdKeys     = []string{"createdAt", "created_at", "openedAt", "timestamp"}
	tagKeys         = []string{"tags", "tag", "labels", "categories"}
	msgBodyKeys     = []string{"body", "text", "content", "message", "comment", "plainText", "plain_text"}
	msgPlainKeys    = []string{"plainText", "plain_text", "plainBody"}
	msgRichKeys     = []string{"body", "text", "content", "message", "comment"}
	authorKeys      = []string{"authorId", "author_id", "personId", "senderId", "sender_id", "userId", "user_id", "from", "sender", "author"}
	roleKeys        = []string{"role", "personType", "authorType", "author_type", "senderType", "sender_type"}
	msgConvKeys     = []string{"conversationId", "conversation_id", "chatId", "chat_id", "userChatId", "ticketId", "ticket_id"}
	nestedAuthorIDs = []string{"id", "name", "email"}
	nestedRoleKeys  = []string{"type", "role", "personType"}
)

// FromRaw converts a decoded JSON conversation object into a Conversation.
// Messages nested at any depth are collected into a flat, chronologically
// ordered list. ok is false when v is not an object or carries no id.
func FromRaw(v any) (Conversation, bool) {
	obj, isObj := v.(map[string]any)
	if !isObj {
		return Conversation{}, false
	}

	c := Conversation{
		ID:          firstString(obj, idKeys),
		Subject:     firstString(obj, subjectKeys),
		Body:        firstString(obj, bodyKeys),
		Entity:      firstString(obj, entityKeys),
		RequesterID: firstString(obj, requesterKeys),
		Enrichment:  firstString(obj, enrichmentKeys),
		CreatedAt:   firstTime(obj, createdKeys),
		Tags:        NormalizeTags(firstStringList(obj, tagKeys)),
	}
	if err := c.Validate(); err != nil {
		return Conversation{}, false
	}

	w := walker{requesterID: c.RequesterID, conversationID: c.ID}
	for _, key := range sortedKeys(obj) {
		w.walk(obj[key], 1)
	}
	SortChronological(w.msgs)
	c.Messages = w.msgs
	return c, true
}

// MessagesFromRaw collects every message-like object in v. Each message takes
// its conversation id from its own fields; messages without one are dropped.
func MessagesFromRaw(v any) []Message {
	w := walker{}
	w.walk(v, 0)
	out := w.msgs[:0]
	for _, m := range w.msgs {
		if m.ConversationID != "" {
			out = append(out, m)
		}
	}
	return out
}

type walker struct {
	requesterID    string
	conversationID string
	msgs           []Message
}

func (w *walker) walk(v any, depth int) {
	if depth > maxDepth {
		return
	}
	switch val := v.(type) {
	case map[string]any:
		if m, ok := w.message(val); ok {
			w.msgs = append(w.msgs, m)
		}
		for _, key := range sortedKeys(val) {
			w.walk(val[key], depth+1)
		}
	case []any:
		for _, item := range val {
			w.walk(item, depth+1)
		}
	}
}

// message reports whether obj is message-like: it must carry a body field
// and an author-identifier field.
func (w *walker) message(obj map[string]any) (Message, bool) {
	if firstString(obj, msgBodyKeys) == "" {
		return Message{}, false
	}
	authorID, nestedRole, ok := author(obj)
	if !ok {
		return Message{}, false
	}

	roleField := firstString(obj, roleKeys)
	if roleField == "" {
		roleField = nestedRole
	}
	convID := firstString(obj, msgConvKeys)
	if convID == "" {
		convID = w.conversationID
	}
	return Message{
		ID:             firstString(obj, []string{"id", "messageId", "message_id"}),
		ConversationID: convID,
		AuthorID:       authorID,
		Role:           InferRole(roleField, authorID, w.requesterID),
		Body:           firstString(obj, msgRichKeys),
		PlainText:      firstString(obj, msgPlainKeys),
		CreatedAt:      firstTime(obj, createdKeys),
	}, true
}

// author finds the author identifier, which may be a scalar or an object
// such as {"id": "...", "type": "manager"}.
func author(obj map[string]any) (id, role string, ok bool) {
	for _, key := range authorKeys {
		switch v := obj[key].(type) {
		case map[string]any:
			if id = firstString(v, nestedAuthorIDs); id != "" {
				return id, firstString(v, nestedRoleKeys), true
			}
		case nil:
		default:
			if id = scalarString(v); id != "" {
				return id, "", true
			}
		}
	}
	// A bare role field still identifies the author side.
	if role := firstString(obj, roleKeys); role != "" {
		return role, role, true
	}
	return "", "", false
}

func firstString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(scalarString(obj[k])); s != "" {
			return s
		}
	}
	return ""
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	}
	return ""
}

func firstStringList(obj map[string]any, keys []string) []string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				if s := scalarString(item); s != "" {
					out = append(out, s)
				} else if m, ok := item.(map[string]any); ok {
					out = append(out, firstString(m, []string{"name", "label", "value"}))
				}
			}
			if len(out) > 0 {
				return out
			}
		case []string:
			if len(v) > 0 {
				return v
			}
		case string:
			if strings.TrimSpace(v) != "" {
				return strings.Split(v, ",")
			}
		}
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func firstTime(obj map[string]any, keys []string) time.Time {
	for _, k := range keys {
		if t, ok := parseTime(obj[k]); ok {
			return t
		}
	}
	return time.Time{}
}

func parseTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		val = strings.TrimSpace(val)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return t, true
			}
		}
		if n, err := strconv.ParseFloat(val, 64); err == nil {
			return epoch(n), true
		}
	case float64:
		return epoch(val), true
	case json.Number:
		if n, err := val.Float64(); err == nil {
			return epoch(n), true
		}
	}
	return time.Time{}, false
}

// epoch reads seconds or milliseconds since the Unix epoch.
func epoch(n float64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC()
	}
	return time.Unix(int64(n), 0).UTC()
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders a role for logs and reports
func (r Role) String() string {
	if r == RoleUnknown {
		return "unknown"
	}
	return string(r)
}
