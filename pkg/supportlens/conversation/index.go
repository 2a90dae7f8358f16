package conversation

import "sort"

// Index groups messages by conversation id. It is built once and read-only
// afterwards.
type Index struct {
	byConv map[string][]Message
	total  int
}

// NewIndex indexes messages by ConversationID. Messages with no conversation
// id, or rejected by keep when keep is non-nil, are skipped. Each group is
// ordered chronologically; messages without timestamps keep input order.
func NewIndex(msgs []Message, keep func(Message) bool) *Index {
	ix := &Index{byConv: make(map[string][]Message)}
	for _, m := range msgs {
		if m.ConversationID == "" {
			continue
		}
		if keep != nil && !keep(m) {
			continue
		}
		ix.byConv[m.ConversationID] = append(ix.byConv[m.ConversationID], m)
		ix.total++
	}
	for id := range ix.byConv {
		SortChronological(ix.byConv[id])
	}
	return ix
}

// Messages returns the indexed messages of a conversation
func (ix *Index) Messages(conversationID string) []Message {
	return ix.byConv[conversationID]
}

// Len returns the number of indexed messages
func (ix *Index) Len() int {
	return ix.total
}

// SortChronological orders messages by CreatedAt with a stable sort. Messages
// are only reordered when every one of them carries a timestamp.
func SortChronological(msgs []Message) {
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			return
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
