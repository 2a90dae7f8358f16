package aggregate

import "sort"

// support tracks, for each key, the distinct conversations it appeared in.
// Keys remember the surface form and position of their first occurrence.
type support struct {
	order []string
	label map[string]string
	ids   map[string][]string
	seen  map[string]map[string]struct{}
}

func newSupport() *support {
	return &support{
		label: make(map[string]string),
		ids:   make(map[string][]string),
		seen:  make(map[string]map[string]struct{}),
	}
}

// Add records that key (displayed as label) occurred in a conversation.
// Repeated occurrences within one conversation count once.
func (s *support) Add(key, label, conversationID string) {
	set, ok := s.seen[key]
	if !ok {
		set = make(map[string]struct{})
		s.seen[key] = set
		s.label[key] = label
		s.order = append(s.order, key)
	}
	if _, dup := set[conversationID]; dup {
		return
	}
	set[conversationID] = struct{}{}
	s.ids[key] = append(s.ids[key], conversationID)
}

type ranked struct {
	label string
	ids   []string
}

// Top returns keys supported by at least minCount conversations, ordered by
// support descending with ties in first-seen order, truncated to limit.
func (s *support) Top(minCount, limit int) []ranked {
	if limit <= 0 {
		return nil
	}
	var out []ranked
	for _, key := range s.order {
		ids := s.ids[key]
		if len(ids) < minCount {
			continue
		}
		out = append(out, ranked{label: s.label[key], ids: ids})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].ids) > len(out[j].ids)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
