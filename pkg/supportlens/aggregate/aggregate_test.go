package aggregate

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/cognicore/supportlens/pkg/supportlens/records"
)

func rec(tag, convID, text string) records.Record {
	return records.Record{Tag: tag, ConversationID: convID, Text: text}
}

func defaultOptions() Options {
	return Options{FAQTopN: 10, KeywordTopN: 20, MinChatCount: 1}
}

func TestFAQCountsDistinctConversations(t *testing.T) {
	a := New(nil, nil, nil, defaultOptions())
	got := a.FAQ([]records.Record{
		rec("billing", "c1", "환불은 언제 되나요?"),
		rec("billing", "c2", "환불은 언제 되나요?"),
	})

	if len(got) != 1 {
		t.Fatalf("expected a single FAQ entry, got %+v", got)
	}
	if got[0].Sentence != "환불은 언제 되나요?" || got[0].Count != 2 {
		t.Errorf("entry = %+v", got[0])
	}
	if !reflect.DeepEqual(got[0].ConversationIDs, []string{"c1", "c2"}) {
		t.Errorf("ids = %v", got[0].ConversationIDs)
	}
}

func TestFAQRepeatWithinConversationCountsOnce(t *testing.T) {
	a := New(nil, nil, nil, defaultOptions())
	got := a.FAQ([]records.Record{
		rec("billing", "c1", "환불은 언제 되나요? 환불은 언제 되나요?"),
	})
	if len(got) != 1 || got[0].Count != 1 {
		t.Errorf("FAQ = %+v", got)
	}
}

func TestFAQSkipsStatements(t *testing.T) {
	a := New(nil, nil, nil, defaultOptions())
	got := a.FAQ([]records.Record{
		rec("billing", "c1", "결제가 두 번 됐습니다. 확인 부탁드립니다."),
	})
	if len(got) != 0 {
		t.Errorf("statements should not be reported, got %+v", got)
	}
}

func TestThresholdAndTopN(t *testing.T) {
	recs := []records.Record{
		rec("delivery", "c1", "배송 언제 오나요? 환불 되나요?"),
		rec("delivery", "c2", "배송 언제 오나요?"),
		rec("delivery", "c3", "배송 언제 오나요? 교환 가능한가요?"),
	}

	tests := []struct {
		name string
		opts Options
		want int
	}{
		{"threshold filters singletons", Options{FAQTopN: 10, MinChatCount: 2}, 1},
		{"everything at threshold one", Options{FAQTopN: 10, MinChatCount: 1}, 3},
		{"top n truncates", Options{FAQTopN: 2, MinChatCount: 1}, 2},
		{"zero top n", Options{FAQTopN: 0, MinChatCount: 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(nil, nil, nil, tt.opts).FAQ(recs)
			if len(got) != tt.want {
				t.Fatalf("expected %d entries, got %+v", tt.want, got)
			}
			for _, e := range got {
				if e.Count < tt.opts.MinChatCount {
					t.Errorf("entry %q below threshold", e.Sentence)
				}
			}
			if tt.want > 0 && got[0].Sentence != "배송 언제 오나요?" {
				t.Errorf("most supported sentence should rank first, got %q", got[0].Sentence)
			}
		})
	}
}

func TestKeywordsRankByConversationSupport(t *testing.T) {
	a := New(nil, nil, nil, defaultOptions())
	got := a.Keywords([]records.Record{
		rec("billing", "c1", "환불 환불 환불 요청"),
		rec("billing", "c2", "환불 문의"),
		rec("billing", "c3", "배송 문의"),
	})

	var words []string
	for _, e := range got {
		words = append(words, e.Keyword)
		if e.Count != len(e.ConversationIDs) {
			t.Errorf("%q: count %d != %d ids", e.Keyword, e.Count, len(e.ConversationIDs))
		}
		seen := make(map[string]bool)
		for _, id := range e.ConversationIDs {
			if seen[id] {
				t.Errorf("%q: duplicate conversation id %q", e.Keyword, id)
			}
			seen[id] = true
		}
	}
	want := []string{"환불", "문의", "요청", "배송"}
	if !reflect.DeepEqual(words, want) {
		t.Errorf("keywords = %q, want %q", words, want)
	}
	if got[0].Count != 2 {
		t.Errorf("repeated token inside one conversation must count once, got %d", got[0].Count)
	}
}

func TestGroupByTag(t *testing.T) {
	groups := GroupByTag([]records.Record{
		rec("refund", "c1", "a"),
		rec("billing", "c1", "a"),
		rec("refund", "c2", "b"),
	})
	if len(groups) != 2 || groups[0].Tag != "refund" || groups[1].Tag != "billing" {
		t.Fatalf("groups = %+v", groups)
	}
	if len(groups[0].Records) != 2 {
		t.Errorf("refund group has %d records", len(groups[0].Records))
	}
}

func TestAllKeepsGroupOrder(t *testing.T) {
	a := New(nil, nil, nil, defaultOptions())
	groups := []Group{
		{Tag: "a", Records: []records.Record{rec("a", "c1", "로그인 어떻게 하나요?")}},
		{Tag: "b", Records: []records.Record{rec("b", "c2", "배송 언제 오나요?")}},
		{Tag: "c", Records: nil},
	}

	buckets, err := a.All(context.Background(), groups, 2)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	for i, b := range buckets {
		if b.Tag != groups[i].Tag {
			t.Errorf("bucket %d tag = %q, want %q", i, b.Tag, groups[i].Tag)
		}
	}
	if len(buckets[0].FAQ) != 1 || len(buckets[2].FAQ) != 0 {
		t.Errorf("unexpected buckets: %+v", buckets)
	}
}

func TestAllHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := New(nil, nil, nil, defaultOptions())
	_, err := a.All(ctx, []Group{{Tag: "a"}}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
