package records

import (
	"errors"
	"testing"
	"time"

	"github.com/cognicore/supportlens/pkg/supportlens/conversation"
	"github.com/cognicore/supportlens/pkg/supportlens/internalerr"
)

var t0 = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func customer(convID, body string, offset time.Duration) conversation.Message {
	return conversation.Message{
		ConversationID: convID,
		Role:           conversation.RoleCustomer,
		Body:           body,
		CreatedAt:      t0.Add(offset),
	}
}

func TestBuildDeduplicatesByCompositeKey(t *testing.T) {
	convs := []conversation.Conversation{
		{ID: "c1", Entity: "Acme", Tags: []string{"Billing"}},
		{ID: "c2", Entity: "ACME ", Tags: []string{" billing "}},
		{ID: "c3", Entity: "Other", Tags: []string{"billing"}},
	}
	msgs := []conversation.Message{
		customer("c1", "환불 해주세요", 0),
		customer("c2", "환불   해주세요", 0),
		customer("c3", "환불 해주세요", 0),
	}

	got := NewBuilder(nil, nil, RuleLongest).Build(convs, msgs)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(got), got)
	}
	if got[0].ConversationID != "c1" || got[1].ConversationID != "c3" {
		t.Errorf("first-seen record should survive, got %+v", got)
	}
}

func TestBuildExplodesTags(t *testing.T) {
	convs := []conversation.Conversation{
		{ID: "c1", Tags: []string{"billing", "refund", "Billing"}},
	}
	msgs := []conversation.Message{customer("c1", "카드 결제 취소가 안 돼요", 0)}

	got := NewBuilder(nil, nil, "").Build(convs, msgs)
	if len(got) != 2 {
		t.Fatalf("expected one record per distinct tag, got %+v", got)
	}
	if got[0].Tag != "billing" || got[1].Tag != "refund" {
		t.Errorf("tags = %q, %q", got[0].Tag, got[1].Tag)
	}
	if got[0].Text != got[1].Text {
		t.Error("all tags of a conversation share the representative text")
	}
}

func TestRepresentativeRules(t *testing.T) {
	convs := []conversation.Conversation{{ID: "c1", Tags: []string{"delivery"}}}
	msgs := []conversation.Message{
		customer("c1", "빨리요", 2*time.Minute),
		customer("c1", "배송 언제 오나요?", 0),
		customer("c1", "주문한 상품이 아직 도착하지 않았습니다 확인 부탁드립니다", time.Minute),
		{ConversationID: "c1", Role: conversation.RoleAgent, Body: "고객님 주문하신 상품은 현재 배송 준비 중이며 곧 출고될 예정입니다", CreatedAt: t0.Add(3 * time.Minute)},
	}

	tests := []struct {
		rule Rule
		want string
	}{
		{RuleLongest, "주문한 상품이 아직 도착하지 않았습니다"},
		{RuleLatest, "빨리요"},
		{RuleQuestionFirst, "배송 언제 오나요?"},
	}
	for _, tt := range tests {
		got := NewBuilder(nil, nil, tt.rule).Build(convs, msgs)
		if len(got) != 1 {
			t.Fatalf("%s: expected 1 record, got %d", tt.rule, len(got))
		}
		if got[0].Text != tt.want {
			t.Errorf("%s: Text = %q, want %q", tt.rule, got[0].Text, tt.want)
		}
	}
}

func TestBuildSkipsConversationsWithoutContent(t *testing.T) {
	convs := []conversation.Conversation{
		{ID: "no-tags", Tags: []string{" "}},
		{ID: "no-messages", Tags: []string{"billing"}},
		{ID: "boilerplate", Tags: []string{"billing"}},
		{ID: "agent-only", Tags: []string{"billing"}},
		{ID: "", Tags: []string{"billing"}},
	}
	msgs := []conversation.Message{
		customer("no-tags", "로그인이 안 돼요", 0),
		customer("boilerplate", "감사합니다", 0),
		{ConversationID: "agent-only", Role: conversation.RoleAgent, Body: "무엇을 도와드릴까요"},
	}

	if got := NewBuilder(nil, nil, RuleLongest).Build(convs, msgs); len(got) != 0 {
		t.Errorf("expected no records, got %+v", got)
	}
}

func TestBuildFallsBackToEmbeddedMessages(t *testing.T) {
	convs := []conversation.Conversation{{
		ID:   "c1",
		Tags: []string{"account"},
		Messages: []conversation.Message{
			{Role: conversation.RoleSystem, Body: "상담이 시작되었습니다"},
			{Role: conversation.RoleCustomer, Body: "비밀번호 변경은 어디서 하나요?"},
		},
	}}

	got := NewBuilder(nil, nil, RuleLongest).Build(convs, nil)
	if len(got) != 1 || got[0].Text != "비밀번호 변경은 어디서 하나요?" {
		t.Errorf("Build = %+v", got)
	}
}

func TestRecordKey(t *testing.T) {
	a := Record{Entity: "Acme", Tag: "Billing", Text: "Refund  please"}
	b := Record{Entity: " acme", Tag: "billing ", Text: "refund please"}
	c := Record{Entity: "acme", Tag: "refund", Text: "refund please"}
	if a.Key() != b.Key() {
		t.Error("case and whitespace variants should share a key")
	}
	if a.Key() == c.Key() {
		t.Error("different tags must not share a key")
	}
}

func TestParseRule(t *testing.T) {
	for in, want := range map[string]Rule{"": RuleLongest, "LATEST": RuleLatest, " question_first ": RuleQuestionFirst} {
		got, err := ParseRule(in)
		if err != nil || got != want {
			t.Errorf("ParseRule(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseRule("random"); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
