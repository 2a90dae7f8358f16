package supportlens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/supportlens/pkg/supportlens/config"
	"github.com/cognicore/supportlens/pkg/supportlens/conversation"
	"github.com/cognicore/supportlens/pkg/supportlens/enrich"
	"github.com/cognicore/supportlens/pkg/supportlens/internalerr"
	"github.com/cognicore/supportlens/pkg/supportlens/records"
	"github.com/cognicore/supportlens/pkg/supportlens/store/memstore"
)

type stubEnricher struct {
	inquiry string
	err     error
}

func (s *stubEnricher) ExtractInquiry(ctx context.Context, c *conversation.Conversation) (string, error) {
	return s.inquiry, s.err
}

func (s *stubEnricher) SummarizeTag(ctx context.Context, tag string, recs []records.Record) (*enrich.TagSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &enrich.TagSummary{FAQText: tag + " 요약", Keywords: []string{tag}}, nil
}

func customer(convID, text string) conversation.Message {
	return conversation.Message{ConversationID: convID, AuthorID: "u-" + convID, Role: conversation.RoleCustomer, PlainText: text}
}

func batch() []conversation.Conversation {
	return []conversation.Conversation{
		{
			ID: "c1", Entity: "acme", Tags: []string{"Billing"},
			Messages: []conversation.Message{customer("c1", "환불은 언제 되나요?")},
		},
		{
			ID: "c2", Entity: "globex", Tags: []string{"billing", "refund"},
			Messages: []conversation.Message{customer("c2", "환불은 언제 되나요? 결제 취소도 되나요?")},
		},
		{
			ID: "c3", Entity: "acme",
			Messages: []conversation.Message{customer("c3", "태그가 없는 문의입니다")},
		},
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestAnalyzeRuleBased(t *testing.T) {
	st := memstore.New()
	eng, err := New(Options{Store: st})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close()

	run, err := eng.Analyze(context.Background(), batch(), nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(run.Records) != 3 {
		t.Fatalf("expected 3 records, got %+v", run.Records)
	}
	if len(run.Buckets) != 2 || run.Buckets[0].Tag != "billing" || run.Buckets[1].Tag != "refund" {
		t.Fatalf("buckets = %+v", run.Buckets)
	}
	faq := run.Buckets[0].FAQ
	if len(faq) == 0 || faq[0].Sentence != "환불은 언제 되나요?" || faq[0].Count != 2 {
		t.Errorf("billing FAQ = %+v", faq)
	}
	for _, b := range run.Buckets {
		if b.Summary != nil {
			t.Errorf("no summary expected without enrichment, got %+v", b.Summary)
		}
	}

	if len(run.Inquiries) != 3 {
		t.Fatalf("expected an inquiry per conversation, got %+v", run.Inquiries)
	}
	for i, inq := range run.Inquiries {
		if inq.ConversationID != batch()[i].ID {
			t.Errorf("inquiry %d belongs to %s", i, inq.ConversationID)
		}
		if inq.Tier == "enrichment" || inq.Tier == "none" {
			t.Errorf("inquiry %s resolved by %s", inq.ConversationID, inq.Tier)
		}
	}

	if _, err := ulid.ParseStrict(run.ID); err != nil {
		t.Errorf("run id %q is not a ULID: %v", run.ID, err)
	}
	if run.PatternVersion == "" {
		t.Error("pattern version should be recorded")
	}
	saved, err := st.LatestRun(context.Background())
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if saved.ID != run.ID || len(saved.Records) != 3 {
		t.Errorf("saved run = %+v", saved.Info())
	}
}

func TestAnalyzeWithEnrichment(t *testing.T) {
	guard := enrich.NewGuard(&stubEnricher{inquiry: "환불 일정 문의"}, enrich.GuardOptions{Timeout: time.Second})
	eng, err := New(Options{Enricher: guard})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	run, err := eng.Analyze(context.Background(), batch(), nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for _, inq := range run.Inquiries {
		if inq.Tier != "enrichment" || inq.Text != "환불 일정 문의" {
			t.Errorf("inquiry = %+v", inq)
		}
	}
	for _, b := range run.Buckets {
		if b.Summary == nil || b.Summary.FAQText != b.Tag+" 요약" {
			t.Errorf("bucket %s summary = %+v", b.Tag, b.Summary)
		}
		if len(b.FAQ) == 0 {
			t.Errorf("rule-based FAQ must stay alongside the summary for %s", b.Tag)
		}
	}
}

func TestResolveFallsBackWhenEnrichmentFails(t *testing.T) {
	guard := enrich.NewGuard(&stubEnricher{err: errors.New("quota exceeded")}, enrich.GuardOptions{Timeout: time.Second})
	eng, err := New(Options{Enricher: guard})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c := conversation.Conversation{
		ID:   "T1",
		Tags: []string{"billing"},
		Messages: []conversation.Message{
			{AuthorID: "bot", Role: conversation.RoleSystem, Body: "Hello, ticket created"},
			{AuthorID: "cust1", Role: conversation.RoleCustomer, Body: "고객 문의 내용: How do I get a refund?"},
		},
	}
	got := eng.Resolve(context.Background(), c)
	if got.Text != "How do I get a refund?" || got.Tier.String() != "label" {
		t.Errorf("Resolve = %+v", got)
	}
	if c.Enrichment != "" {
		t.Error("caller's conversation must not be modified")
	}
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	settings := config.DefaultSettings()
	settings.TopN.FAQ = -1
	settings.RepresentativeMessageRule = "loudest"

	_, err := New(Options{Components: config.Build(nil, settings)})
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewRebuildsPartialComponents(t *testing.T) {
	settings := config.DefaultSettings()
	settings.TopN.FAQ = 1
	eng, err := New(Options{Components: &config.Components{Settings: settings}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if eng.Settings().TopN.FAQ != 1 || len(eng.Settings().StopWords) == 0 {
		t.Errorf("settings = %+v", eng.Settings())
	}
}

func TestRunIDsAreMonotonic(t *testing.T) {
	eng, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eng.now = fixedClock(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))

	var prev string
	for i := 0; i < 5; i++ {
		run, err := eng.Analyze(context.Background(), batch(), nil)
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		if run.ID <= prev {
			t.Fatalf("run id %s not after %s", run.ID, prev)
		}
		prev = run.ID
	}
}

func TestAnalyzeHonoursCancellation(t *testing.T) {
	eng, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := eng.Analyze(ctx, batch(), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAnalyzeEmptyBatch(t *testing.T) {
	eng, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	run, err := eng.Analyze(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(run.Records) != 0 || len(run.Buckets) != 0 || len(run.Inquiries) != 0 {
		t.Errorf("empty batch should produce an empty run, got %+v", run.Info())
	}
}

func TestResolveKeepsAttachedEnrichment(t *testing.T) {
	guard := enrich.NewGuard(&stubEnricher{inquiry: "새로 추출한 문의"}, enrich.GuardOptions{Timeout: time.Second})
	eng, err := New(Options{Enricher: guard})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c := conversation.Conversation{ID: "c9", Enrichment: "이미 추출된 문의"}
	if got := eng.Resolve(context.Background(), c); got.Text != "이미 추출된 문의" {
		t.Errorf("attached inquiry should win, got %+v", got)
	}

	c.Enrichment = "Error: upstream timeout"
	if got := eng.Resolve(context.Background(), c); got.Text != "새로 추출한 문의" {
		t.Errorf("failure marker should be re-requested, got %+v", got)
	}
}
