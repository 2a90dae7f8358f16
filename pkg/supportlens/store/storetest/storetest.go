// Package storetest holds behaviour tests shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cognicore/supportlens/pkg/supportlens/aggregate"
	"github.com/cognicore/supportlens/pkg/supportlens/internalerr"
	"github.com/cognicore/supportlens/pkg/supportlens/records"
	"github.com/cognicore/supportlens/pkg/supportlens/store"
)

// SampleRun builds a small run with one bucket, two records and an inquiry
func SampleRun(id string, at time.Time) store.Run {
	return store.Run{
		ID:             id,
		CreatedAt:      at,
		PatternVersion: "2026.10.1",
		Records: []records.Record{
			{Entity: "acme", Tag: "billing", Text: "환불은 언제 되나요?", ConversationID: "c1"},
			{Entity: "acme", Tag: "billing", Text: "결제 취소 어떻게 하나요?", ConversationID: "c2"},
		},
		Buckets: []aggregate.Bucket{{
			Tag: "billing",
			FAQ: []aggregate.FAQEntry{
				{Sentence: "환불은 언제 되나요?", Count: 1, ConversationIDs: []string{"c1"}},
			},
			Keywords: []aggregate.KeywordEntry{
				{Keyword: "환불은", Count: 1, ConversationIDs: []string{"c1"}},
			},
			Summary: &aggregate.Summary{FAQText: "환불 시점 문의", Keywords: []string{"환불"}},
		}},
		Inquiries: []store.Inquiry{
			{ConversationID: "c1", Text: "환불은 언제 되나요?", Tier: "label"},
		},
	}
}

// Run exercises open against the store.Store contract. open must return a
// fresh, empty store.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	t.Run("round trip", func(t *testing.T) {
		st := open(t)
		defer st.Close()

		want := SampleRun("01JA0000000000000000000001", base)
		if err := st.SaveRun(ctx, want); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
		got, err := st.GetRun(ctx, want.ID)
		if err != nil {
			t.Fatalf("GetRun: %v", err)
		}
		if got.ID != want.ID || !got.CreatedAt.Equal(want.CreatedAt) || got.PatternVersion != want.PatternVersion {
			t.Errorf("header = %+v", got.Info())
		}
		if len(got.Records) != 2 || got.Records[1].Text != "결제 취소 어떻게 하나요?" {
			t.Errorf("records = %+v", got.Records)
		}
		if len(got.Buckets) != 1 || len(got.Buckets[0].FAQ) != 1 || got.Buckets[0].FAQ[0].Count != 1 {
			t.Fatalf("buckets = %+v", got.Buckets)
		}
		if got.Buckets[0].Summary == nil || got.Buckets[0].Summary.FAQText != "환불 시점 문의" {
			t.Errorf("summary = %+v", got.Buckets[0].Summary)
		}
		if len(got.Inquiries) != 1 || got.Inquiries[0].Tier != "label" {
			t.Errorf("inquiries = %+v", got.Inquiries)
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		st := open(t)
		defer st.Close()

		run := SampleRun("dup", base)
		if err := st.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
		if err := st.SaveRun(ctx, run); !errors.Is(err, internalerr.ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		st := open(t)
		defer st.Close()

		if err := st.SaveRun(ctx, store.Run{}); !errors.Is(err, internalerr.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := st.GetRun(ctx, "nope"); !errors.Is(err, internalerr.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := st.LatestRun(ctx); !errors.Is(err, internalerr.ErrNotFound) {
			t.Errorf("expected ErrNotFound on empty store, got %v", err)
		}
	})

	t.Run("latest and list", func(t *testing.T) {
		st := open(t)
		defer st.Close()

		for i, id := range []string{"run-a", "run-c", "run-b"} {
			run := SampleRun(id, base.Add(time.Duration(i)*time.Minute))
			if err := st.SaveRun(ctx, run); err != nil {
				t.Fatalf("SaveRun %s: %v", id, err)
			}
		}

		latest, err := st.LatestRun(ctx)
		if err != nil {
			t.Fatalf("LatestRun: %v", err)
		}
		if latest.ID != "run-b" {
			t.Errorf("latest = %s, want run-b", latest.ID)
		}

		infos, err := st.ListRuns(ctx, 2)
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(infos) != 2 || infos[0].ID != "run-b" || infos[1].ID != "run-c" {
			t.Errorf("ListRuns = %+v", infos)
		}
		if infos[0].Records != 2 || infos[0].Tags != 1 {
			t.Errorf("info counts = %+v", infos[0])
		}
	})
}
