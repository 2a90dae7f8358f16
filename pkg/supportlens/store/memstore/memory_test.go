package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/cognicore/supportlens/pkg/supportlens/store"
	"github.com/cognicore/supportlens/pkg/supportlens/store/storetest"
)

func TestMemStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestSavedRunIsIsolated(t *testing.T) {
	ctx := context.Background()
	st := New()

	run := storetest.SampleRun("r1", time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	if err := st.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	run.Buckets[0].FAQ[0].ConversationIDs[0] = "mutated"
	run.Records[0].Text = "mutated"

	got, err := st.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Buckets[0].FAQ[0].ConversationIDs[0] != "c1" || got.Records[0].Text == "mutated" {
		t.Error("stored run should not alias caller slices")
	}
}
