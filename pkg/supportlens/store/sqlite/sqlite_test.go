package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/cognicore/supportlens/pkg/supportlens/store"
	"github.com/cognicore/supportlens/pkg/supportlens/store/storetest"
)

func openTemp(t *testing.T) store.Store {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	return st
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, openTemp)
}

// TestSchemaCreationIdempotent tests that running initSchema multiple times is safe
func TestSchemaCreationIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open database: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := initSchema(ctx, db); err != nil {
			t.Fatalf("initSchema iteration %d: %v", i, err)
		}
	}

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&count)
	if err != nil {
		t.Fatalf("Count tables: %v", err)
	}
	if count != 4 { // runs, run_records, run_buckets, run_inquiries
		t.Errorf("Expected 4 tables, got %d", count)
	}
}

// TestReopenPreservesRuns tests that runs survive closing and reopening the file
func TestReopenPreservesRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	st, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	run := storetest.SampleRun("persisted", time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	if err := st.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	st.Close()

	st2, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("Reopen database: %v", err)
	}
	defer st2.Close()

	got, err := st2.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if got.ID != "persisted" || len(got.Records) != len(run.Records) {
		t.Errorf("run not preserved: %+v", got.Info())
	}
}

// TestCorruptCreatedAtIsReported tests that an unreadable timestamp fails the
// read instead of turning into the zero time
func TestCorruptCreatedAtIsReported(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)
	defer st.Close()

	run := storetest.SampleRun("corrupt", time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	if err := st.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	db := st.(*sqliteStore).db
	if _, err := db.ExecContext(ctx, `UPDATE runs SET created_at = 'yesterday' WHERE id = ?`, run.ID); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	if _, err := st.GetRun(ctx, run.ID); err == nil {
		t.Error("GetRun should fail on a corrupt created_at")
	}
	if _, err := st.ListRuns(ctx, 5); err == nil {
		t.Error("ListRuns should fail on a corrupt created_at")
	}
}
