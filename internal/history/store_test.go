package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runs := []Run{
		{Mode: "query", Request: "how many pdfs?", Script: "Get-ChildItem", Classification: "read", Succeeded: true, CreatedAt: time.Now().UTC().Add(-2 * time.Minute)},
		{Mode: "task", Request: "move pdfs", Script: "Move-Item", Classification: "write", Approved: true, Succeeded: true, CreatedAt: time.Now().UTC().Add(-time.Minute)},
		{Mode: "task", Request: "wipe system32", Classification: "unsafe", Detail: "cannot perform that operation", CreatedAt: time.Now().UTC()},
	}
	for _, r := range runs {
		if err := s.Record(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// Newest first.
	if got[0].Request != "wipe system32" || got[2].Request != "how many pdfs?" {
		t.Errorf("wrong order: %q, %q, %q", got[0].Request, got[1].Request, got[2].Request)
	}
	if got[0].Classification != "unsafe" || got[0].Approved || got[0].Succeeded {
		t.Errorf("unsafe run stored wrong: %+v", got[0])
	}
	if !got[1].Approved || !got[1].Succeeded {
		t.Errorf("approved run stored wrong: %+v", got[1])
	}
}

func TestRecord_FillsIDAndTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, Run{Mode: "query", Request: "q"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID == "" || got[0].CreatedAt.IsZero() {
		t.Errorf("ID/timestamp not filled: %+v", got)
	}
}

func TestRecent_Limit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Record(ctx, Run{Mode: "query", Request: "q", CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestRecent_OrdersSubsecondTimestamps(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Trimmed fractional seconds sort wrong as text (".51Z" before ".5Z");
	// the fixed-width stored form must keep these in true order.
	base := time.Date(2026, 8, 30, 12, 0, 0, 500_000_000, time.UTC)
	older := Run{Mode: "query", Request: "older", CreatedAt: base}
	newer := Run{Mode: "query", Request: "newer", CreatedAt: base.Add(10 * time.Millisecond)}
	for _, r := range []Run{older, newer} {
		if err := s.Record(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Request != "newer" || got[1].Request != "older" {
		t.Errorf("wrong order: %+v", got)
	}
	if !got[0].CreatedAt.Equal(newer.CreatedAt) {
		t.Errorf("timestamp round-trip = %v, want %v", got[0].CreatedAt, newer.CreatedAt)
	}
}

func TestOpen_CreatesSchemaIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Record(context.Background(), Run{Mode: "query", Request: "q"}); err != nil {
		t.Fatal(err)
	}
	if err := s1.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, err := s2.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want 1 after reopen", len(got))
	}
}
