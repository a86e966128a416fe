package history

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func snapshot(summary string, pros ...string) Snapshot {
	return Snapshot{
		Summary:             summary,
		Pros:                pros,
		Cons:                []string{"Early termination fee"},
		PotentialLoopholes:  []string{},
		PotentialChallenges: []string{},
		Language:            "en",
		Provider:            "googleai",
		Model:               "gemini-2.5-flash",
	}
}

func TestRecordAndReadHistory(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	first, err := svc.Record("doc_1", snapshot("Lease.", "Fixed rent"), "Avery", "Analyze in English")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(first.Hash) != 7 || first.Author != "Avery" || first.Message != "Analyze in English" {
		t.Fatalf("unexpected commit %+v", first)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "doc_1", snapshotFile)); err != nil {
		t.Fatalf("snapshot file missing: %v", err)
	}

	rerun := snapshot("Lease in Hindi.", "Fixed rent", "Deposit returned")
	rerun.Language = "hi"
	second, err := svc.Record("doc_1", rerun, "Avery", "Re-analyze in Hindi")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	history, err := svc.History("doc_1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Hash != second.Hash || history[1].Hash != first.Hash {
		t.Fatalf("expected newest first, got %+v", history)
	}
	limited, err := svc.History("doc_1", 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected one entry, got %+v %v", limited, err)
	}

	got, info, err := svc.Get("doc_1", first.Hash)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Summary != "Lease." || info.Hash != first.Hash {
		t.Fatalf("unexpected snapshot %+v %+v", got, info)
	}
}

func TestIdenticalRerunStillCommits(t *testing.T) {
	svc := New(t.TempDir())
	for i := 0; i < 2; i++ {
		if _, err := svc.Record("doc_1", snapshot("Same."), "Avery", "Analyze"); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	history, err := svc.History("doc_1", 0)
	if err != nil || len(history) != 2 {
		t.Fatalf("expected two runs, got %+v %v", history, err)
	}
}

func TestMissingHistory(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.History("doc_none", 0); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
	if _, _, err := svc.Get("doc_none", "abc1234"); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
}

func TestRejectsPathLikeIDs(t *testing.T) {
	svc := New(t.TempDir())
	for _, id := range []string{"", "..", "../escape", "a/b", ".git"} {
		if _, err := svc.Record(id, snapshot("x"), "Avery", "Analyze"); !errors.Is(err, ErrInvalidDocument) {
			t.Fatalf("id %q: expected ErrInvalidDocument, got %v", id, err)
		}
	}
}

func TestRemove(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)
	if _, err := svc.Record("doc_1", snapshot("Lease."), "Avery", "Analyze"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := svc.Remove("doc_1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "doc_1")); !os.IsNotExist(err) {
		t.Fatalf("expected repo removed, got %v", err)
	}
}

func TestConcurrentRecordsAreSerialized(t *testing.T) {
	svc := New(t.TempDir())
	svc.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Record("doc_1", snapshot("Lease."), "Avery", "Analyze"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Record() error = %v", err)
	}
	history, err := svc.History("doc_1", 0)
	if err != nil || len(history) != 5 {
		t.Fatalf("expected five runs, got %d %v", len(history), err)
	}
}

func TestDiffSnapshots(t *testing.T) {
	legal := true
	from := snapshot("Lease.", "Fixed rent", "Pets allowed")
	to := snapshot("Lease.", "Fixed rent", "Deposit returned")
	to.IsLegal = &legal
	to.Language = "ta"

	changes := DiffSnapshots(from, to)
	byField := map[string]FieldChange{}
	for _, change := range changes {
		byField[change.Field] = change
	}
	if _, ok := byField["summary"]; ok {
		t.Fatal("summary did not change")
	}
	pros := byField["pros"]
	if len(pros.Added) != 1 || pros.Added[0] != "Deposit returned" || len(pros.Removed) != 1 || pros.Removed[0] != "Pets allowed" {
		t.Fatalf("unexpected pros change %+v", pros)
	}
	if byField["isLegal"].After != "true" || byField["language"].After != "ta" {
		t.Fatalf("unexpected changes %+v", changes)
	}
	if len(DiffSnapshots(from, from)) != 0 {
		t.Fatal("identical snapshots must not differ")
	}
}
