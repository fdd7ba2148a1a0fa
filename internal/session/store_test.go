package session

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dirsave/dirsave/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)

	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	created, err := store.Create(start)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Error("session ID is empty")
	}
	if created.Status != types.StatusRunning {
		t.Errorf("Status = %s; want running", created.Status)
	}

	got, err := store.Get(created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.StartTime.Equal(start) {
		t.Errorf("StartTime = %v; want %v", got.StartTime, start)
	}
	if got.EndTime != nil {
		t.Error("running session should have no end time")
	}
}

func TestCompleteExactlyOnce(t *testing.T) {
	store := newTestStore(t)

	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	created, err := store.Create(start)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	end := start.Add(90 * time.Second)
	completed, err := store.Complete(created.ID, end, Outcome{
		Status:        types.StatusSuccess,
		FilesBackedUp: 42,
		TotalBytes:    1 << 20,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completed.Status != types.StatusSuccess {
		t.Errorf("Status = %s; want success", completed.Status)
	}
	if completed.FilesBackedUp != 42 || completed.TotalBytes != 1<<20 {
		t.Errorf("counters = %d/%d; want 42/1048576", completed.FilesBackedUp, completed.TotalBytes)
	}
	if completed.Duration() != 90*time.Second {
		t.Errorf("Duration = %v; want 90s", completed.Duration())
	}

	// A second completion must not overwrite the terminal record.
	_, err = store.Complete(created.ID, end.Add(time.Hour), Outcome{Status: types.StatusFailed, ErrorMessage: "late"})
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("second Complete error = %v; want ErrAlreadyCompleted", err)
	}

	got, err := store.Get(created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != types.StatusSuccess || got.ErrorMessage != "" {
		t.Errorf("terminal record mutated: %+v", got)
	}
}

func TestCompleteUnknownSession(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Complete("no-such-id", time.Now(), Outcome{Status: types.StatusFailed})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("error = %v; want ErrSessionNotFound", err)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 5; i++ {
		s, err := store.Create(base.AddDate(0, 0, i))
		if err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		ids = append(ids, s.ID)
	}

	recent, err := store.Recent(3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("len(recent) = %d; want 3", len(recent))
	}
	if recent[0].ID != ids[4] || recent[1].ID != ids[3] || recent[2].ID != ids[2] {
		t.Errorf("order wrong: %s %s %s", recent[0].ID, recent[1].ID, recent[2].ID)
	}

	all, err := store.Recent(0)
	if err != nil {
		t.Fatalf("Recent(0): %v", err)
	}
	if len(all) != 5 {
		t.Errorf("Recent(0) returned %d sessions; want all 5", len(all))
	}
}

func TestPrune(t *testing.T) {
	store := newTestStore(t)

	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	old, err := store.Create(now.AddDate(0, 0, -40))
	if err != nil {
		t.Fatalf("Create old: %v", err)
	}
	// Terminal status does not protect a session from pruning.
	if _, err := store.Complete(old.ID, now.AddDate(0, 0, -40), Outcome{Status: types.StatusSuccess}); err != nil {
		t.Fatalf("Complete old: %v", err)
	}
	fresh, err := store.Create(now.AddDate(0, 0, -5))
	if err != nil {
		t.Fatalf("Create fresh: %v", err)
	}

	deleted, err := store.Prune(now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d; want 1", deleted)
	}
	if _, err := store.Get(old.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("old session survived prune")
	}
	if _, err := store.Get(fresh.ID); err != nil {
		t.Errorf("fresh session pruned: %v", err)
	}
}

func TestReconcileStale(t *testing.T) {
	store := newTestStore(t)

	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	stale, err := store.Create(start)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	done, err := store.Create(start)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Complete(done.ID, start.Add(time.Minute), Outcome{Status: types.StatusSuccess}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	now := start.Add(time.Hour)
	reconciled, err := store.ReconcileStale(now)
	if err != nil {
		t.Fatalf("ReconcileStale: %v", err)
	}
	if reconciled != 1 {
		t.Errorf("reconciled = %d; want 1", reconciled)
	}

	got, err := store.Get(stale.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != types.StatusFailed {
		t.Errorf("Status = %s; want failed", got.Status)
	}
	if got.ErrorMessage != "interrupted by shutdown" {
		t.Errorf("ErrorMessage = %q", got.ErrorMessage)
	}
	if got.EndTime == nil || !got.EndTime.Equal(now) {
		t.Errorf("EndTime = %v; want %v", got.EndTime, now)
	}

	// Terminal sessions are untouched.
	gotDone, err := store.Get(done.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotDone.Status != types.StatusSuccess {
		t.Errorf("completed session mutated: %s", gotDone.Status)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	created, err := store.Create(time.Now())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(created.ID); err != nil {
		t.Fatalf("session lost across reopen: %v", err)
	}
}
