package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/dirsave/dirsave/internal/session"
	"github.com/dirsave/dirsave/internal/types"
)

func sampleSession() *session.Session {
	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	end := start.Add(95 * time.Second)
	return &session.Session{
		ID:            "abc-123",
		StartTime:     start,
		EndTime:       &end,
		Status:        types.StatusSuccess,
		FilesBackedUp: 120,
		TotalBytes:    3 * 1024 * 1024,
	}
}

func TestHistoryRow(t *testing.T) {
	row := historyRow(sampleSession())
	if len(row) != len(historyHeaders) {
		t.Fatalf("row has %d cells; want %d", len(row), len(historyHeaders))
	}
	if row[0] != "2026-08-30 10:00:00" {
		t.Errorf("start cell = %q", row[0])
	}
	if !strings.Contains(row[1], "success") || !strings.Contains(row[1], SymbolSuccess) {
		t.Errorf("status cell = %q", row[1])
	}
	if row[2] != "1m35s" {
		t.Errorf("duration cell = %q; want 1m35s", row[2])
	}
	if row[3] != "120" {
		t.Errorf("files cell = %q", row[3])
	}
	if row[4] != "3.0 MB" {
		t.Errorf("size cell = %q", row[4])
	}
	if row[5] != "-" {
		t.Errorf("error cell = %q; want -", row[5])
	}
}

func TestHistoryRowRunningSession(t *testing.T) {
	s := sampleSession()
	s.EndTime = nil
	s.Status = types.StatusRunning

	row := historyRow(s)
	if row[2] != "-" {
		t.Errorf("running session duration = %q; want -", row[2])
	}
}

func TestHistoryRowCarriesError(t *testing.T) {
	s := sampleSession()
	s.Status = types.StatusConnectionError
	s.ErrorMessage = "dial tcp: connection refused"

	row := historyRow(s)
	if row[5] != "dial tcp: connection refused" {
		t.Errorf("error cell = %q", row[5])
	}
	if !strings.Contains(row[1], SymbolError) {
		t.Errorf("status cell = %q; want error symbol", row[1])
	}
}

func TestHistoryDetail(t *testing.T) {
	s := sampleSession()
	s.ErrorMessage = "boom"

	detail := historyDetail(s)
	for _, want := range []string{"abc-123", "1m35s", "120", "3.0 MB", "boom"} {
		if !strings.Contains(detail, want) {
			t.Errorf("detail missing %q:\n%s", want, detail)
		}
	}
}

func TestNewHistoryViewPopulatesTable(t *testing.T) {
	sessions := []*session.Session{sampleSession(), sampleSession()}
	view := NewHistoryView(sessions)

	if got := view.table.GetRowCount(); got != 3 {
		t.Fatalf("row count = %d; want header + 2 sessions", got)
	}
	if got := view.table.GetCell(0, 0).Text; got != "Started" {
		t.Errorf("header cell = %q", got)
	}
	if got := view.table.GetCell(1, 3).Text; got != "120" {
		t.Errorf("files cell = %q; want 120", got)
	}
}

func TestNewHistoryViewEmpty(t *testing.T) {
	view := NewHistoryView(nil)
	if got := view.table.GetRowCount(); got != 1 {
		t.Errorf("row count = %d; want header only", got)
	}
	if text := view.detail.GetText(true); !strings.Contains(text, "No backup sessions") {
		t.Errorf("detail = %q", text)
	}
}
