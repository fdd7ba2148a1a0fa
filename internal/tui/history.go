package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/dirsave/dirsave/internal/session"
	"github.com/dirsave/dirsave/pkg/utils"
)

var historyHeaders = []string{"Started", "Status", "Duration", "Files", "Size", "Error"}

// HistoryView is an interactive browser over recorded backup sessions:
// a table of runs with a detail pane for the selected one.
type HistoryView struct {
	app      *App
	sessions []*session.Session
	table    *tview.Table
	detail   *tview.TextView
}

// NewHistoryView builds the browser for the given sessions, expected
// newest first.
func NewHistoryView(sessions []*session.Session) *HistoryView {
	h := &HistoryView{
		app:      NewApp(),
		sessions: sessions,
		table:    tview.NewTable(),
		detail:   tview.NewTextView(),
	}

	h.table.SetSelectable(true, false).
		SetFixed(1, 0).
		SetBorder(true).
		SetTitle(" Backup History ").
		SetTitleColor(AccentBlue)
	h.table.SetSelectionChangedFunc(func(row, col int) {
		h.showDetail(row - 1)
	})

	h.detail.SetDynamicColors(true).
		SetBorder(true).
		SetTitle(" Details ").
		SetTitleColor(AccentBlue)

	h.fillTable()
	if len(sessions) > 0 {
		h.table.Select(1, 0)
		h.showDetail(0)
	} else {
		h.detail.SetText("No backup sessions recorded yet.")
	}

	h.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			h.app.Stop()
			return nil
		}
		return event
	})

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(h.table, 0, 3, true).
		AddItem(h.detail, 0, 1, false)
	h.app.SetRoot(layout, true)

	return h
}

// Run starts the browser and blocks until the user quits.
func (h *HistoryView) Run() error {
	return h.app.Run()
}

func (h *HistoryView) fillTable() {
	for col, header := range historyHeaders {
		cell := tview.NewTableCell(header).
			SetTextColor(AccentBlue).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold)
		h.table.SetCell(0, col, cell)
	}

	for i, sess := range h.sessions {
		cells := historyRow(sess)
		color := StatusColor(sess.Status.String())
		for col, text := range cells {
			cell := tview.NewTableCell(text).SetTextColor(White)
			if col == 1 {
				cell.SetTextColor(color)
			}
			h.table.SetCell(i+1, col, cell)
		}
	}
}

func (h *HistoryView) showDetail(index int) {
	if index < 0 || index >= len(h.sessions) {
		return
	}
	h.detail.SetText(historyDetail(h.sessions[index]))
}

// historyRow renders the table cells for one session.
func historyRow(s *session.Session) []string {
	duration := "-"
	if s.EndTime != nil {
		duration = utils.FormatDuration(s.Duration())
	}
	errMsg := s.ErrorMessage
	if errMsg == "" {
		errMsg = "-"
	}
	return []string{
		s.StartTime.Local().Format("2006-01-02 15:04:05"),
		StatusSymbol(s.Status.String()) + " " + s.Status.String(),
		duration,
		fmt.Sprintf("%d", s.FilesBackedUp),
		utils.FormatBytes(s.TotalBytes),
		errMsg,
	}
}

// historyDetail renders the detail pane text for one session.
func historyDetail(s *session.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session:  %s\n", s.ID)
	fmt.Fprintf(&b, "Started:  %s\n", s.StartTime.Local().Format(time.RFC1123))
	if s.EndTime != nil {
		fmt.Fprintf(&b, "Finished: %s (%s)\n", s.EndTime.Local().Format(time.RFC1123), utils.FormatDuration(s.Duration()))
	} else {
		fmt.Fprintf(&b, "Finished: still running\n")
	}
	fmt.Fprintf(&b, "Status:   %s %s\n", StatusSymbol(s.Status.String()), s.Status)
	fmt.Fprintf(&b, "Files:    %d\n", s.FilesBackedUp)
	fmt.Fprintf(&b, "Size:     %s\n", utils.FormatBytes(s.TotalBytes))
	if s.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error:    %s\n", s.ErrorMessage)
	}
	return b.String()
}
