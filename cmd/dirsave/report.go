package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dirsave/dirsave/internal/checks"
	"github.com/dirsave/dirsave/internal/cli"
	"github.com/dirsave/dirsave/internal/config"
	"github.com/dirsave/dirsave/internal/logging"
	"github.com/dirsave/dirsave/internal/session"
	"github.com/dirsave/dirsave/internal/tui"
	"github.com/dirsave/dirsave/internal/types"
	"github.com/dirsave/dirsave/pkg/utils"
)

// tuiHistory is a variable so tests can avoid opening a real terminal.
var tuiHistory = func(sessions []*session.Session) error {
	return tui.NewHistoryView(sessions).Run()
}

var titleCaser = cases.Title(language.English)

func runDebugConnection(ctx context.Context, checker *checks.Checker) int {
	results, err := checker.DebugConnection(ctx)

	fmt.Println("Connection diagnostics:")
	for _, result := range results {
		mark := "ok"
		if !result.Passed {
			mark = "FAIL"
		}
		fmt.Printf("  [%-4s] %-22s %s\n", mark, result.Name, result.Message)
	}

	// Failing checks still exit 0: this command reports, it does not gate.
	if err != nil {
		fmt.Printf("\nResult: %v\n", err)
	} else {
		fmt.Println("\nAll checks passed.")
	}
	return types.ExitSuccess.Int()
}

func runStatus(cfg *config.Settings, logger *logging.Logger) int {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	destination := cfg.DestinationPath
	if cfg.RemoteType == types.RemoteWebDAV {
		destination = cfg.BaseURL() + "/" + cfg.BackupPath
	}
	printRow(w, "remote type", cfg.RemoteType.String())
	printRow(w, "source", cfg.SourcePath)
	printRow(w, "destination", destination)
	printRow(w, "backup interval", fmt.Sprintf("%dh", cfg.BackupIntervalHours))

	if cfg.LastSuccessfulBackup.IsZero() {
		printRow(w, "last backup", "never")
		printRow(w, "next backup", "due now")
	} else {
		since := time.Since(cfg.LastSuccessfulBackup)
		printRow(w, "last backup", fmt.Sprintf("%s (%s ago)",
			cfg.LastSuccessfulBackup.Local().Format("2006-01-02 15:04:05"),
			utils.FormatDuration(since)))
		due := cfg.LastSuccessfulBackup.Add(time.Duration(cfg.BackupIntervalHours) * time.Hour)
		if time.Now().After(due) || time.Now().Equal(due) {
			printRow(w, "next backup", "due now")
		} else {
			printRow(w, "next backup", fmt.Sprintf("in %s", utils.FormatDuration(time.Until(due))))
		}
	}

	// The last recorded session adds the result detail the timestamp alone
	// cannot show (e.g. a failing destination).
	if store, err := session.Open(cfg.SessionDBPath); err == nil {
		if recent, err := store.Recent(1); err == nil && len(recent) > 0 {
			last := recent[0]
			printRow(w, "last session", fmt.Sprintf("%s (%d files, %s)",
				last.Status, last.FilesBackedUp, utils.FormatBytes(last.TotalBytes)))
			if last.ErrorMessage != "" {
				printRow(w, "last error", last.ErrorMessage)
			}
		}
		store.Close()
	}

	w.Flush()
	return types.ExitSuccess.Int()
}

func printRow(w *tabwriter.Writer, label, value string) {
	fmt.Fprintf(w, "%s:\t%s\n", titleCaser.String(label), value)
}

func runHistory(cfg *config.Settings, logger *logging.Logger, args *cli.Args) int {
	store, err := session.Open(cfg.SessionDBPath)
	if err != nil {
		logger.Error("%v", err)
		return types.ExitSessionError.Int()
	}
	defer store.Close()

	sessions, err := store.Recent(args.HistoryLimit)
	if err != nil {
		logger.Error("%v", err)
		return types.ExitSessionError.Int()
	}

	if args.Interactive {
		if err := tuiHistory(sessions); err != nil {
			logger.Error("History view failed: %v", err)
			return types.ExitGenericError.Int()
		}
		return types.ExitSuccess.Int()
	}

	if len(sessions) == 0 {
		fmt.Println("No backup sessions recorded yet.")
		return types.ExitSuccess.Int()
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATUS\tDURATION\tFILES\tSIZE\tERROR")
	for _, s := range sessions {
		duration := "-"
		if s.EndTime != nil {
			duration = utils.FormatDuration(s.Duration())
		}
		errMsg := s.ErrorMessage
		if errMsg == "" {
			errMsg = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			s.StartTime.Local().Format("2006-01-02 15:04:05"),
			s.Status, duration, s.FilesBackedUp,
			utils.FormatBytes(s.TotalBytes), truncate(errMsg, 60))
	}
	w.Flush()
	return types.ExitSuccess.Int()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max-3]) + "..."
}
