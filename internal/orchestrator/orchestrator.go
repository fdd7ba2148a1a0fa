// Package orchestrator drives a full backup run: due-time check,
// connection test, sync, snapshot, retention cleanup, and session
// bookkeeping.
package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dirsave/dirsave/internal/backend"
	"github.com/dirsave/dirsave/internal/config"
	"github.com/dirsave/dirsave/internal/logging"
	"github.com/dirsave/dirsave/internal/session"
	"github.com/dirsave/dirsave/internal/types"
	"github.com/dirsave/dirsave/pkg/utils"
)

// BackupError represents a backup error with specific phase and exit code
type BackupError struct {
	Phase string         // "config", "connection", "sync", "session"
	Err   error          // Underlying error
	Code  types.ExitCode // Specific exit code
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

func (e *BackupError) Unwrap() error {
	return e.Err
}

// RunOutcome classifies how a backup invocation ended.
type RunOutcome string

const (
	OutcomeSuccess RunOutcome = "success"
	OutcomeSkipped RunOutcome = "skipped"
	OutcomeBusy    RunOutcome = "busy"
	OutcomeFailed  RunOutcome = "failed"
)

// RunResult summarizes one RunBackup invocation.
type RunResult struct {
	Outcome RunOutcome
	Session *session.Session
	Stats   *backend.SyncStats
}

// Orchestrator coordinates a backup run end to end. A single instance
// guards against overlapping runs, so the daemon and a manual invocation
// sharing one process never sync concurrently.
type Orchestrator struct {
	cfg      *config.Settings
	logger   *logging.Logger
	backend  backend.Backend
	sessions SessionStore
	checker  ConnectionChecker

	busy atomic.Bool

	// Injectable for tests
	now             func() time.Time
	saveLastSuccess func(time.Time) error
	ensureRemote    func(*config.Settings) error
}

// New creates an orchestrator from its collaborators.
func New(cfg *config.Settings, logger *logging.Logger, b backend.Backend, sessions SessionStore, checker ConnectionChecker) *Orchestrator {
	return &Orchestrator{
		cfg:             cfg,
		logger:          logger,
		backend:         b,
		sessions:        sessions,
		checker:         checker,
		now:             time.Now,
		saveLastSuccess: cfg.SetLastSuccessfulBackup,
		ensureRemote:    config.EnsureRemoteConfigured,
	}
}

// ShouldRun reports whether a backup is due. The interval boundary is
// inclusive: exactly BACKUP_INTERVAL_HOURS after the last success counts
// as due. Force bypasses the interval entirely.
func (o *Orchestrator) ShouldRun(force bool) bool {
	if force {
		return true
	}
	last := o.cfg.LastSuccessfulBackup
	if last.IsZero() {
		return true
	}
	interval := time.Duration(o.cfg.BackupIntervalHours) * time.Hour
	return o.now().Sub(last) >= interval
}

// RunBackup performs one backup run. Overlapping calls return
// OutcomeBusy without touching the destination; a run that is not yet
// due returns OutcomeSkipped without creating a session.
func (o *Orchestrator) RunBackup(ctx context.Context, force bool) (*RunResult, error) {
	if !o.busy.CompareAndSwap(false, true) {
		o.logger.Warning("Backup already in progress, skipping this run")
		return &RunResult{Outcome: OutcomeBusy}, nil
	}
	defer o.busy.Store(false)

	o.logger.Phase("Backup run starting")

	// Configuration problems are recorded as a failed session so the
	// history shows why nothing was backed up.
	if err := o.cfg.Validate(); err != nil {
		o.logger.Error("Configuration invalid: %v", err)
		sess := o.openSession()
		sess = o.closeSession(sess, session.Outcome{
			Status:       types.StatusFailed,
			ErrorMessage: err.Error(),
		})
		return &RunResult{Outcome: OutcomeFailed, Session: sess},
			&BackupError{Phase: "config", Err: err, Code: types.ExitConfigError}
	}

	if !o.ShouldRun(force) {
		o.logger.Skip("Backup not due yet (last success %s, interval %dh)",
			o.cfg.LastSuccessfulBackup.Format(time.RFC3339), o.cfg.BackupIntervalHours)
		return &RunResult{Outcome: OutcomeSkipped}, nil
	}

	sess := o.openSession()

	if err := o.ensureRemote(o.cfg); err != nil {
		o.logger.Error("Cannot prepare rclone remote: %v", err)
		sess = o.closeSession(sess, session.Outcome{
			Status:       types.StatusFailed,
			ErrorMessage: err.Error(),
		})
		return &RunResult{Outcome: OutcomeFailed, Session: sess},
			&BackupError{Phase: "config", Err: err, Code: types.ExitConfigError}
	}

	o.logger.Step("Testing connection to %s", o.backend.Name())
	if err := o.checker.TestConnection(ctx); err != nil {
		o.logger.Error("Connection test failed: %v", err)
		sess = o.closeSession(sess, session.Outcome{
			Status:       types.StatusConnectionError,
			ErrorMessage: err.Error(),
		})
		return &RunResult{Outcome: OutcomeFailed, Session: sess},
			&BackupError{Phase: "connection", Err: err, Code: types.ExitConnectionError}
	}

	o.logger.Step("Syncing %s", o.cfg.SourcePath)
	stats, err := o.backend.Sync(ctx)
	if err != nil {
		o.logger.Error("Sync failed: %v", err)
		sess = o.closeSession(sess, session.Outcome{
			Status:       types.StatusFailed,
			ErrorMessage: err.Error(),
		})
		return &RunResult{Outcome: OutcomeFailed, Session: sess},
			&BackupError{Phase: "sync", Err: err, Code: types.ExitSyncError}
	}

	// A failed snapshot leaves the mirror intact, so it degrades the run
	// to a warning instead of failing it.
	o.logger.Step("Creating dated snapshot")
	if err := o.backend.Snapshot(ctx, o.now()); err != nil {
		o.logger.Warning("Snapshot failed (mirror is up to date): %v", err)
	}

	// Session counters describe the destination mirror after the run,
	// not the incremental transfer.
	files, bytes := stats.FilesTransferred, stats.BytesTransferred
	if dest, err := o.backend.Stats(ctx); err != nil {
		o.logger.Warning("Cannot read destination stats, recording transfer counters: %v", err)
	} else {
		files, bytes = dest.FileCount, dest.TotalBytes
	}

	sess = o.closeSession(sess, session.Outcome{
		Status:        types.StatusSuccess,
		FilesBackedUp: files,
		TotalBytes:    bytes,
	})

	if err := o.saveLastSuccess(o.now()); err != nil {
		o.logger.Warning("Cannot persist last-success timestamp: %v", err)
	}

	o.runMaintenance(ctx)

	o.logger.Phase("Backup run completed: %d files, %s on destination",
		files, utils.FormatBytes(bytes))
	return &RunResult{Outcome: OutcomeSuccess, Session: sess, Stats: stats}, nil
}

// runMaintenance applies retention to snapshots and session history.
// Failures are warnings: the backup itself already succeeded.
func (o *Orchestrator) runMaintenance(ctx context.Context) {
	policy := backend.RetentionPolicy{
		DailyDays:   o.cfg.RetentionDailyDays,
		VersionDays: o.cfg.RetentionVersionDays,
	}
	if err := o.backend.Cleanup(ctx, policy); err != nil {
		o.logger.Warning("Snapshot cleanup failed: %v", err)
	}

	cutoff := o.now().AddDate(0, 0, -o.cfg.SessionRetentionDays)
	if pruned, err := o.sessions.Prune(cutoff); err != nil {
		o.logger.Warning("Session pruning failed: %v", err)
	} else if pruned > 0 {
		o.logger.Debug("Pruned %d old sessions", pruned)
	}
}

func (o *Orchestrator) openSession() *session.Session {
	sess, err := o.sessions.Create(o.now())
	if err != nil {
		o.logger.Warning("Cannot record session: %v", err)
		return nil
	}
	return sess
}

func (o *Orchestrator) closeSession(sess *session.Session, outcome session.Outcome) *session.Session {
	if sess == nil {
		return nil
	}
	completed, err := o.sessions.Complete(sess.ID, o.now(), outcome)
	if err != nil {
		o.logger.Warning("Cannot finalize session %s: %v", sess.ID, err)
		return sess
	}
	return completed
}
