package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/dirsave/dirsave/internal/config"
	"github.com/dirsave/dirsave/internal/logging"
)

// WebDAVBackend mirrors data to a WebDAV server by driving rclone as a
// subprocess. Transfer retries stay inside rclone (--retries); the only
// retry loop in Go is the connection check.
type WebDAVBackend struct {
	cfg    *config.Settings
	logger *logging.Logger
	runner Runner

	// Injectable for tests
	sleep func(time.Duration)
}

// NewWebDAVBackend creates a WebDAV backend.
func NewWebDAVBackend(cfg *config.Settings, logger *logging.Logger, runner Runner) *WebDAVBackend {
	return &WebDAVBackend{
		cfg:    cfg,
		logger: logger,
		runner: runner,
		sleep:  time.Sleep,
	}
}

// Name returns the backend name.
func (w *WebDAVBackend) Name() string {
	return "WebDAV Storage (rclone)"
}

// remoteRef builds "remote:backupPath/elem..." for rclone arguments.
func (w *WebDAVBackend) remoteRef(elem ...string) string {
	parts := append([]string{w.cfg.BackupPath}, elem...)
	return fmt.Sprintf("%s:%s", w.cfg.RemoteName, path.Join(parts...))
}

// buildArgs assembles the common rclone argument prefix for a subcommand.
func (w *WebDAVBackend) buildArgs(subcommand string) []string {
	return []string{
		subcommand,
		"--config", w.cfg.RcloneConfigPath,
	}
}

func (w *WebDAVBackend) operationCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(w.cfg.RcloneTimeoutOperation)*time.Second)
}

// TestConnection checks that rclone can list the remote root. It never
// writes to the destination; the backup path is created by the first
// sync. Retries with exponential backoff inside a connection-timeout
// context.
func (w *WebDAVBackend) TestConnection(ctx context.Context) error {
	if _, err := w.runner.LookPath("rclone"); err != nil {
		return w.opError("test_connection", w.remoteRef(), "", fmt.Errorf("rclone not found in PATH: %w", err))
	}

	timeoutSeconds := w.cfg.RcloneTimeoutConnection
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	const maxAttempts = 3

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if timeoutCtx.Err() != nil {
			break
		}

		err := w.checkRemoteOnce(timeoutCtx)
		if err == nil {
			return nil
		}
		lastErr = err

		if timeoutCtx.Err() == context.DeadlineExceeded {
			return w.opError("test_connection", w.remoteRef(), "",
				fmt.Errorf("connection timeout (%ds): %w", timeoutSeconds, err))
		}

		if attempt < maxAttempts {
			// Exponential backoff: 2s, 4s, ...
			waitTime := time.Duration(1<<uint(attempt)) * time.Second
			w.logger.Debug("Remote check attempt %d/%d failed: %v (retrying in %v)",
				attempt, maxAttempts, err, waitTime)
			w.sleep(waitTime)
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("remote check failed for unknown reasons")
	}
	return lastErr
}

func (w *WebDAVBackend) checkRemoteOnce(ctx context.Context) error {
	remoteRoot := w.cfg.RemoteName + ":"

	args := w.buildArgs("lsf")
	args = append(args, remoteRoot, "--max-depth", "1")
	w.logger.Debug("Running (remote root check): rclone %s", strings.Join(args, " "))
	output, err := w.runner.Run(ctx, "rclone", args...)
	if err != nil {
		return w.classify("test_connection", remoteRoot, output, err)
	}
	return nil
}

// Sync mirrors the source into the remote latest/ copy.
func (w *WebDAVBackend) Sync(ctx context.Context) (*SyncStats, error) {
	start := time.Now()

	opCtx, cancel := w.operationCtx(ctx)
	defer cancel()

	dest := w.remoteRef(latestDirName)
	args := w.buildArgs("sync")
	args = append(args,
		w.cfg.SourcePath, dest,
		"--transfers", strconv.Itoa(w.cfg.RcloneTransfers),
		"--retries", strconv.Itoa(w.cfg.RcloneRetries),
		"--timeout", fmt.Sprintf("%ds", w.cfg.RcloneTimeoutOperation),
		"--stats-one-line",
	)
	for _, pattern := range w.cfg.ExcludePatterns {
		args = append(args, "--exclude", pattern)
	}

	w.logger.Debug("Running (sync): rclone %s", strings.Join(args, " "))
	output, err := w.runner.Run(opCtx, "rclone", args...)
	if err != nil {
		return nil, w.classify("sync", dest, output, err)
	}

	w.logger.Info("WebDAV sync completed in %s", time.Since(start).Round(time.Second))
	return &SyncStats{Duration: time.Since(start)}, nil
}

// Snapshot copies the remote latest/ into a dated snapshot server-side.
// When the server refuses the copy (some WebDAV servers lack COPY
// support), it falls back to re-uploading the snapshot from the source.
func (w *WebDAVBackend) Snapshot(ctx context.Context, at time.Time) error {
	if !w.cfg.CreateDatedFolders {
		w.logger.Skip("Dated snapshots disabled (CREATE_DATED_FOLDERS=false)")
		return nil
	}

	opCtx, cancel := w.operationCtx(ctx)
	defer cancel()

	latest := w.remoteRef(latestDirName)
	version := w.remoteRef(versionsDirName, at.Format(versionLayout))
	if err := w.snapshotCopy(opCtx, latest, version); err != nil {
		return err
	}

	daily := w.remoteRef(dailyDirName, at.Format(dailyLayout))
	if err := w.snapshotCopy(opCtx, latest, daily); err != nil {
		return err
	}

	w.logger.Info("Snapshot created: %s", at.Format(versionLayout))
	return nil
}

func (w *WebDAVBackend) snapshotCopy(ctx context.Context, latest, dst string) error {
	err := w.serverSideCopy(ctx, latest, dst)
	if err == nil {
		return nil
	}
	w.logger.Warning("Server-side snapshot copy to %s failed, re-uploading from source: %v", dst, err)
	return w.uploadSnapshot(ctx, dst)
}

func (w *WebDAVBackend) uploadSnapshot(ctx context.Context, dst string) error {
	args := w.buildArgs("copy")
	args = append(args, w.cfg.SourcePath, dst,
		"--transfers", strconv.Itoa(w.cfg.RcloneTransfers),
		"--retries", strconv.Itoa(w.cfg.RcloneRetries),
	)
	for _, pattern := range w.cfg.ExcludePatterns {
		args = append(args, "--exclude", pattern)
	}
	w.logger.Debug("Running (snapshot upload): rclone %s", strings.Join(args, " "))
	output, err := w.runner.Run(ctx, "rclone", args...)
	if err != nil {
		return w.classify("snapshot", dst, output, err)
	}
	return nil
}

func (w *WebDAVBackend) serverSideCopy(ctx context.Context, src, dst string) error {
	args := w.buildArgs("copy")
	args = append(args, src, dst,
		"--retries", strconv.Itoa(w.cfg.RcloneRetries),
	)
	w.logger.Debug("Running (snapshot copy): rclone %s", strings.Join(args, " "))
	output, err := w.runner.Run(ctx, "rclone", args...)
	if err != nil {
		return w.classify("snapshot", dst, output, err)
	}
	return nil
}

// Cleanup removes snapshot files older than the retention policy, then
// prunes the emptied directories.
func (w *WebDAVBackend) Cleanup(ctx context.Context, policy RetentionPolicy) error {
	opCtx, cancel := w.operationCtx(ctx)
	defer cancel()

	if err := w.pruneRemoteDir(opCtx, w.remoteRef(versionsDirName), policy.VersionDays); err != nil {
		return err
	}
	return w.pruneRemoteDir(opCtx, w.remoteRef(dailyDirName), policy.DailyDays)
}

func (w *WebDAVBackend) pruneRemoteDir(ctx context.Context, ref string, maxAgeDays int) error {
	if maxAgeDays <= 0 {
		return nil
	}

	args := w.buildArgs("delete")
	args = append(args, ref, "--min-age", fmt.Sprintf("%dd", maxAgeDays))
	w.logger.Debug("Running (cleanup delete): rclone %s", strings.Join(args, " "))
	output, err := w.runner.Run(ctx, "rclone", args...)
	if err != nil {
		// A missing snapshot directory means nothing to clean.
		if kindOf(output) == kindPath {
			w.logger.Debug("Nothing to clean under %s", ref)
			return nil
		}
		return w.classify("cleanup", ref, output, err)
	}

	args = w.buildArgs("rmdirs")
	args = append(args, ref, "--leave-root")
	w.logger.Debug("Running (cleanup rmdirs): rclone %s", strings.Join(args, " "))
	if output, err := w.runner.Run(ctx, "rclone", args...); err != nil {
		w.logger.Debug("Empty-directory pruning failed for %s: %s", ref, strings.TrimSpace(string(output)))
	}
	return nil
}

// Stats runs `rclone size --json` on the remote latest/ copy.
func (w *WebDAVBackend) Stats(ctx context.Context) (*DestStats, error) {
	opCtx, cancel := w.operationCtx(ctx)
	defer cancel()

	ref := w.remoteRef(latestDirName)
	args := w.buildArgs("size")
	args = append(args, ref, "--json")
	w.logger.Debug("Running (stats): rclone %s", strings.Join(args, " "))
	output, err := w.runner.Run(opCtx, "rclone", args...)
	if err != nil {
		return nil, w.classify("stats", ref, output, err)
	}

	var parsed struct {
		Count int   `json:"count"`
		Bytes int64 `json:"bytes"`
	}
	if err := json.Unmarshal(output, &parsed); err != nil {
		return nil, w.opError("stats", ref, strings.TrimSpace(string(output)),
			fmt.Errorf("cannot parse rclone size output: %w", err))
	}

	return &DestStats{FileCount: parsed.Count, TotalBytes: parsed.Bytes}, nil
}

type errorKind string

const (
	kindTimeout errorKind = "timeout"
	kindAuth    errorKind = "auth"
	kindPath    errorKind = "path"
	kindNetwork errorKind = "network"
	kindOther   errorKind = "other"
)

// classify wraps a failed rclone invocation, tagging the failure class
// derived from the captured output.
func (w *WebDAVBackend) classify(op, target string, output []byte, err error) error {
	text := strings.TrimSpace(string(output))
	kind := kindOf(output)
	if errors.Is(err, context.DeadlineExceeded) {
		kind = kindTimeout
	}
	return w.opError(op, target, text, fmt.Errorf("%s error: %w", kind, err))
}

func kindOf(output []byte) errorKind {
	text := strings.ToLower(strings.TrimSpace(string(output)))
	switch {
	case containsAny(text,
		"directory not found",
		"file not found",
		"couldn't find root",
		"path not found"):
		return kindPath
	case containsAny(text,
		"failed to create file system",
		"couldn't find configuration section",
		"not found in config file",
		"401 unauthorized",
		"403 forbidden",
		"access denied",
		"permission denied"):
		return kindAuth
	case containsAny(text,
		"dial tcp",
		"connection refused",
		"network is unreachable",
		"host is down",
		"no such host"):
		return kindNetwork
	default:
		return kindOther
	}
}

func containsAny(text string, substrings ...string) bool {
	for _, s := range substrings {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func (w *WebDAVBackend) opError(op, target, output string, err error) error {
	return &BackendError{
		Backend:   w.Name(),
		Operation: op,
		Path:      target,
		Output:    output,
		Err:       err,
	}
}
