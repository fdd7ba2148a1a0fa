// Package backend provides the destination backends data is mirrored to:
// a local filesystem tree and a WebDAV server driven through rclone.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dirsave/dirsave/internal/config"
	"github.com/dirsave/dirsave/internal/logging"
	"github.com/dirsave/dirsave/internal/types"
)

// ErrRemoteTypeUnsupported is returned by New for declared remote types
// without a backend implementation (s3, sftp, ftp).
var ErrRemoteTypeUnsupported = errors.New("remote type not implemented")

// RetentionPolicy controls age-based snapshot cleanup.
type RetentionPolicy struct {
	DailyDays   int
	VersionDays int
}

// SyncStats summarizes one mirror pass.
type SyncStats struct {
	FilesTransferred int
	FilesDeleted     int
	BytesTransferred int64
	Duration         time.Duration
}

// DestStats describes the current mirror on the destination.
type DestStats struct {
	FileCount  int
	TotalBytes int64
}

// Backend mirrors a source tree to one destination and manages its
// dated snapshots.
type Backend interface {
	// Name returns the human-readable name of this backend.
	Name() string

	// TestConnection verifies the destination is usable without
	// transferring any data.
	TestConnection(ctx context.Context) error

	// Sync mirrors the source tree into the destination's latest copy,
	// deleting files that no longer exist in the source.
	Sync(ctx context.Context) (*SyncStats, error)

	// Snapshot captures the current latest copy as a dated snapshot,
	// preferring destination-side copies over re-reading the source.
	Snapshot(ctx context.Context, at time.Time) error

	// Cleanup deletes snapshots older than the retention policy allows.
	Cleanup(ctx context.Context, policy RetentionPolicy) error

	// Stats reports file count and byte total of the latest copy.
	Stats(ctx context.Context) (*DestStats, error)
}

// BackendError represents a failed backend operation with the captured
// tool output, when any.
type BackendError struct {
	Backend   string
	Operation string
	Path      string
	Output    string
	Err       error
}

func (e *BackendError) Error() string {
	msg := fmt.Sprintf("%s %s failed for %s", e.Backend, e.Operation, e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += " (" + e.Output + ")"
	}
	return msg
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// New selects the backend for the configured remote type.
func New(cfg *config.Settings, logger *logging.Logger, runner Runner) (Backend, error) {
	switch cfg.RemoteType {
	case types.RemoteLocal:
		return NewLocalBackend(cfg, logger), nil
	case types.RemoteWebDAV:
		return NewWebDAVBackend(cfg, logger, runner), nil
	case types.RemoteS3, types.RemoteSFTP, types.RemoteFTP:
		return nil, fmt.Errorf("%w: %s", ErrRemoteTypeUnsupported, cfg.RemoteType)
	default:
		return nil, fmt.Errorf("unknown remote type %q", cfg.RemoteType)
	}
}
