package backend

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dirsave/dirsave/internal/config"
	"github.com/dirsave/dirsave/internal/logging"
)

const (
	latestDirName   = "latest"
	versionsDirName = "versions"
	dailyDirName    = "daily"

	versionLayout = "20060102-150405"
	dailyLayout   = "20060102"
)

// LocalBackend mirrors the source tree into a directory on a local
// (or locally mounted) filesystem.
type LocalBackend struct {
	cfg    *config.Settings
	logger *logging.Logger

	// Injectable for tests
	now func() time.Time
}

// NewLocalBackend creates a local filesystem backend.
func NewLocalBackend(cfg *config.Settings, logger *logging.Logger) *LocalBackend {
	return &LocalBackend{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Name returns the backend name.
func (l *LocalBackend) Name() string {
	return "Local Storage"
}

func (l *LocalBackend) latestDir() string {
	return filepath.Join(l.cfg.DestinationPath, latestDirName)
}

// TestConnection verifies the destination exists, is a directory, and is
// writable via a scratch-file round trip.
func (l *LocalBackend) TestConnection(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(l.cfg.DestinationPath)
	if err != nil {
		return &BackendError{
			Backend:   l.Name(),
			Operation: "test_connection",
			Path:      l.cfg.DestinationPath,
			Err:       fmt.Errorf("destination not accessible: %w", err),
		}
	}
	if !info.IsDir() {
		return &BackendError{
			Backend:   l.Name(),
			Operation: "test_connection",
			Path:      l.cfg.DestinationPath,
			Err:       fmt.Errorf("destination is not a directory"),
		}
	}

	scratch := filepath.Join(l.cfg.DestinationPath, fmt.Sprintf(".dirsave-write-test-%d", l.now().UnixNano()))
	if err := os.WriteFile(scratch, []byte("ok"), 0600); err != nil {
		return &BackendError{
			Backend:   l.Name(),
			Operation: "test_connection",
			Path:      l.cfg.DestinationPath,
			Err:       fmt.Errorf("destination not writable: %w", err),
		}
	}
	os.Remove(scratch)
	return nil
}

// Sync mirrors the source into latest/, copying changed files and
// removing files that vanished from the source.
func (l *LocalBackend) Sync(ctx context.Context) (*SyncStats, error) {
	start := l.now()
	stats := &SyncStats{}

	srcRoot := l.cfg.SourcePath
	dstRoot := l.latestDir()

	if err := os.MkdirAll(dstRoot, 0755); err != nil {
		return nil, l.opError("sync", dstRoot, "", err)
	}

	// Relative paths present in the source, used for extraneous deletion.
	seen := map[string]bool{}

	err := filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if l.excluded(d.Name()) {
			l.logger.Debug("Excluding %s", rel)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		seen[rel] = true
		target := filepath.Join(dstRoot, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			l.logger.Debug("Skipping non-regular file %s", rel)
			return nil
		}

		srcInfo, err := d.Info()
		if err != nil {
			return err
		}
		if !needsCopy(srcInfo, target) {
			return nil
		}

		if err := copyFile(path, target, srcInfo); err != nil {
			return fmt.Errorf("copying %s: %w", rel, err)
		}
		stats.FilesTransferred++
		stats.BytesTransferred += srcInfo.Size()
		return nil
	})
	if err != nil {
		return nil, l.opError("sync", srcRoot, "", err)
	}

	deleted, err := l.deleteExtraneous(ctx, dstRoot, seen)
	if err != nil {
		return nil, l.opError("sync", dstRoot, "", err)
	}
	stats.FilesDeleted = deleted

	stats.Duration = l.now().Sub(start)
	l.logger.Info("Local sync: %d files copied, %d deleted", stats.FilesTransferred, stats.FilesDeleted)
	return stats, nil
}

// deleteExtraneous removes destination entries with no source counterpart.
func (l *LocalBackend) deleteExtraneous(ctx context.Context, dstRoot string, seen map[string]bool) (int, error) {
	var doomed []string

	err := filepath.WalkDir(dstRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dstRoot, path)
		if err != nil {
			return err
		}
		if rel == "." || seen[rel] {
			return nil
		}
		doomed = append(doomed, path)
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, path := range doomed {
		info, statErr := os.Stat(path)
		if statErr == nil && !info.IsDir() {
			deleted++
		}
		if err := os.RemoveAll(path); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// Snapshot hardlinks latest/ into versions/<timestamp> and refreshes the
// daily snapshot for the day. Reads only the destination, never the source.
func (l *LocalBackend) Snapshot(ctx context.Context, at time.Time) error {
	if !l.cfg.CreateDatedFolders {
		l.logger.Skip("Dated snapshots disabled (CREATE_DATED_FOLDERS=false)")
		return nil
	}

	latest := l.latestDir()
	if _, err := os.Stat(latest); err != nil {
		return l.opError("snapshot", latest, "", fmt.Errorf("nothing to snapshot: %w", err))
	}

	versionDir := filepath.Join(l.cfg.DestinationPath, versionsDirName, at.Format(versionLayout))
	if err := linkTree(ctx, latest, versionDir); err != nil {
		os.RemoveAll(versionDir)
		return l.opError("snapshot", versionDir, "", err)
	}

	dailyDir := filepath.Join(l.cfg.DestinationPath, dailyDirName, at.Format(dailyLayout))
	if _, err := os.Stat(dailyDir); os.IsNotExist(err) {
		if err := linkTree(ctx, latest, dailyDir); err != nil {
			os.RemoveAll(dailyDir)
			return l.opError("snapshot", dailyDir, "", err)
		}
	}

	l.logger.Info("Snapshot created: %s", filepath.Base(versionDir))
	return nil
}

// Cleanup removes dated snapshots older than the retention policy.
func (l *LocalBackend) Cleanup(ctx context.Context, policy RetentionPolicy) error {
	if err := l.pruneSnapshotDir(ctx, filepath.Join(l.cfg.DestinationPath, versionsDirName), versionLayout, policy.VersionDays); err != nil {
		return err
	}
	return l.pruneSnapshotDir(ctx, filepath.Join(l.cfg.DestinationPath, dailyDirName), dailyLayout, policy.DailyDays)
}

func (l *LocalBackend) pruneSnapshotDir(ctx context.Context, dir, layout string, maxAgeDays int) error {
	if maxAgeDays <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return l.opError("cleanup", dir, "", err)
	}

	cutoff := l.now().AddDate(0, 0, -maxAgeDays)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		ts, err := time.ParseInLocation(layout, name, time.Local)
		if err != nil {
			l.logger.Debug("Ignoring unrecognized snapshot directory %s", name)
			continue
		}
		if ts.Before(cutoff) {
			path := filepath.Join(dir, name)
			l.logger.Info("Removing expired snapshot %s", name)
			if err := os.RemoveAll(path); err != nil {
				return l.opError("cleanup", path, "", err)
			}
		}
	}
	return nil
}

// Stats walks latest/ and reports file count and byte total.
func (l *LocalBackend) Stats(ctx context.Context) (*DestStats, error) {
	stats := &DestStats{}
	err := filepath.WalkDir(l.latestDir(), func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.FileCount++
		stats.TotalBytes += info.Size()
		return nil
	})
	if err != nil {
		return nil, l.opError("stats", l.latestDir(), "", err)
	}
	return stats, nil
}

func (l *LocalBackend) excluded(name string) bool {
	for _, pattern := range l.cfg.ExcludePatterns {
		if pattern == name {
			return true
		}
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

func (l *LocalBackend) opError(op, path, output string, err error) error {
	return &BackendError{
		Backend:   l.Name(),
		Operation: op,
		Path:      path,
		Output:    output,
		Err:       err,
	}
}

// needsCopy reports whether target is missing or differs from src by size
// or modification time.
func needsCopy(srcInfo os.FileInfo, target string) bool {
	dstInfo, err := os.Stat(target)
	if err != nil {
		return true
	}
	if dstInfo.Size() != srcInfo.Size() {
		return true
	}
	return !dstInfo.ModTime().Equal(srcInfo.ModTime())
}

func copyFile(src, dst string, srcInfo os.FileInfo) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".dirsave-partial"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Chtimes(dst, srcInfo.ModTime(), srcInfo.ModTime())
}

// linkTree replicates src into dst using hardlinks, falling back to a
// plain copy when linking fails (e.g. across filesystems).
func linkTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := os.Link(path, target); err != nil {
			info, statErr := d.Info()
			if statErr != nil {
				return statErr
			}
			return copyFile(path, target, info)
		}
		return nil
	})
}
