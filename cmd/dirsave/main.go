package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/dirsave/dirsave/internal/backend"
	"github.com/dirsave/dirsave/internal/checks"
	"github.com/dirsave/dirsave/internal/cli"
	"github.com/dirsave/dirsave/internal/config"
	"github.com/dirsave/dirsave/internal/credential"
	"github.com/dirsave/dirsave/internal/logging"
	"github.com/dirsave/dirsave/internal/orchestrator"
	"github.com/dirsave/dirsave/internal/session"
	"github.com/dirsave/dirsave/internal/tui"
	"github.com/dirsave/dirsave/internal/types"
	"github.com/dirsave/dirsave/internal/version"
)

// Build-time variables (injected via ldflags)
var buildTime = ""

func main() {
	os.Exit(run())
}

func run() int {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(types.ExitPanicError.Int())
		}
	}()

	args, err := cli.Parse(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		cli.PrintHelp(os.Stderr, os.Args[0])
		return types.ExitGenericError.Int()
	}

	switch args.Command {
	case cli.CommandHelp:
		cli.PrintHelp(os.Stdout, os.Args[0])
		return types.ExitSuccess.Int()
	case cli.CommandVersion:
		printVersion()
		return types.ExitSuccess.Int()
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logging.Warning("Received signal %v, shutting down...", sig)
		cancel()
	}()
	tui.SetAbortContext(ctx)

	if args.Command == cli.CommandConfigure {
		return runConfigure(ctx, args)
	}

	cfg, err := config.Load(args.ConfigPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "No configuration at %s (%s).\nRun %q to create one.\n",
				args.ConfigPath, args.ConfigPathSource, os.Args[0]+" configure")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return types.ExitConfigError.Int()
	}

	logger := newLogger(cfg, args)
	defer logger.CloseLogFile()

	codec := credential.NewCodec(logger)
	b, err := backend.New(cfg, logger, backend.NewOSRunner())
	if err != nil {
		logger.Error("%v", err)
		return types.ExitConfigError.Int()
	}
	checker := checks.NewChecker(cfg, logger, b, codec)

	switch args.Command {
	case cli.CommandRun:
		return runBackup(ctx, cfg, logger, b, checker, args.Force)
	case cli.CommandDaemon:
		return runDaemon(ctx, cfg, logger, b, checker)
	case cli.CommandTestConnection:
		return runTestConnection(ctx, logger, checker)
	case cli.CommandDebugConnection:
		return runDebugConnection(ctx, checker)
	case cli.CommandStatus:
		return runStatus(cfg, logger)
	case cli.CommandHistory:
		return runHistory(cfg, logger, args)
	case cli.CommandCleanup:
		return runCleanup(ctx, cfg, logger, b)
	}

	return types.ExitGenericError.Int()
}

// newLogger builds the logger from the configuration, with CLI flags
// taking precedence.
func newLogger(cfg *config.Settings, args *cli.Args) *logging.Logger {
	level := cfg.DebugLevel
	if args.LogLevel != types.LogLevelNone {
		level = args.LogLevel
	}
	useColor := cfg.UseColor && !args.NoColor

	logger := logging.New(level, useColor)
	logging.SetDefaultLogger(logger)

	if cfg.LogPath != "" {
		if err := logger.OpenLogFile(cfg.LogPath); err != nil {
			logger.Warning("Cannot open log file %s: %v", cfg.LogPath, err)
		}
	}
	return logger
}

// openStore opens the session database and reconciles sessions left
// running by a previous crash.
func openStore(cfg *config.Settings, logger *logging.Logger) (*session.Store, error) {
	store, err := session.Open(cfg.SessionDBPath)
	if err != nil {
		return nil, err
	}
	if reconciled, err := store.ReconcileStale(time.Now()); err != nil {
		logger.Warning("Cannot reconcile stale sessions: %v", err)
	} else if reconciled > 0 {
		logger.Warning("Marked %d interrupted sessions as failed", reconciled)
	}
	return store, nil
}

func runBackup(ctx context.Context, cfg *config.Settings, logger *logging.Logger, b backend.Backend, checker *checks.Checker, force bool) int {
	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("%v", err)
		return types.ExitSessionError.Int()
	}
	defer store.Close()

	orch := orchestrator.New(cfg, logger, b, store, checker)
	result, err := orch.RunBackup(ctx, force)
	if err != nil {
		var be *orchestrator.BackupError
		if errors.As(err, &be) {
			return be.Code.Int()
		}
		logger.Error("%v", err)
		return types.ExitGenericError.Int()
	}

	switch result.Outcome {
	case orchestrator.OutcomeSkipped:
		fmt.Println("Backup not due yet; use --force to run anyway.")
	case orchestrator.OutcomeBusy:
		fmt.Println("Another backup is already in progress.")
	}
	return types.ExitSuccess.Int()
}

func runDaemon(ctx context.Context, cfg *config.Settings, logger *logging.Logger, b backend.Backend, checker *checks.Checker) int {
	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("%v", err)
		return types.ExitSessionError.Int()
	}
	defer store.Close()

	orch := orchestrator.New(cfg, logger, b, store, checker)
	sched := orchestrator.NewScheduler(orch, logger, cfg.Schedule)
	if err := sched.Run(ctx); err != nil {
		logger.Error("%v", err)
		return types.ExitConfigError.Int()
	}
	return types.ExitSuccess.Int()
}

func runTestConnection(ctx context.Context, logger *logging.Logger, checker *checks.Checker) int {
	if err := checker.TestConnection(ctx); err != nil {
		fmt.Printf("Connection test failed: %v\n", err)
		return types.ExitConnectionError.Int()
	}
	fmt.Println("Connection OK")
	return types.ExitSuccess.Int()
}

func runCleanup(ctx context.Context, cfg *config.Settings, logger *logging.Logger, b backend.Backend) int {
	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("%v", err)
		return types.ExitSessionError.Int()
	}
	defer store.Close()

	policy := backend.RetentionPolicy{
		DailyDays:   cfg.RetentionDailyDays,
		VersionDays: cfg.RetentionVersionDays,
	}
	if err := b.Cleanup(ctx, policy); err != nil {
		logger.Error("Snapshot cleanup failed: %v", err)
		return types.ExitGenericError.Int()
	}

	cutoff := time.Now().AddDate(0, 0, -cfg.SessionRetentionDays)
	pruned, err := store.Prune(cutoff)
	if err != nil {
		logger.Error("Session pruning failed: %v", err)
		return types.ExitSessionError.Int()
	}

	fmt.Printf("Cleanup complete: snapshots older than %dd/%dd removed, %d sessions pruned.\n",
		cfg.RetentionVersionDays, cfg.RetentionDailyDays, pruned)
	return types.ExitSuccess.Int()
}

func printVersion() {
	fmt.Printf("dirsave %s\n", version.String())
	if version.Commit != "" {
		fmt.Printf("  commit: %s\n", version.Commit)
	}
	if version.Date != "" {
		fmt.Printf("  built:  %s\n", version.Date)
	} else if buildTime != "" {
		fmt.Printf("  built:  %s\n", buildTime)
	}
}
