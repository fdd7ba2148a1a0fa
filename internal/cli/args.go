package cli

import (
	"flag"
	"fmt"
	"io"

	"github.com/dirsave/dirsave/internal/types"
)

const (
	defaultConfigPath   = "./configs/dirsave.env"
	configSourceDefault = "default path"
	configSourceFlag    = "specified via --config/-c flag"
)

// Command identifies the requested subcommand.
type Command string

const (
	CommandRun             Command = "run"
	CommandTestConnection  Command = "test-connection"
	CommandDebugConnection Command = "debug-connection"
	CommandStatus          Command = "status"
	CommandHistory         Command = "history"
	CommandCleanup         Command = "cleanup"
	CommandConfigure       Command = "configure"
	CommandDaemon          Command = "daemon"
	CommandVersion         Command = "version"
	CommandHelp            Command = "help"
)

// Args holds the parsed command-line arguments
type Args struct {
	Command          Command
	ConfigPath       string
	ConfigPathSource string
	LogLevel         types.LogLevel
	NoColor          bool

	// run
	Force bool

	// history
	HistoryLimit int
	Interactive  bool
}

// Parse parses command-line arguments and returns Args struct.
// argv is the full argument vector including the program name.
func Parse(argv []string) (*Args, error) {
	args := &Args{HistoryLimit: 20}

	if len(argv) < 2 {
		return nil, fmt.Errorf("missing command (try %q)", "help")
	}

	cmd := Command(argv[1])
	switch cmd {
	case CommandRun, CommandTestConnection, CommandDebugConnection,
		CommandStatus, CommandHistory, CommandCleanup,
		CommandConfigure, CommandDaemon, CommandVersion, CommandHelp:
		args.Command = cmd
	case "-h", "--help":
		args.Command = CommandHelp
	case "-v", "--version":
		args.Command = CommandVersion
	default:
		return nil, fmt.Errorf("unknown command %q (try %q)", argv[1], "help")
	}

	fs := flag.NewFlagSet(string(args.Command), flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	configFlag := newStringFlag(defaultConfigPath)
	fs.Var(configFlag, "config", "Path to configuration file")
	fs.Var(configFlag, "c", "Path to configuration file (shorthand)")

	var logLevelStr string
	fs.StringVar(&logLevelStr, "log-level", "",
		"Log level (debug|info|warning|error|critical)")
	fs.StringVar(&logLevelStr, "l", "",
		"Log level (shorthand)")

	fs.BoolVar(&args.NoColor, "no-color", false,
		"Disable colored output")

	switch args.Command {
	case CommandRun:
		fs.BoolVar(&args.Force, "force", false,
			"Run the backup even if the configured interval has not elapsed")
		fs.BoolVar(&args.Force, "f", false,
			"Run the backup immediately (shorthand)")
	case CommandHistory:
		fs.IntVar(&args.HistoryLimit, "limit", 20,
			"Maximum number of sessions to show")
		fs.BoolVar(&args.Interactive, "interactive", false,
			"Browse session history in an interactive view")
		fs.BoolVar(&args.Interactive, "i", false,
			"Interactive history view (shorthand)")
	}

	if err := fs.Parse(argv[2:]); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	if args.HistoryLimit < 1 {
		return nil, fmt.Errorf("--limit must be at least 1")
	}

	args.ConfigPath = configFlag.value
	if configFlag.set {
		args.ConfigPathSource = configSourceFlag
	} else {
		args.ConfigPathSource = configSourceDefault
	}

	// Parse log level if provided
	if logLevelStr != "" {
		args.LogLevel = parseLogLevel(logLevelStr)
	} else {
		args.LogLevel = types.LogLevelNone // Will be overridden by config
	}

	return args, nil
}

// parseLogLevel converts string to LogLevel
func parseLogLevel(s string) types.LogLevel {
	switch s {
	case "debug", "5":
		return types.LogLevelDebug
	case "info", "4":
		return types.LogLevelInfo
	case "warning", "3":
		return types.LogLevelWarning
	case "error", "2":
		return types.LogLevelError
	case "critical", "1":
		return types.LogLevelCritical
	case "none", "0":
		return types.LogLevelNone
	default:
		return types.LogLevelInfo
	}
}

// PrintHelp writes the usage message.
func PrintHelp(w io.Writer, argv0 string) {
	fmt.Fprintf(w, "Usage: %s <command> [options]\n\n", argv0)
	fmt.Fprintln(w, "dirsave - directory backup orchestrator")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run               Run a backup (honors the configured interval; use --force to override)")
	fmt.Fprintln(w, "  test-connection   Verify the destination is reachable")
	fmt.Fprintln(w, "  debug-connection  Run every connection check and print a report")
	fmt.Fprintln(w, "  status            Show current state and last backup result")
	fmt.Fprintln(w, "  history           List recent backup sessions (--limit N, --interactive)")
	fmt.Fprintln(w, "  cleanup           Apply retention to snapshots and prune old sessions")
	fmt.Fprintln(w, "  configure         Interactive configuration setup")
	fmt.Fprintln(w, "  daemon            Run the scheduler loop")
	fmt.Fprintln(w, "  version           Show version information")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Global options:")
	fmt.Fprintln(w, "  -c, --config PATH    Path to configuration file")
	fmt.Fprintln(w, "  -l, --log-level LVL  Log level (debug|info|warning|error|critical)")
	fmt.Fprintln(w, "      --no-color       Disable colored output")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintf(w, "  %s run --force\n", argv0)
	fmt.Fprintf(w, "  %s history --limit 50\n", argv0)
	fmt.Fprintf(w, "  %s test-connection -c /etc/dirsave/dirsave.env\n", argv0)
}

type stringFlag struct {
	value string
	set   bool
}

func newStringFlag(defaultValue string) *stringFlag {
	return &stringFlag{value: defaultValue}
}

func (s *stringFlag) String() string {
	return s.value
}

func (s *stringFlag) Set(val string) error {
	s.value = val
	s.set = true
	return nil
}
