package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dirsave/dirsave/internal/types"
)

func TestParseCommands(t *testing.T) {
	tests := []struct {
		name     string
		argv     []string
		expected Command
	}{
		{"run", []string{"dirsave", "run"}, CommandRun},
		{"test-connection", []string{"dirsave", "test-connection"}, CommandTestConnection},
		{"debug-connection", []string{"dirsave", "debug-connection"}, CommandDebugConnection},
		{"status", []string{"dirsave", "status"}, CommandStatus},
		{"history", []string{"dirsave", "history"}, CommandHistory},
		{"cleanup", []string{"dirsave", "cleanup"}, CommandCleanup},
		{"configure", []string{"dirsave", "configure"}, CommandConfigure},
		{"daemon", []string{"dirsave", "daemon"}, CommandDaemon},
		{"version", []string{"dirsave", "version"}, CommandVersion},
		{"help", []string{"dirsave", "help"}, CommandHelp},
		{"help flag", []string{"dirsave", "--help"}, CommandHelp},
		{"version flag", []string{"dirsave", "-v"}, CommandVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := Parse(tt.argv)
			if err != nil {
				t.Fatalf("Parse(%v) error: %v", tt.argv, err)
			}
			if args.Command != tt.expected {
				t.Errorf("Parse(%v) command = %q; want %q", tt.argv, args.Command, tt.expected)
			}
		})
	}
}

func TestParseUnknownCommand(t *testing.T) {
	if _, err := Parse([]string{"dirsave", "bogus"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestParseMissingCommand(t *testing.T) {
	if _, err := Parse([]string{"dirsave"}); err == nil {
		t.Fatal("expected error when no command is given")
	}
}

func TestParseConfigFlag(t *testing.T) {
	args, err := Parse([]string{"dirsave", "run", "--config", "/tmp/custom.env"})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if args.ConfigPath != "/tmp/custom.env" {
		t.Errorf("ConfigPath = %q; want /tmp/custom.env", args.ConfigPath)
	}
	if args.ConfigPathSource != configSourceFlag {
		t.Errorf("ConfigPathSource = %q; want %q", args.ConfigPathSource, configSourceFlag)
	}
}

func TestParseConfigDefault(t *testing.T) {
	args, err := Parse([]string{"dirsave", "status"})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if args.ConfigPath != defaultConfigPath {
		t.Errorf("ConfigPath = %q; want %q", args.ConfigPath, defaultConfigPath)
	}
	if args.ConfigPathSource != configSourceDefault {
		t.Errorf("ConfigPathSource = %q; want %q", args.ConfigPathSource, configSourceDefault)
	}
}

func TestParseRunForce(t *testing.T) {
	args, err := Parse([]string{"dirsave", "run", "--force"})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !args.Force {
		t.Error("expected Force to be true")
	}

	args, err = Parse([]string{"dirsave", "run"})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if args.Force {
		t.Error("expected Force to be false by default")
	}
}

func TestParseForceRejectedOutsideRun(t *testing.T) {
	if _, err := Parse([]string{"dirsave", "status", "--force"}); err == nil {
		t.Fatal("expected error for --force on status")
	}
}

func TestParseHistoryFlags(t *testing.T) {
	args, err := Parse([]string{"dirsave", "history", "--limit", "5", "--interactive"})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if args.HistoryLimit != 5 {
		t.Errorf("HistoryLimit = %d; want 5", args.HistoryLimit)
	}
	if !args.Interactive {
		t.Error("expected Interactive to be true")
	}
}

func TestParseHistoryLimitValidation(t *testing.T) {
	if _, err := Parse([]string{"dirsave", "history", "--limit", "0"}); err == nil {
		t.Fatal("expected error for --limit 0")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected types.LogLevel
	}{
		{"debug", types.LogLevelDebug},
		{"info", types.LogLevelInfo},
		{"warning", types.LogLevelWarning},
		{"error", types.LogLevelError},
		{"critical", types.LogLevelCritical},
		{"none", types.LogLevelNone},
		{"5", types.LogLevelDebug},
		{"bogus", types.LogLevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseLogLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v; want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseLogLevelUnsetMeansNone(t *testing.T) {
	args, err := Parse([]string{"dirsave", "run"})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if args.LogLevel != types.LogLevelNone {
		t.Errorf("LogLevel = %v; want %v (config decides)", args.LogLevel, types.LogLevelNone)
	}
}

func TestParseRejectsPositionalArgs(t *testing.T) {
	if _, err := Parse([]string{"dirsave", "run", "extra"}); err == nil {
		t.Fatal("expected error for trailing positional argument")
	}
}

func TestPrintHelpMentionsCommands(t *testing.T) {
	var buf bytes.Buffer
	PrintHelp(&buf, "dirsave")
	out := buf.String()
	for _, cmd := range []string{"run", "test-connection", "debug-connection", "status", "history", "cleanup", "configure", "daemon", "version"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("help output missing command %q", cmd)
		}
	}
}
