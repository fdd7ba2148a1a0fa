package main

import (
	"bufio"
	"strings"
	"testing"

	"github.com/dirsave/dirsave/internal/cli"
	"github.com/dirsave/dirsave/internal/config"
	"github.com/dirsave/dirsave/internal/types"
)

func promptReader(input string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(input))
}

func TestPromptStringKeepsDefaultOnEmptyInput(t *testing.T) {
	if got := promptString(promptReader("\n"), "Source", "/data"); got != "/data" {
		t.Errorf("got %q; want default /data", got)
	}
	if got := promptString(promptReader("/other\n"), "Source", "/data"); got != "/other" {
		t.Errorf("got %q; want /other", got)
	}
}

func TestPromptChoiceRejectsInvalid(t *testing.T) {
	got := promptChoice(promptReader("tape\nwebdav\n"), "Type", []string{"local", "webdav"}, "local")
	if got != "webdav" {
		t.Errorf("got %q; want webdav after one invalid answer", got)
	}
}

func TestPromptIntRejectsNonPositive(t *testing.T) {
	got := promptInt(promptReader("abc\n0\n12\n"), "Hours", 24)
	if got != 12 {
		t.Errorf("got %d; want 12", got)
	}
}

func TestPromptBool(t *testing.T) {
	tests := []struct {
		input   string
		current bool
		want    bool
	}{
		{"y\n", false, true},
		{"no\n", true, false},
		{"\n", true, true},
		{"maybe\n", false, false},
	}
	for _, tt := range tests {
		if got := promptBool(promptReader(tt.input), "Snapshots", tt.current); got != tt.want {
			t.Errorf("promptBool(%q, current=%v) = %v; want %v", tt.input, tt.current, got, tt.want)
		}
	}
}

func TestPromptPasswordPipedInput(t *testing.T) {
	got, err := promptPassword(promptReader("s3cret\n"), "Password")
	if err != nil {
		t.Fatalf("promptPassword: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("got %q; want s3cret", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	long := strings.Repeat("x", 80)
	got := truncate(long, 60)
	if len(got) > 60 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncate returned %q (len %d)", got, len(got))
	}
}

func TestNewLoggerFlagOverridesConfigLevel(t *testing.T) {
	cfg := &config.Settings{DebugLevel: types.LogLevelInfo, UseColor: true}

	logger := newLogger(cfg, &cli.Args{LogLevel: types.LogLevelDebug})
	if logger.GetLevel() != types.LogLevelDebug {
		t.Errorf("level = %v; want debug from flag", logger.GetLevel())
	}

	logger = newLogger(cfg, &cli.Args{LogLevel: types.LogLevelNone})
	if logger.GetLevel() != types.LogLevelInfo {
		t.Errorf("level = %v; want info from config", logger.GetLevel())
	}

	logger = newLogger(cfg, &cli.Args{NoColor: true})
	if logger.UsesColor() {
		t.Error("color should be disabled by --no-color")
	}
}
