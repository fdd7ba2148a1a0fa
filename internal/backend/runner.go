package backend

import (
	"context"
	"os/exec"
)

// Runner executes external commands. The single implementation shells out
// through os/exec; tests substitute fakes.
type Runner interface {
	// Run executes name with args and returns the combined output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// LookPath reports where name resolves in PATH.
	LookPath(name string) (string, error)
}

type osRunner struct{}

// NewOSRunner returns the Runner backed by os/exec.
func NewOSRunner() Runner {
	return osRunner{}
}

func (osRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

func (osRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
