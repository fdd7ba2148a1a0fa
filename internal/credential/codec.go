// Package credential obscures and reveals the WebDAV password through
// rclone, so the plaintext never reaches the settings file.
package credential

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/dirsave/dirsave/internal/logging"
)

const defaultTimeout = 10 * time.Second

// CodecError wraps a failed obscure/reveal invocation with the captured
// rclone output.
type CodecError struct {
	Operation string
	Output    string
	Err       error
}

func (e *CodecError) Error() string {
	msg := fmt.Sprintf("credential %s failed", e.Operation)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	if e.Output != "" {
		msg += fmt.Sprintf(" (rclone output: %s)", strings.TrimSpace(e.Output))
	}
	return msg
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// Codec drives `rclone obscure` and `rclone reveal`.
type Codec struct {
	logger  *logging.Logger
	timeout time.Duration

	// Injectable for tests
	execCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
	lookPath    func(file string) (string, error)
}

// NewCodec creates a codec with default subprocess execution.
func NewCodec(logger *logging.Logger) *Codec {
	return &Codec{
		logger:      logger,
		timeout:     defaultTimeout,
		execCommand: defaultExecCommand,
		lookPath:    exec.LookPath,
	}
}

func defaultExecCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Obscure converts a plaintext password into rclone's obscured form.
// An empty plaintext means "no credential set" and round-trips as "".
func (c *Codec) Obscure(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	return c.run(ctx, "obscure", plaintext)
}

// Reveal converts an obscured password back to plaintext. An empty
// obscured value round-trips as "".
func (c *Codec) Reveal(ctx context.Context, obscured string) (string, error) {
	if obscured == "" {
		return "", nil
	}
	return c.run(ctx, "reveal", obscured)
}

func (c *Codec) run(ctx context.Context, subcommand, value string) (string, error) {
	if _, err := c.lookPath("rclone"); err != nil {
		return "", &CodecError{Operation: subcommand, Err: fmt.Errorf("rclone not found in PATH: %w", err)}
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.execCommand(runCtx, "rclone", subcommand, value)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("timed out after %s: %w", c.timeout, err)
		}
		return "", &CodecError{Operation: subcommand, Output: string(output), Err: err}
	}

	result := strings.TrimSpace(string(output))
	if result == "" {
		return "", &CodecError{Operation: subcommand, Err: fmt.Errorf("rclone returned empty output")}
	}

	c.logger.Debug("Credential %s completed", subcommand)
	return result, nil
}
