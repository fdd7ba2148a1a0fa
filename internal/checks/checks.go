// Package checks performs connection validation against the configured
// backup destination, from quick reachability tests up to a full
// diagnostic report.
package checks

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dirsave/dirsave/internal/backend"
	"github.com/dirsave/dirsave/internal/config"
	"github.com/dirsave/dirsave/internal/logging"
	"github.com/dirsave/dirsave/internal/types"
)

// dialTimeout is a variable to allow tests to simulate unreachable hosts
// without real network traffic.
var dialTimeout = net.DialTimeout

const (
	tcpDialTimeout = 5 * time.Second
	probeTimeout   = 10 * time.Second
)

// Revealer decodes an obscured credential back to plaintext.
type Revealer interface {
	Reveal(ctx context.Context, obscured string) (string, error)
}

// CheckResult holds the result of a single validation check.
type CheckResult struct {
	Name    string
	Passed  bool
	Message string
	Error   error
	Code    string
}

// Checker validates that the configured destination is usable.
type Checker struct {
	cfg      *config.Settings
	logger   *logging.Logger
	backend  backend.Backend
	revealer Revealer
}

// NewChecker creates a connection checker for the configured destination.
func NewChecker(cfg *config.Settings, logger *logging.Logger, b backend.Backend, revealer Revealer) *Checker {
	return &Checker{
		cfg:      cfg,
		logger:   logger,
		backend:  b,
		revealer: revealer,
	}
}

// TestConnection runs the connection checks in order and stops at the
// first failure. For local destinations only the backend check applies.
func (c *Checker) TestConnection(ctx context.Context) error {
	for _, check := range c.checks() {
		result := check(ctx)
		if !result.Passed {
			c.logger.Error("%s: %s", result.Name, result.Message)
			if result.Error != nil {
				return fmt.Errorf("%s check failed: %w", result.Code, result.Error)
			}
			return fmt.Errorf("%s check failed: %s", result.Code, result.Message)
		}
		c.logger.Step("%s: %s", result.Name, result.Message)
	}
	return nil
}

// DebugConnection runs every check regardless of failures and returns
// the full report. The error summarizes how many checks failed.
func (c *Checker) DebugConnection(ctx context.Context) ([]CheckResult, error) {
	var results []CheckResult
	failed := 0

	for _, check := range c.checks() {
		result := check(ctx)
		results = append(results, result)
		if !result.Passed {
			failed++
		}
	}

	if failed > 0 {
		return results, fmt.Errorf("%d of %d checks failed", failed, len(results))
	}
	return results, nil
}

func (c *Checker) checks() []func(context.Context) CheckResult {
	checks := []func(context.Context) CheckResult{
		c.CheckConfig,
	}
	if c.cfg.RemoteType == types.RemoteWebDAV {
		checks = append(checks,
			c.CheckReachability,
			c.CheckCredentials,
			c.CheckRemoteConfig,
			c.CheckProbe,
		)
	}
	return append(checks, c.CheckBackend)
}

// CheckConfig validates that the settings are complete and consistent.
func (c *Checker) CheckConfig(ctx context.Context) CheckResult {
	result := CheckResult{Name: "Configuration", Code: "config"}

	if err := c.cfg.Validate(); err != nil {
		result.Error = err
		result.Message = err.Error()
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("%s destination configured", c.cfg.RemoteType)
	return result
}

// CheckReachability opens a TCP connection to the configured server.
func (c *Checker) CheckReachability(ctx context.Context) CheckResult {
	result := CheckResult{Name: "Server Reachability", Code: "reachability"}

	address := net.JoinHostPort(c.cfg.ServerHost, strconv.Itoa(c.cfg.ServerPort))
	c.logger.Debug("Dialing %s (timeout %v)", address, tcpDialTimeout)

	conn, err := dialTimeout("tcp", address, tcpDialTimeout)
	if err != nil {
		result.Error = fmt.Errorf("cannot reach %s: %w", address, err)
		result.Message = result.Error.Error()
		return result
	}
	conn.Close()

	result.Passed = true
	result.Message = fmt.Sprintf("%s is reachable", address)
	return result
}

// CheckCredentials verifies the stored password can be decoded.
func (c *Checker) CheckCredentials(ctx context.Context) CheckResult {
	result := CheckResult{Name: "Credentials", Code: "credentials"}

	if c.cfg.PasswordObscured == "" {
		result.Passed = true
		result.Message = "No password configured (anonymous access)"
		return result
	}

	plaintext, err := c.revealer.Reveal(ctx, c.cfg.PasswordObscured)
	if err != nil {
		result.Error = fmt.Errorf("cannot decode stored password: %w", err)
		result.Message = result.Error.Error()
		return result
	}
	if plaintext == "" {
		result.Error = fmt.Errorf("stored password decodes to an empty string")
		result.Message = result.Error.Error()
		return result
	}

	result.Passed = true
	result.Message = "Stored password decodes correctly"
	return result
}

// CheckRemoteConfig verifies the rclone remote section exists and points
// at the configured server.
func (c *Checker) CheckRemoteConfig(ctx context.Context) CheckResult {
	result := CheckResult{Name: "Remote Configuration", Code: "remote_config"}

	section, err := config.ReadRemoteSection(c.cfg.RcloneConfigPath, c.cfg.RemoteName)
	if err != nil {
		result.Error = fmt.Errorf("rclone remote %q not usable: %w", c.cfg.RemoteName, err)
		result.Message = result.Error.Error()
		return result
	}

	if want := c.cfg.BaseURL(); section.URL != want {
		result.Error = fmt.Errorf("rclone remote %q points at %s, settings say %s (run configure to fix)",
			c.cfg.RemoteName, section.URL, want)
		result.Message = result.Error.Error()
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("rclone remote %q matches settings", c.cfg.RemoteName)
	return result
}

// CheckProbe issues a PROPFIND request against the server to confirm it
// speaks WebDAV and accepts the configured credentials.
func (c *Checker) CheckProbe(ctx context.Context) CheckResult {
	result := CheckResult{Name: "WebDAV Probe", Code: "probe"}

	url := c.cfg.BaseURL()
	status, err := c.propfind(ctx, url)
	if err != nil {
		result.Error = fmt.Errorf("PROPFIND %s: %w", url, err)
		result.Message = result.Error.Error()
		return result
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		result.Error = fmt.Errorf("server rejected credentials (HTTP %d)", status)
		result.Message = result.Error.Error()
	case status == http.StatusNotFound:
		// rclone creates missing directories, so an absent path is fine.
		result.Passed = true
		result.Message = fmt.Sprintf("Server speaks WebDAV, %s does not exist yet", url)
	case status >= 200 && status < 300:
		result.Passed = true
		result.Message = fmt.Sprintf("Server answered PROPFIND with HTTP %d", status)
	default:
		result.Error = fmt.Errorf("unexpected HTTP %d from PROPFIND", status)
		result.Message = result.Error.Error()
	}
	return result
}

func (c *Checker) propfind(ctx context.Context, url string) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "PROPFIND", url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Depth", "0")

	if c.cfg.Username != "" {
		password := ""
		if c.cfg.PasswordObscured != "" {
			password, err = c.revealer.Reveal(ctx, c.cfg.PasswordObscured)
			if err != nil {
				return 0, fmt.Errorf("cannot decode stored password: %w", err)
			}
		}
		req.SetBasicAuth(c.cfg.Username, password)
	}

	client := &http.Client{Timeout: probeTimeout}
	if !c.cfg.VerifySSL {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// CheckBackend delegates to the backend's own connection test, which for
// WebDAV exercises the actual rclone transfer path.
func (c *Checker) CheckBackend(ctx context.Context) CheckResult {
	result := CheckResult{Name: "Backend Access", Code: "backend"}

	if err := c.backend.TestConnection(ctx); err != nil {
		result.Error = err
		result.Message = err.Error()
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("%s is ready", c.backend.Name())
	return result
}
