package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dirsave/dirsave/internal/types"
	"github.com/dirsave/dirsave/pkg/utils"
)

// RemoteSection describes one named remote in an rclone config file.
type RemoteSection struct {
	Name               string
	Type               string
	URL                string
	Vendor             string
	User               string
	Pass               string // obscured form, written verbatim
	InsecureSkipVerify bool
}

// RemoteSectionFromSettings builds the rclone remote section for the
// configured WebDAV destination. The obscured password is stored as-is;
// rclone keeps credentials in obscured form in its own config.
func RemoteSectionFromSettings(s *Settings) RemoteSection {
	return RemoteSection{
		Name:               s.RemoteName,
		Type:               "webdav",
		URL:                s.BaseURL(),
		Vendor:             "other",
		User:               s.Username,
		Pass:               s.PasswordObscured,
		InsecureSkipVerify: !s.VerifySSL,
	}
}

func (r RemoteSection) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", r.Name)
	fmt.Fprintf(&b, "type = %s\n", r.Type)
	fmt.Fprintf(&b, "url = %s\n", r.URL)
	if r.Vendor != "" {
		fmt.Fprintf(&b, "vendor = %s\n", r.Vendor)
	}
	if r.User != "" {
		fmt.Fprintf(&b, "user = %s\n", r.User)
	}
	if r.Pass != "" {
		fmt.Fprintf(&b, "pass = %s\n", r.Pass)
	}
	if r.InsecureSkipVerify {
		b.WriteString("insecure_skip_verify = true\n")
	}
	return b.String()
}

// WriteRemoteSection creates or replaces the named section in the rclone
// config file at path. Other sections are preserved byte for byte; a
// missing file is created.
func WriteRemoteSection(path string, section RemoteSection) error {
	if section.Name == "" {
		return fmt.Errorf("remote section needs a name")
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("cannot create rclone config directory: %w", err)
	}

	var content string
	if data, err := os.ReadFile(path); err == nil {
		content = string(data)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("cannot read rclone config: %w", err)
	}

	updated := replaceSection(content, section.Name, section.render())

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(updated), 0600); err != nil {
		return fmt.Errorf("cannot write rclone config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cannot replace rclone config: %w", err)
	}
	return nil
}

// replaceSection swaps the body of [name] in content with rendered,
// appending a new section when [name] is absent.
func replaceSection(content, name, rendered string) string {
	lines := strings.Split(content, "\n")
	header := "[" + name + "]"

	start := -1
	end := len(lines)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if start == -1 {
			if trimmed == header {
				start = i
			}
			continue
		}
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			end = i
			break
		}
	}

	rendered = strings.TrimRight(rendered, "\n")

	if start == -1 {
		out := strings.TrimRight(content, "\n")
		if out != "" {
			out += "\n\n"
		}
		return out + rendered + "\n"
	}

	var out []string
	out = append(out, lines[:start]...)
	out = append(out, strings.Split(rendered, "\n")...)
	if end < len(lines) {
		// Blank separator before the next section.
		out = append(out, "")
		out = append(out, lines[end:]...)
	}

	joined := strings.Join(out, "\n")
	if !strings.HasSuffix(joined, "\n") {
		joined += "\n"
	}
	return joined
}

// ReadRemoteSection parses the named section back out of the rclone config
// file. Used by the connection diagnostics to verify the remote is wired.
func ReadRemoteSection(path, name string) (*RemoteSection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read rclone config: %w", err)
	}

	header := "[" + name + "]"
	section := &RemoteSection{Name: name}
	inSection := false
	found := false

	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			inSection = trimmed == header
			if inSection {
				found = true
			}
			continue
		}
		if !inSection || trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, value, ok := strings.Cut(trimmed, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "type":
			section.Type = value
		case "url":
			section.URL = value
		case "vendor":
			section.Vendor = value
		case "user":
			section.User = value
		case "pass":
			section.Pass = value
		case "insecure_skip_verify":
			section.InsecureSkipVerify = utils.ParseBool(value)
		}
	}

	if !found {
		return nil, fmt.Errorf("remote %q not found in %s", name, path)
	}
	return section, nil
}

// EnsureRemoteConfigured writes the remote section for WebDAV settings and
// is a no-op for every other remote type.
func EnsureRemoteConfigured(s *Settings) error {
	if s.RemoteType != types.RemoteWebDAV {
		return nil
	}
	return WriteRemoteSection(s.RcloneConfigPath, RemoteSectionFromSettings(s))
}
