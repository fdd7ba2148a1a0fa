package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/dirsave/dirsave/internal/cli"
	"github.com/dirsave/dirsave/internal/config"
	"github.com/dirsave/dirsave/internal/credential"
	"github.com/dirsave/dirsave/internal/types"
	"github.com/dirsave/dirsave/pkg/utils"
)

// runConfigure walks through the settings interactively and saves them,
// creating a default config file first when none exists.
func runConfigure(ctx context.Context, args *cli.Args) int {
	cfg, err := config.LoadOrCreate(args.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return types.ExitConfigError.Int()
	}

	logger := newLogger(cfg, args)
	defer logger.CloseLogFile()
	codec := credential.NewCodec(logger)

	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("Configuring %s\n\n", cfg.ConfigPath)

	remoteType := promptChoice(reader, "Destination type", []string{"local", "webdav"}, cfg.RemoteType.String())
	cfg.RemoteType = types.RemoteType(remoteType)

	cfg.SourcePath = promptString(reader, "Source directory", cfg.SourcePath)
	excludes := promptString(reader, "Exclude patterns (comma separated)", strings.Join(cfg.ExcludePatterns, ","))
	cfg.ExcludePatterns = utils.SplitPatterns(excludes)
	cfg.BackupIntervalHours = promptInt(reader, "Backup interval (hours)", cfg.BackupIntervalHours)
	cfg.CreateDatedFolders = promptBool(reader, "Keep dated snapshots", cfg.CreateDatedFolders)

	switch cfg.RemoteType {
	case types.RemoteWebDAV:
		cfg.ServerHost = promptString(reader, "WebDAV server host", cfg.ServerHost)
		cfg.ServerPort = promptInt(reader, "WebDAV server port", cfg.ServerPort)
		cfg.URLPath = promptString(reader, "URL path on the server", cfg.URLPath)
		cfg.BackupPath = promptString(reader, "Backup path on the server", cfg.BackupPath)
		cfg.UseHTTPS = promptBool(reader, "Use HTTPS", cfg.UseHTTPS)
		cfg.VerifySSL = promptBool(reader, "Verify TLS certificates", cfg.VerifySSL)
		cfg.Username = promptString(reader, "Username", cfg.Username)

		password, err := promptPassword(reader, "Password (leave empty to keep current)")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return types.ExitConfigError.Int()
		}
		if password != "" {
			obscured, err := codec.Obscure(ctx, password)
			if err != nil {
				// Without rclone the credential cannot be stored usably.
				fmt.Fprintf(os.Stderr, "Error: cannot store password: %v\n", err)
				return types.ExitConfigError.Int()
			}
			cfg.PasswordObscured = obscured
		}
	default:
		cfg.DestinationPath = promptString(reader, "Destination directory", cfg.DestinationPath)
	}

	if err := cfg.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return types.ExitConfigError.Int()
	}
	if err := config.EnsureRemoteConfigured(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot write rclone remote: %v\n", err)
		return types.ExitConfigError.Int()
	}

	fmt.Printf("\nConfiguration saved to %s\n", cfg.ConfigPath)
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Note: configuration is incomplete: %v\n", err)
	} else {
		fmt.Printf("Run %q to verify the destination.\n", os.Args[0]+" test-connection")
	}
	return types.ExitSuccess.Int()
}

func promptString(reader *bufio.Reader, label, current string) string {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return current
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	return line
}

func promptChoice(reader *bufio.Reader, label string, choices []string, current string) string {
	for {
		answer := promptString(reader, fmt.Sprintf("%s (%s)", label, strings.Join(choices, "|")), current)
		for _, choice := range choices {
			if answer == choice {
				return answer
			}
		}
		fmt.Printf("Please answer one of: %s\n", strings.Join(choices, ", "))
	}
}

func promptInt(reader *bufio.Reader, label string, current int) int {
	for {
		answer := promptString(reader, label, strconv.Itoa(current))
		value, err := strconv.Atoi(answer)
		if err == nil && value > 0 {
			return value
		}
		fmt.Println("Please enter a positive number.")
	}
}

func promptBool(reader *bufio.Reader, label string, current bool) bool {
	def := "y"
	if !current {
		def = "n"
	}
	answer := strings.ToLower(promptString(reader, label+" (y/n)", def))
	switch answer {
	case "y", "yes", "true", "1":
		return true
	case "n", "no", "false", "0":
		return false
	default:
		return current
	}
}

// promptPassword reads without echo when stdin is a terminal, falling
// back to a plain line read (e.g. when input is piped in).
func promptPassword(reader *bufio.Reader, label string) (string, error) {
	fmt.Printf("%s: ", label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
