package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dirsave/dirsave/internal/types"
	"github.com/dirsave/dirsave/pkg/utils"
)

// Settings holds the full dirsave configuration, loaded from a KEY=VALUE
// env file. There is exactly one settings record per config file; when a
// key appears twice the last occurrence wins.
type Settings struct {
	// General
	DebugLevel types.LogLevel
	UseColor   bool
	LogPath    string

	// Source
	RemoteType      types.RemoteType
	SourcePath      string
	ExcludePatterns []string

	// Scheduling
	BackupIntervalHours  int
	Schedule             string
	LastSuccessfulBackup time.Time // zero when no successful backup has run yet

	// Local destination
	DestinationPath    string
	CreateDatedFolders bool

	// WebDAV destination
	ServerHost       string
	ServerPort       int
	URLPath          string
	Username         string
	PasswordObscured string
	BackupPath       string
	UseHTTPS         bool
	VerifySSL        bool
	RemoteName       string

	// Engine
	RcloneTimeoutConnection int
	RcloneTimeoutOperation  int
	RcloneTransfers         int
	RcloneRetries           int
	RcloneConfigPath        string
	SessionDBPath           string

	// Retention
	RetentionDailyDays   int
	RetentionVersionDays int
	SessionRetentionDays int

	// ConfigPath is the file the settings were loaded from.
	ConfigPath string

	// raw configuration map
	raw map[string]string
}

// Load reads the configuration file at configPath.
// Returns os.ErrNotExist (wrapped) when the file is missing.
func Load(configPath string) (*Settings, error) {
	if !utils.FileExists(configPath) {
		return nil, fmt.Errorf("configuration file not found: %s: %w", configPath, os.ErrNotExist)
	}

	rawValues, err := parseEnvFile(configPath)
	if err != nil {
		return nil, err
	}

	s := &Settings{
		ConfigPath: configPath,
		raw:        rawValues,
	}

	// Environment variables take precedence over file values.
	s.loadEnvOverrides()

	if err := s.parse(); err != nil {
		return nil, fmt.Errorf("error parsing configuration: %w", err)
	}

	return s, nil
}

// LoadOrCreate loads the configuration, writing a default file first when
// none exists.
func LoadOrCreate(configPath string) (*Settings, error) {
	if !utils.FileExists(configPath) {
		if err := writeDefaultFile(configPath); err != nil {
			return nil, err
		}
	}
	return Load(configPath)
}

// loadEnvOverrides checks for environment variables and overrides config file values.
func (s *Settings) loadEnvOverrides() {
	envKeys := []string{
		"DEBUG_LEVEL", "USE_COLOR", "LOG_PATH",
		"REMOTE_TYPE", "SOURCE_PATH", "EXCLUDE_PATTERNS",
		"BACKUP_INTERVAL_HOURS", "SCHEDULE", "LAST_SUCCESSFUL_BACKUP",
		"DESTINATION_PATH", "CREATE_DATED_FOLDERS",
		"SERVER_HOST", "SERVER_PORT", "URL_PATH", "USERNAME", "PASSWORD_OBSCURED",
		"BACKUP_PATH", "USE_HTTPS", "VERIFY_SSL", "REMOTE_NAME",
		"RCLONE_TIMEOUT_CONNECTION", "RCLONE_TIMEOUT_OPERATION",
		"RCLONE_TRANSFERS", "RCLONE_RETRIES", "RCLONE_CONFIG_PATH",
		"SESSION_DB_PATH",
		"RETENTION_DAILY_DAYS", "RETENTION_VERSION_DAYS", "SESSION_RETENTION_DAYS",
	}

	for _, key := range envKeys {
		if envValue := os.Getenv(key); envValue != "" {
			s.raw[key] = envValue
		}
	}
}

// parse interprets the raw configuration values.
func (s *Settings) parse() error {
	s.DebugLevel = s.getLogLevel("DEBUG_LEVEL", types.LogLevelInfo)
	s.UseColor = s.getBool("USE_COLOR", true)
	s.LogPath = s.getString("LOG_PATH", "")

	s.RemoteType = types.RemoteType(strings.ToLower(strings.TrimSpace(s.getString("REMOTE_TYPE", "local"))))
	s.SourcePath = s.getString("SOURCE_PATH", "")
	s.ExcludePatterns = utils.SplitPatterns(s.getString("EXCLUDE_PATTERNS", ""))

	s.BackupIntervalHours = s.getInt("BACKUP_INTERVAL_HOURS", 24)
	if s.BackupIntervalHours < 1 {
		s.BackupIntervalHours = 24
	}
	s.Schedule = strings.TrimSpace(s.getString("SCHEDULE", "@every 5m"))
	if s.Schedule == "" {
		s.Schedule = "@every 5m"
	}

	if raw := strings.TrimSpace(s.getString("LAST_SUCCESSFUL_BACKUP", "")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("invalid LAST_SUCCESSFUL_BACKUP %q: %w", raw, err)
		}
		s.LastSuccessfulBackup = ts
	}

	s.DestinationPath = s.getString("DESTINATION_PATH", "")
	s.CreateDatedFolders = s.getBool("CREATE_DATED_FOLDERS", true)

	s.ServerHost = strings.TrimSpace(s.getString("SERVER_HOST", ""))
	s.ServerPort = s.getInt("SERVER_PORT", 443)
	s.URLPath = strings.TrimSpace(s.getString("URL_PATH", ""))
	s.Username = s.getString("USERNAME", "")
	s.PasswordObscured = s.getString("PASSWORD_OBSCURED", "")
	s.BackupPath = strings.Trim(strings.TrimSpace(s.getString("BACKUP_PATH", "backups")), "/")
	s.UseHTTPS = s.getBool("USE_HTTPS", true)
	s.VerifySSL = s.getBool("VERIFY_SSL", true)
	s.RemoteName = strings.TrimSpace(s.getString("REMOTE_NAME", "dirsave"))

	s.RcloneTimeoutConnection = s.ensurePositiveInt("RCLONE_TIMEOUT_CONNECTION", 15)
	s.RcloneTimeoutOperation = s.ensurePositiveInt("RCLONE_TIMEOUT_OPERATION", 300)
	s.RcloneTransfers = s.ensurePositiveInt("RCLONE_TRANSFERS", 4)
	s.RcloneRetries = s.ensurePositiveInt("RCLONE_RETRIES", 3)
	s.RcloneConfigPath = s.getString("RCLONE_CONFIG_PATH", defaultRcloneConfigPath())
	s.SessionDBPath = s.getString("SESSION_DB_PATH", defaultSessionDBPath())

	s.RetentionDailyDays = s.ensurePositiveInt("RETENTION_DAILY_DAYS", 14)
	s.RetentionVersionDays = s.ensurePositiveInt("RETENTION_VERSION_DAYS", 30)
	s.SessionRetentionDays = s.ensurePositiveInt("SESSION_RETENTION_DAYS", 30)

	return nil
}

// Validate checks that the settings are complete for the configured remote
// type and that the local paths involved exist. It does not touch the network.
func (s *Settings) Validate() error {
	if !s.RemoteType.Valid() {
		return fmt.Errorf("unknown remote type %q", s.RemoteType)
	}
	if !s.RemoteType.Implemented() {
		return fmt.Errorf("remote type %q is not implemented", s.RemoteType)
	}
	if strings.TrimSpace(s.SourcePath) == "" {
		return fmt.Errorf("SOURCE_PATH is required")
	}
	srcInfo, err := os.Stat(s.SourcePath)
	if err != nil {
		return fmt.Errorf("source path %s not accessible: %w", s.SourcePath, err)
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("source path %s is not a directory", s.SourcePath)
	}

	switch s.RemoteType {
	case types.RemoteLocal:
		if strings.TrimSpace(s.DestinationPath) == "" {
			return fmt.Errorf("DESTINATION_PATH is required for local remotes")
		}
		srcAbs, err := utils.AbsPath(s.SourcePath)
		if err != nil {
			return err
		}
		dstAbs, err := utils.AbsPath(s.DestinationPath)
		if err != nil {
			return err
		}
		if srcAbs == dstAbs {
			return fmt.Errorf("source and destination must differ")
		}
		dstInfo, err := os.Stat(s.DestinationPath)
		if err != nil {
			return fmt.Errorf("destination path %s not accessible: %w", s.DestinationPath, err)
		}
		if !dstInfo.IsDir() {
			return fmt.Errorf("destination path %s is not a directory", s.DestinationPath)
		}
	case types.RemoteWebDAV:
		if s.ServerHost == "" {
			return fmt.Errorf("SERVER_HOST is required for webdav remotes")
		}
		if s.ServerPort < 1 || s.ServerPort > 65535 {
			return fmt.Errorf("SERVER_PORT %d out of range", s.ServerPort)
		}
		if s.RemoteName == "" {
			return fmt.Errorf("REMOTE_NAME is required for webdav remotes")
		}
	}

	return nil
}

// BaseURL builds the WebDAV base URL from host, port, scheme and path.
func (s *Settings) BaseURL() string {
	scheme := "http"
	if s.UseHTTPS {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s:%d", scheme, s.ServerHost, s.ServerPort)
	if p := strings.Trim(s.URLPath, "/"); p != "" {
		url += "/" + p
	}
	return url
}

// SetLastSuccessfulBackup persists a new last-success timestamp back into
// the config file, preserving every other line.
func (s *Settings) SetLastSuccessfulBackup(ts time.Time) error {
	s.LastSuccessfulBackup = ts
	s.raw["LAST_SUCCESSFUL_BACKUP"] = ts.Format(time.RFC3339)
	return s.Save()
}

// Save rewrites the config file in place. Known keys are updated on their
// existing lines (keeping comments and ordering); keys not present yet are
// appended.
func (s *Settings) Save() error {
	if s.ConfigPath == "" {
		return fmt.Errorf("no config path set")
	}

	var content string
	if data, err := os.ReadFile(s.ConfigPath); err == nil {
		content = string(data)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("cannot read config file: %w", err)
	}

	for _, key := range persistedKeys {
		value, ok := s.persistedValue(key)
		if !ok {
			continue
		}
		content = utils.SetEnvValue(content, key, value)
	}

	content = strings.TrimLeft(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	tmpPath := s.ConfigPath + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}
	if err := os.Rename(tmpPath, s.ConfigPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cannot replace config file: %w", err)
	}
	return nil
}

var persistedKeys = []string{
	"REMOTE_TYPE", "SOURCE_PATH", "EXCLUDE_PATTERNS",
	"BACKUP_INTERVAL_HOURS", "SCHEDULE", "LAST_SUCCESSFUL_BACKUP",
	"DESTINATION_PATH", "CREATE_DATED_FOLDERS",
	"SERVER_HOST", "SERVER_PORT", "URL_PATH", "USERNAME", "PASSWORD_OBSCURED",
	"BACKUP_PATH", "USE_HTTPS", "VERIFY_SSL", "REMOTE_NAME",
	"RCLONE_TIMEOUT_CONNECTION", "RCLONE_TIMEOUT_OPERATION",
	"RCLONE_TRANSFERS", "RCLONE_RETRIES", "RCLONE_CONFIG_PATH",
	"SESSION_DB_PATH",
	"RETENTION_DAILY_DAYS", "RETENTION_VERSION_DAYS", "SESSION_RETENTION_DAYS",
	"DEBUG_LEVEL", "USE_COLOR", "LOG_PATH",
}

func (s *Settings) persistedValue(key string) (string, bool) {
	switch key {
	case "REMOTE_TYPE":
		return s.RemoteType.String(), true
	case "SOURCE_PATH":
		return s.SourcePath, true
	case "EXCLUDE_PATTERNS":
		return strings.Join(s.ExcludePatterns, ","), true
	case "BACKUP_INTERVAL_HOURS":
		return strconv.Itoa(s.BackupIntervalHours), true
	case "SCHEDULE":
		return s.Schedule, true
	case "LAST_SUCCESSFUL_BACKUP":
		if s.LastSuccessfulBackup.IsZero() {
			return "", false
		}
		return s.LastSuccessfulBackup.Format(time.RFC3339), true
	case "DESTINATION_PATH":
		return s.DestinationPath, true
	case "CREATE_DATED_FOLDERS":
		return strconv.FormatBool(s.CreateDatedFolders), true
	case "SERVER_HOST":
		return s.ServerHost, true
	case "SERVER_PORT":
		return strconv.Itoa(s.ServerPort), true
	case "URL_PATH":
		return s.URLPath, true
	case "USERNAME":
		return s.Username, true
	case "PASSWORD_OBSCURED":
		return s.PasswordObscured, true
	case "BACKUP_PATH":
		return s.BackupPath, true
	case "USE_HTTPS":
		return strconv.FormatBool(s.UseHTTPS), true
	case "VERIFY_SSL":
		return strconv.FormatBool(s.VerifySSL), true
	case "REMOTE_NAME":
		return s.RemoteName, true
	case "RCLONE_TIMEOUT_CONNECTION":
		return strconv.Itoa(s.RcloneTimeoutConnection), true
	case "RCLONE_TIMEOUT_OPERATION":
		return strconv.Itoa(s.RcloneTimeoutOperation), true
	case "RCLONE_TRANSFERS":
		return strconv.Itoa(s.RcloneTransfers), true
	case "RCLONE_RETRIES":
		return strconv.Itoa(s.RcloneRetries), true
	case "RCLONE_CONFIG_PATH":
		return s.RcloneConfigPath, true
	case "SESSION_DB_PATH":
		return s.SessionDBPath, true
	case "RETENTION_DAILY_DAYS":
		return strconv.Itoa(s.RetentionDailyDays), true
	case "RETENTION_VERSION_DAYS":
		return strconv.Itoa(s.RetentionVersionDays), true
	case "SESSION_RETENTION_DAYS":
		return strconv.Itoa(s.SessionRetentionDays), true
	case "DEBUG_LEVEL":
		return strconv.Itoa(int(s.DebugLevel)), true
	case "USE_COLOR":
		return strconv.FormatBool(s.UseColor), true
	case "LOG_PATH":
		if s.LogPath == "" {
			return "", false
		}
		return s.LogPath, true
	}
	return "", false
}

func defaultRcloneConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/dirsave/rclone.conf"
	}
	return filepath.Join(home, ".config", "dirsave", "rclone.conf")
}

func defaultSessionDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/lib/dirsave/sessions.db"
	}
	return filepath.Join(home, ".local", "share", "dirsave", "sessions.db")
}

func writeDefaultFile(configPath string) error {
	if err := utils.EnsureDir(filepath.Dir(configPath)); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	content := `# dirsave configuration
# Destination type: local | webdav
REMOTE_TYPE=local

# Directory tree to back up
SOURCE_PATH=

# Comma-separated exclude patterns (matched against file and directory names)
EXCLUDE_PATTERNS=

# Minimum hours between automatic backups
BACKUP_INTERVAL_HOURS=24

# Scheduler check cadence (cron spec or @every interval)
SCHEDULE=@every 5m

# Local destination
DESTINATION_PATH=
CREATE_DATED_FOLDERS=true

# WebDAV destination
SERVER_HOST=
SERVER_PORT=443
URL_PATH=
USERNAME=
PASSWORD_OBSCURED=
BACKUP_PATH=backups
USE_HTTPS=true
VERIFY_SSL=true
REMOTE_NAME=dirsave

# Retention
RETENTION_DAILY_DAYS=14
RETENTION_VERSION_DAYS=30
SESSION_RETENTION_DAYS=30
`

	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("cannot write default config: %w", err)
	}
	return nil
}

// Helper methods for typed values

func (s *Settings) getString(key, defaultValue string) string {
	if val, ok := s.raw[key]; ok {
		return os.Expand(val, os.Getenv)
	}
	return defaultValue
}

func (s *Settings) getBool(key string, defaultValue bool) bool {
	if val, ok := s.raw[key]; ok {
		return utils.ParseBool(val)
	}
	return defaultValue
}

func (s *Settings) getInt(key string, defaultValue int) int {
	if val, ok := s.raw[key]; ok {
		if intVal, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func (s *Settings) ensurePositiveInt(key string, defaultValue int) int {
	value := s.getInt(key, defaultValue)
	if value <= 0 {
		return defaultValue
	}
	return value
}

func (s *Settings) getLogLevel(key string, defaultValue types.LogLevel) types.LogLevel {
	if val, ok := s.raw[key]; ok {
		if intVal, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return types.LogLevel(intVal)
		}
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "debug":
			return types.LogLevelDebug
		case "info":
			return types.LogLevelInfo
		case "warning":
			return types.LogLevelWarning
		case "error":
			return types.LogLevelError
		case "critical":
			return types.LogLevelCritical
		case "none":
			return types.LogLevelNone
		}
	}
	return defaultValue
}

// Get returns a raw value from the configuration.
func (s *Settings) Get(key string) (string, bool) {
	val, ok := s.raw[key]
	return val, ok
}

// Set stores a raw value in the configuration (takes effect on Save only
// for persisted keys).
func (s *Settings) Set(key, value string) {
	s.raw[key] = value
}

func parseEnvFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open config file: %w", err)
	}
	defer file.Close()

	raw := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if utils.IsComment(trimmed) {
			continue
		}

		key, value, ok := utils.SplitKeyValue(line)
		if !ok {
			continue
		}
		raw[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return raw, nil
}
