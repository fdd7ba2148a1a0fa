package types

// RemoteType represents the kind of backup destination.
type RemoteType string

const (
	// RemoteLocal - local filesystem destination
	RemoteLocal RemoteType = "local"

	// RemoteWebDAV - WebDAV server driven through rclone
	RemoteWebDAV RemoteType = "webdav"

	// RemoteS3 - S3-compatible object storage (declared, not implemented)
	RemoteS3 RemoteType = "s3"

	// RemoteSFTP - SFTP server (declared, not implemented)
	RemoteSFTP RemoteType = "sftp"

	// RemoteFTP - FTP server (declared, not implemented)
	RemoteFTP RemoteType = "ftp"
)

// String returns the string representation of the remote type.
func (r RemoteType) String() string {
	return string(r)
}

// Valid reports whether the remote type is one of the declared types.
func (r RemoteType) Valid() bool {
	switch r {
	case RemoteLocal, RemoteWebDAV, RemoteS3, RemoteSFTP, RemoteFTP:
		return true
	}
	return false
}

// Implemented reports whether a backend exists for the remote type.
func (r RemoteType) Implemented() bool {
	return r == RemoteLocal || r == RemoteWebDAV
}

// SessionStatus represents the lifecycle state of a backup session.
type SessionStatus string

const (
	// StatusRunning - backup in progress
	StatusRunning SessionStatus = "running"

	// StatusSuccess - backup completed successfully
	StatusSuccess SessionStatus = "success"

	// StatusFailed - backup failed during transfer or validation
	StatusFailed SessionStatus = "failed"

	// StatusConnectionError - destination unreachable before transfer started
	StatusConnectionError SessionStatus = "connection_error"

	// StatusSkipped - run not due yet, nothing was done
	StatusSkipped SessionStatus = "skipped"
)

// String returns the string representation of the session status.
func (s SessionStatus) String() string {
	return string(s)
}

// Terminal reports whether the status is a final state.
func (s SessionStatus) Terminal() bool {
	return s != StatusRunning
}

// LogLevel represents the logging level.
type LogLevel int

const (
	// LogLevelDebug - Debug logs (maximum detail)
	LogLevelDebug LogLevel = 5

	// LogLevelInfo - General information
	LogLevelInfo LogLevel = 4

	// LogLevelWarning - Warnings
	LogLevelWarning LogLevel = 3

	// LogLevelError - Errors
	LogLevelError LogLevel = 2

	// LogLevelCritical - Critical errors
	LogLevelCritical LogLevel = 1

	// LogLevelNone - No logs
	LogLevelNone LogLevel = 0
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarning:
		return "WARNING"
	case LogLevelError:
		return "ERROR"
	case LogLevelCritical:
		return "CRITICAL"
	case LogLevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}
