// Package types defines shared application data types.
package types

// ExitCode represents the application's exit codes.
type ExitCode int

const (
	// ExitSuccess - Execution completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGenericError - Unspecified generic error.
	ExitGenericError ExitCode = 1

	// ExitConfigError - Configuration error.
	ExitConfigError ExitCode = 2

	// ExitConnectionError - Destination unreachable or rejected the connection.
	ExitConnectionError ExitCode = 3

	// ExitSyncError - Error while mirroring data to the destination.
	ExitSyncError ExitCode = 4

	// ExitSnapshotError - Error while creating a dated snapshot.
	ExitSnapshotError ExitCode = 5

	// ExitSessionError - Error in the session store.
	ExitSessionError ExitCode = 6

	// ExitPanicError - Unhandled panic caught.
	ExitPanicError ExitCode = 7
)

// String returns a human-readable description of the exit code.
func (e ExitCode) String() string {
	switch e {
	case ExitSuccess:
		return "success"
	case ExitGenericError:
		return "generic error"
	case ExitConfigError:
		return "configuration error"
	case ExitConnectionError:
		return "connection error"
	case ExitSyncError:
		return "sync error"
	case ExitSnapshotError:
		return "snapshot error"
	case ExitSessionError:
		return "session store error"
	case ExitPanicError:
		return "panic error"
	default:
		return "unknown error"
	}
}

// Int returns the exit code as a plain integer.
func (e ExitCode) Int() int {
	return int(e)
}
