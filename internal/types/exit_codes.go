// Package types defines shared application data types.
package types

// ExitCode represents the process exit status of one run.
type ExitCode int

const (
	// ExitSuccess - every stage completed and the upload was accepted.
	ExitSuccess ExitCode = 0

	// ExitGenericError - unspecified error.
	ExitGenericError ExitCode = 1

	// ExitConfigError - configuration error, nothing was contacted.
	ExitConfigError ExitCode = 2

	// ExitBackupError - the backup could not be created, located or downloaded.
	ExitBackupError ExitCode = 4

	// ExitStorageError - the upload to remote storage failed.
	ExitStorageError ExitCode = 5

	// ExitNetworkError - the backup server was unreachable.
	ExitNetworkError ExitCode = 6

	// ExitCanceled - the run was interrupted by a signal.
	ExitCanceled ExitCode = 130
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
	case ExitBackupError:
		return "backup error"
	case ExitStorageError:
		return "storage error"
	case ExitNetworkError:
		return "network error"
	case ExitCanceled:
		return "canceled"
	default:
		return "unknown error"
	}
}

// Int returns the exit code as an int for os.Exit.
func (e ExitCode) Int() int {
	return int(e)
}
