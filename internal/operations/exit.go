package operations

import (
	"context"
	"errors"

	"github.com/kebairia/mealie-backup/internal/transport"
	"github.com/kebairia/mealie-backup/internal/types"
)

// ExitCodeFor maps the outcome of a rotation to the process exit status.
func ExitCodeFor(err error) types.ExitCode {
	if err == nil {
		return types.ExitSuccess
	}
	if errors.Is(err, context.Canceled) || transport.KindOf(err) == transport.KindCanceled {
		return types.ExitCanceled
	}

	var se *StageError
	if !errors.As(err, &se) {
		return types.ExitGenericError
	}
	switch se.Stage {
	case StageConfig:
		return types.ExitConfigError
	case StageHealth:
		return types.ExitNetworkError
	case StageCreate, StageToken, StageDownload, StageCompress:
		return types.ExitBackupError
	case StageUpload:
		return types.ExitStorageError
	default:
		return types.ExitGenericError
	}
}
