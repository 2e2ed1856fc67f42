package jobs

import (
	"errors"

	"github.com/therealutkarshpriyadarshi/mediafetch/internal/provider"
)

// Error taxonomy surfaced to the HTTP layer
var (
	ErrValidation = errors.New("invalid or unsupported url")
	ErrExtraction = provider.ErrExtraction
	ErrDownload   = provider.ErrDownload
	ErrNotFound   = errors.New("download not found")
	ErrNotReady   = errors.New("download not ready")
	ErrRetrieval  = errors.New("artifact unavailable")
	ErrShutdown   = errors.New("job manager shutting down")
)
