package engine

import (
	"fmt"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

type EngineErrorCause string

const (
	// ErrCauseConfigInvalid means the engine was asked to start with a
	// configuration that could not be built or that references a store
	// the engine cannot reach -- fatal, the engine never starts.
	ErrCauseConfigInvalid EngineErrorCause = "invalid configuration"
	// ErrCauseFrontierUnavailable means the frontier store could not be
	// reached at startup or stopped responding mid-crawl -- fatal, the
	// engine stops rather than spin workers against a dead queue.
	ErrCauseFrontierUnavailable EngineErrorCause = "frontier store unavailable"
	ErrCauseAlreadyRunning      EngineErrorCause = "engine already running"
	ErrCauseNotRunning          EngineErrorCause = "engine not running"
)

type EngineError struct {
	Message   string
	Retryable bool
	Cause     EngineErrorCause
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error: %s", e.Cause)
}

func (e *EngineError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapEngineErrorToMetadataCause maps engine-local error semantics to the
// canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used to derive
// control-flow decisions.
func mapEngineErrorToMetadataCause(err *EngineError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseConfigInvalid:
		return metadata.CauseInvariantViolation
	case ErrCauseFrontierUnavailable:
		return metadata.CauseNetworkFailure
	default:
		return metadata.CauseUnknown
	}
}

var _ failure.ClassifiedError = (*EngineError)(nil)
