// Package outcome defines the machine-readable error kinds callers are
// expected to handle. They are plain sentinels checked with errors.Is, and
// their messages double as wire identifiers.
package outcome

import "errors"

var (
	// ErrNotFound means every reader returned empty for the MTO.
	ErrNotFound = errors.New("not_found")

	// ErrSyncInProgress rejects a manual trigger while a run is active.
	ErrSyncInProgress = errors.New("sync_in_progress")

	// ErrValidation flags an out-of-range or malformed parameter.
	ErrValidation = errors.New("validation_error")

	// ErrInternal flags a violated invariant; nothing above the core
	// should ever need to branch on it.
	ErrInternal = errors.New("internal_error")
)
