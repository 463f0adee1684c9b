package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/gridsync/internal/model"
)

// SyncError is an error raised by an owner-side session operation.
//
// Remote failures never surface as a SyncError from the call that started a
// flush: they arrive later as a ReconciliationResult. The transport and
// application codes exist so a result can be turned back into an error for
// callers that want one (see ReconciliationResult.Err).
type SyncError struct {
	// Code identifies the error category.
	Code SyncErrorCode

	// Message is a human-readable description.
	Message string

	// Kind is the affected listing kind, if any.
	Kind model.Kind

	// Details contains additional context.
	Details map[string]string
}

// SyncErrorCode categorizes sync errors.
type SyncErrorCode string

const (
	// ErrCodeTransport indicates the remote call got no HTTP response.
	ErrCodeTransport SyncErrorCode = "TRANSPORT_FAILURE"

	// ErrCodeApplication indicates the remote store refused the request.
	ErrCodeApplication SyncErrorCode = "APPLICATION_FAILURE"

	// ErrCodeBusy indicates another flush is in flight.
	ErrCodeBusy SyncErrorCode = "BUSY"

	// ErrCodePendingRows indicates rows still have unsent changes.
	ErrCodePendingRows SyncErrorCode = "PENDING_ROWS"

	// ErrCodeUnknownRow indicates an identity with no grid row.
	ErrCodeUnknownRow SyncErrorCode = "UNKNOWN_ROW"

	// ErrCodeUnknownKind indicates a kind with no schema or table.
	ErrCodeUnknownKind SyncErrorCode = "UNKNOWN_KIND"

	// ErrCodeInvalidValue indicates a cell value the kind schema rejects.
	ErrCodeInvalidValue SyncErrorCode = "INVALID_VALUE"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s (kind=%s)", e.Code, e.Message, e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code SyncErrorCode) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsBusy returns true if a flush was refused because one is in flight.
func IsBusy(err error) bool { return hasCode(err, ErrCodeBusy) }

// IsPendingRows returns true if a status change was refused because rows
// still have unsent changes.
func IsPendingRows(err error) bool { return hasCode(err, ErrCodePendingRows) }

// IsUnknownRow returns true if the error names a row the grid doesn't hold.
func IsUnknownRow(err error) bool { return hasCode(err, ErrCodeUnknownRow) }

// IsTransport returns true for a transport failure result.
func IsTransport(err error) bool { return hasCode(err, ErrCodeTransport) }

// NewBusyError creates a SyncError for a refused flush.
func NewBusyError(kind model.Kind) *SyncError {
	return &SyncError{
		Code:    ErrCodeBusy,
		Message: "a save is already in progress",
		Kind:    kind,
	}
}

// NewPendingRowsError creates a SyncError listing the rows with unsent
// changes.
func NewPendingRowsError(kind model.Kind, ids []model.PersistedID) *SyncError {
	return &SyncError{
		Code:    ErrCodePendingRows,
		Message: fmt.Sprintf("%d row(s) have unsaved changes; save first", len(ids)),
		Kind:    kind,
		Details: map[string]string{"ids": fmt.Sprint(ids)},
	}
}

func unknownRowError(kind model.Kind, id model.Identity) *SyncError {
	return &SyncError{
		Code:    ErrCodeUnknownRow,
		Message: fmt.Sprintf("no row %s", id),
		Kind:    kind,
	}
}

func unknownKindError(kind model.Kind) *SyncError {
	return &SyncError{
		Code:    ErrCodeUnknownKind,
		Message: "no such listing kind",
		Kind:    kind,
	}
}
