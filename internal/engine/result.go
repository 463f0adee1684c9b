package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/gridsync/internal/model"
	"github.com/roach88/gridsync/internal/remote"
)

// ResultStatus is the outcome of one remote call.
type ResultStatus int

const (
	ResultOK ResultStatus = iota
	ResultError
)

func (s ResultStatus) String() string {
	if s == ResultError {
		return "error"
	}
	return "ok"
}

// ReconciliationResult is the value a worker hands back to the owner. It is
// consumed exactly once.
type ReconciliationResult struct {
	Status       ResultStatus
	IDMap        map[model.TempID]model.PersistedID
	UpdatedCount int
	DeletedCount int
	// MovedCount is set by status changes.
	MovedCount int
	Message    string
	// ErrKind classifies an error result; empty on success.
	ErrKind remote.ErrorKind
}

// OK reports whether the call succeeded.
func (r ReconciliationResult) OK() bool { return r.Status == ResultOK }

// Err returns the failure as a *SyncError, or nil on success.
func (r ReconciliationResult) Err() error {
	if r.OK() {
		return nil
	}
	code := ErrCodeApplication
	if r.ErrKind == remote.KindTransport {
		code = ErrCodeTransport
	}
	return &SyncError{Code: code, Message: r.Message}
}

// saveResult converts a save response. An id_map entry with a non-negative
// key or a non-positive value is dropped.
func saveResult(resp remote.SaveResponse) ReconciliationResult {
	res := ReconciliationResult{
		Status:       ResultOK,
		IDMap:        make(map[model.TempID]model.PersistedID, len(resp.IDMap)),
		UpdatedCount: resp.UpdatedCount,
		DeletedCount: resp.DeletedCount,
		Message:      resp.Message,
	}
	for t, p := range resp.IDMap {
		if t < 0 && p > 0 {
			res.IDMap[model.TempID(t)] = model.PersistedID(p)
		}
	}
	return res
}

// errorResult classifies a failed call. Anything that is not a *remote.Error
// is treated as a transport failure.
func errorResult(err error) ReconciliationResult {
	var re *remote.Error
	if errors.As(err, &re) {
		msg := re.Message
		if re.Kind == remote.KindTransport && re.Err != nil {
			msg = fmt.Sprintf("%s: %v", re.Message, re.Err)
		}
		return ReconciliationResult{Status: ResultError, ErrKind: re.Kind, Message: msg}
	}
	return ReconciliationResult{Status: ResultError, ErrKind: remote.KindTransport, Message: err.Error()}
}
