package remote

import (
	"encoding/json"

	"github.com/roach88/gridsync/internal/model"
)

// Response status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Session identifies the editing session a request comes from.
type Session struct {
	SessionID string `json:"session_id"`
	User      string `json:"user"`
}

// AddedRow is a never-persisted row, keyed by its temp id.
type AddedRow struct {
	TempID int64        `json:"temp_id"`
	Fields model.Fields `json:"fields"`
}

// UpdatedRow is a persisted row with its full snapshot and the changed
// fields. The store applies only ChangedFields.
type UpdatedRow struct {
	ID            int64        `json:"id"`
	Fields        model.Fields `json:"fields"`
	ChangedFields model.Fields `json:"changed_fields"`
}

// SaveRequest carries one kind's batch. RequestID is the batch content hash;
// a request whose id was already applied gets the stored response back.
type SaveRequest struct {
	RequestID   string       `json:"request_id"`
	Kind        model.Kind   `json:"kind"`
	Session     Session      `json:"session"`
	AddedRows   []AddedRow   `json:"added_rows"`
	UpdatedRows []UpdatedRow `json:"updated_rows"`
	DeletedIDs  []int64      `json:"deleted_ids"`
}

// SaveResponse acknowledges a SaveRequest. IDMap maps temp ids to the
// persisted ids the store assigned.
type SaveResponse struct {
	Status       string          `json:"status"`
	IDMap        map[int64]int64 `json:"id_map"`
	UpdatedCount int             `json:"updated_count"`
	DeletedCount int             `json:"deleted_count"`
	Message      string          `json:"message,omitempty"`
}

// StatusRequest moves persisted rows into another bucket.
type StatusRequest struct {
	RequestID string     `json:"request_id"`
	Kind      model.Kind `json:"kind"`
	Session   Session    `json:"session"`
	IDs       []int64    `json:"ids"`
	Bucket    string     `json:"bucket"`
}

// StatusResponse acknowledges a StatusRequest.
type StatusResponse struct {
	Status     string `json:"status"`
	MovedCount int    `json:"moved_count"`
	Message    string `json:"message,omitempty"`
}

// Row is one stored row. Fields stay raw until a kind schema decodes them.
type Row struct {
	ID     int64                      `json:"id"`
	Status string                     `json:"status"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// RowsResponse lists the rows of one bucket.
type RowsResponse struct {
	Rows []Row `json:"rows"`
}

// ErrorResponse is the body of a non-2xx answer that carries no typed
// response.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
