package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/store"
)

// maxBody bounds a request body.
const maxBody = 8 << 20

// saveBody mirrors remote.SaveRequest with fields left raw; the server does
// not need the kind schema to store them.
type saveBody struct {
	RequestID string         `json:"request_id"`
	Kind      string         `json:"kind"`
	Session   remote.Session `json:"session"`
	AddedRows []struct {
		TempID int64           `json:"temp_id"`
		Fields json.RawMessage `json:"fields"`
	} `json:"added_rows"`
	UpdatedRows []struct {
		ID            int64           `json:"id"`
		ChangedFields json.RawMessage `json:"changed_fields"`
	} `json:"updated_rows"`
	DeletedIDs []int64 `json:"deleted_ids"`
}

type statusBody struct {
	RequestID string  `json:"request_id"`
	IDs       []int64 `json:"ids"`
	Bucket    string  `json:"bucket"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": remote.StatusOK})
}

func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	var body saveBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Kind != "" && body.Kind != kind {
		writeJSON(w, http.StatusBadRequest, remote.SaveResponse{
			Status:  remote.StatusError,
			Message: "kind in body does not match path",
		})
		return
	}

	batch := store.SaveBatch{
		RequestID: body.RequestID,
		Kind:      kind,
		User:      userOf(r),
		Deleted:   body.DeletedIDs,
	}
	for _, a := range body.AddedRows {
		batch.Added = append(batch.Added, store.NewRow{TempID: a.TempID, Fields: a.Fields})
	}
	for _, u := range body.UpdatedRows {
		batch.Updated = append(batch.Updated, store.RowUpdate{ID: u.ID, Changed: u.ChangedFields})
	}

	res, replayed, err := s.store.ApplySave(r.Context(), batch)
	if err != nil {
		s.logFailure(r, "save", err)
		writeJSON(w, failureStatus(err), remote.SaveResponse{Status: remote.StatusError, Message: err.Error()})
		return
	}

	s.logger.Info("save applied",
		"kind", kind,
		"request_id", body.RequestID,
		"session", body.Session.SessionID,
		"added", len(res.IDMap),
		"updated", res.Updated,
		"deleted", res.Deleted,
		"replayed", replayed,
	)
	writeJSON(w, http.StatusOK, remote.SaveResponse{
		Status:       remote.StatusOK,
		IDMap:        res.IDMap,
		UpdatedCount: res.Updated,
		DeletedCount: res.Deleted,
	})
}

func (s *Server) changeStatus(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	var body statusBody
	if !decodeBody(w, r, &body) {
		return
	}

	res, replayed, err := s.store.MoveBucket(r.Context(), body.RequestID, kind, userOf(r), body.IDs, body.Bucket)
	if err != nil {
		s.logFailure(r, "status", err)
		writeJSON(w, failureStatus(err), remote.StatusResponse{Status: remote.StatusError, Message: err.Error()})
		return
	}

	s.logger.Info("bucket move applied",
		"kind", kind,
		"request_id", body.RequestID,
		"bucket", body.Bucket,
		"moved", res.Moved,
		"replayed", replayed,
	)
	writeJSON(w, http.StatusOK, remote.StatusResponse{Status: remote.StatusOK, MovedCount: res.Moved})
}

func (s *Server) rows(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		bucket = "active"
	}

	listings, err := s.store.Rows(r.Context(), kind, bucket)
	if err != nil {
		s.logFailure(r, "rows", err)
		writeError(w, http.StatusInternalServerError, "failed to list rows")
		return
	}

	out := remote.RowsResponse{Rows: make([]remote.Row, 0, len(listings))}
	for _, l := range listings {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(l.Fields, &fields); err != nil {
			s.logFailure(r, "rows", err)
			writeError(w, http.StatusInternalServerError, "stored row is not a JSON object")
			return
		}
		out.Rows = append(out.Rows, remote.Row{ID: l.ID, Status: l.Status, Fields: fields})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) logFailure(r *http.Request, op string, err error) {
	level := s.logger.Error
	if store.IsRejection(err) {
		level = s.logger.Warn
	}
	level(op+" failed",
		"kind", chi.URLParam(r, "kind"),
		"req_id", middleware.GetReqID(r.Context()),
		"error", err,
	)
}

// failureStatus maps a store error to an HTTP code: refusals are the
// client's batch, anything else is the server.
func failureStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalid):
		return http.StatusBadRequest
	case store.IsRejection(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, remote.ErrorResponse{Status: remote.StatusError, Message: message})
}
