package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// NewRow is a listing to insert. TempID is the client's temporary id,
// echoed back in the id map.
type NewRow struct {
	TempID int64
	Status string
	Fields json.RawMessage
}

// RowUpdate overlays Changed onto a listing's fields.
type RowUpdate struct {
	ID      int64
	Changed json.RawMessage
}

// SaveBatch is one client batch for one kind.
type SaveBatch struct {
	RequestID string
	Kind      string
	User      string
	Added     []NewRow
	Updated   []RowUpdate
	Deleted   []int64
}

// SaveResult is what an applied batch returns, and what a replay returns
// again.
type SaveResult struct {
	IDMap   map[int64]int64 `json:"id_map"`
	Updated int             `json:"updated"`
	Deleted int             `json:"deleted"`
}

// MoveResult is the outcome of a bucket move.
type MoveResult struct {
	Moved int `json:"moved"`
}

const (
	opSave = "save"
	opMove = "move"
)

// ApplySave applies a batch in one transaction. If the request id was
// already applied, the stored result is returned with replayed set and
// nothing is written.
func (s *Store) ApplySave(ctx context.Context, b SaveBatch) (result SaveResult, replayed bool, err error) {
	if b.RequestID == "" || b.Kind == "" {
		return SaveResult{}, false, fmt.Errorf("apply save: %w: request id and kind are required", ErrInvalid)
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		found, err := lookupApplied(ctx, tx, b.RequestID, opSave, &result)
		if err != nil || found {
			replayed = found
			return err
		}

		result = SaveResult{IDMap: make(map[int64]int64, len(b.Added))}
		for _, row := range b.Added {
			if row.TempID >= 0 {
				return fmt.Errorf("insert: %w: temp id %d is not negative", ErrInvalid, row.TempID)
			}
			if _, dup := result.IDMap[row.TempID]; dup {
				return fmt.Errorf("insert: %w: temp id %d repeated", ErrInvalid, row.TempID)
			}
			id, err := insertListing(ctx, tx, b.Kind, row.Status, row.Fields, b.User)
			if err != nil {
				return err
			}
			result.IDMap[row.TempID] = id
		}

		for _, u := range b.Updated {
			if err := updateListing(ctx, tx, b.Kind, u); err != nil {
				return err
			}
			result.Updated++
		}

		for _, id := range b.Deleted {
			res, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE id = ? AND kind = ?`, id, b.Kind)
			if err != nil {
				return fmt.Errorf("delete listing %d: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("delete listing %d: %w", id, ErrNotFound)
			}
			result.Deleted++
		}

		return recordApplied(ctx, tx, b.RequestID, opSave, b.Kind, b.User, result)
	})
	if err != nil {
		return SaveResult{}, false, fmt.Errorf("apply save: %w", err)
	}
	return result, replayed, nil
}

// MoveBucket moves listings of kind into bucket. Every id must exist.
// Idempotent by request id, like ApplySave.
func (s *Store) MoveBucket(ctx context.Context, requestID, kind, user string, ids []int64, bucket string) (result MoveResult, replayed bool, err error) {
	if requestID == "" || kind == "" || bucket == "" {
		return MoveResult{}, false, fmt.Errorf("move bucket: %w: request id, kind and bucket are required", ErrInvalid)
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		found, err := lookupApplied(ctx, tx, requestID, opMove, &result)
		if err != nil || found {
			replayed = found
			return err
		}

		for _, id := range ids {
			res, err := tx.ExecContext(ctx, `
				UPDATE listings
				SET bucket = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
				WHERE id = ? AND kind = ?
			`, bucket, id, kind)
			if err != nil {
				return fmt.Errorf("move listing %d: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("move listing %d: %w", id, ErrNotFound)
			}
			result.Moved++
		}

		return recordApplied(ctx, tx, requestID, opMove, kind, user, result)
	})
	if err != nil {
		return MoveResult{}, false, fmt.Errorf("move bucket: %w", err)
	}
	return result, replayed, nil
}

// Insert adds one listing outside any batch. Used for seeding.
func (s *Store) Insert(ctx context.Context, kind, status string, fields json.RawMessage) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertListing(ctx, tx, kind, status, fields, "")
		return err
	})
	return id, err
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertListing(ctx context.Context, tx *sql.Tx, kind, status string, fields json.RawMessage, user string) (int64, error) {
	obj, err := normalizeObject(fields)
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	if status == "" {
		status = "normal"
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO listings (kind, status, fields, created_by)
		VALUES (?, ?, ?, ?)
	`, kind, status, obj, user)
	if err != nil {
		return 0, classify(err, "insert %s listing", kind)
	}
	return res.LastInsertId()
}

func updateListing(ctx context.Context, tx *sql.Tx, kind string, u RowUpdate) error {
	var current string
	err := tx.QueryRowContext(ctx, `SELECT fields FROM listings WHERE id = ? AND kind = ?`, u.ID, kind).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update listing %d: %w", u.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update listing %d: %w", u.ID, err)
	}

	merged, err := mergeObjects([]byte(current), u.Changed)
	if err != nil {
		return fmt.Errorf("update listing %d: %w", u.ID, err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE listings
		SET fields = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?
	`, merged, u.ID)
	if err != nil {
		return classify(err, "update listing %d", u.ID)
	}
	return nil
}

func lookupApplied(ctx context.Context, tx *sql.Tx, requestID, op string, out any) (bool, error) {
	var storedOp, response string
	err := tx.QueryRowContext(ctx, `
		SELECT op, response FROM applied_requests WHERE request_id = ?
	`, requestID).Scan(&storedOp, &response)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup request %s: %w", requestID, err)
	}
	if storedOp != op {
		return false, fmt.Errorf("request %s: %w: already used for %s", requestID, ErrInvalid, storedOp)
	}
	if err := json.Unmarshal([]byte(response), out); err != nil {
		return false, fmt.Errorf("decode stored response %s: %w", requestID, err)
	}
	return true, nil
}

func recordApplied(ctx context.Context, tx *sql.Tx, requestID, op, kind, user string, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO applied_requests (request_id, op, kind, response, applied_by)
		VALUES (?, ?, ?, ?, ?)
	`, requestID, op, kind, string(data), user)
	if err != nil {
		return fmt.Errorf("record request %s: %w", requestID, err)
	}
	return nil
}

// normalizeObject checks that raw is a JSON object and re-encodes it with
// sorted keys.
func normalizeObject(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "{}", nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("%w: fields must be a JSON object: %v", ErrInvalid, err)
	}
	if obj == nil {
		return "{}", nil
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// mergeObjects overlays the keys of changed onto current.
func mergeObjects(current, changed []byte) (string, error) {
	var base, patch map[string]json.RawMessage
	if err := json.Unmarshal(current, &base); err != nil {
		return "", fmt.Errorf("stored fields: %w", err)
	}
	if len(changed) > 0 {
		if err := json.Unmarshal(changed, &patch); err != nil {
			return "", fmt.Errorf("%w: changed fields must be a JSON object: %v", ErrInvalid, err)
		}
	}
	if base == nil {
		base = make(map[string]json.RawMessage, len(patch))
	}
	for k, v := range patch {
		base[k] = v
	}
	data, err := json.Marshal(base)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
