package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Listing is one stored row.
type Listing struct {
	ID     int64
	Kind   string
	Bucket string
	Status string
	Fields json.RawMessage
}

// Rows returns the listings of kind in bucket, ordered by id.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) Rows(ctx context.Context, kind, bucket string) ([]Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, bucket, status, fields
		FROM listings
		WHERE kind = ? AND bucket = ?
		ORDER BY id ASC
	`, kind, bucket)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	out := []Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return out, nil
}

// Get returns one listing by id.
func (s *Store) Get(ctx context.Context, id int64) (Listing, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, bucket, status, fields
		FROM listings
		WHERE id = ?
	`, id)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Listing{}, fmt.Errorf("get listing %d: %w", id, ErrNotFound)
	}
	return l, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanListing(sc scanner) (Listing, error) {
	var (
		l      Listing
		fields string
	)
	if err := sc.Scan(&l.ID, &l.Kind, &l.Bucket, &l.Status, &fields); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Listing{}, err
		}
		return Listing{}, fmt.Errorf("scan listing: %w", err)
	}
	l.Fields = json.RawMessage(fields)
	return l, nil
}
