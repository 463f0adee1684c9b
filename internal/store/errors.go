package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a batch names a listing that doesn't
	// exist for its kind.
	ErrNotFound = errors.New("listing not found")

	// ErrDuplicateKey is returned when a write would repeat a listing
	// number within a kind.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalid is returned for a malformed batch.
	ErrInvalid = errors.New("invalid batch")
)

// IsRejection reports whether err is the store refusing a batch, as opposed
// to the store failing.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateKey) || errors.Is(err, ErrInvalid)
}

// classify maps SQLite constraint failures onto store errors.
func classify(err error, format string, args ...any) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf(format+": %w", append(args, ErrDuplicateKey)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
