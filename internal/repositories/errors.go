package repositories

import "errors"

var (
	ErrNotFound       = errors.New("record not found")
	// ErrStatusConflict means a conditional status update matched no row.
	ErrStatusConflict = errors.New("status changed concurrently")
)
