package regions

import "errors"

var (
	// ErrNoDataFound is returned when the store holds no regions at all.
	ErrNoDataFound = errors.New("no regions found")
	// ErrSaveError wraps every failed write.
	ErrSaveError = errors.New("failed to save regions")
	ErrNotFound  = errors.New("region not found")
	ErrDuplicate = errors.New("region already exists")
)
