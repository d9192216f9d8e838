// Package sentinel holds the storage-level errors every record store backend
// reports. The bloodbank store layer maps them onto coded domain errors.
package sentinel

import "errors"

var (
	// ErrNotFound means no record exists under the key.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable means the backend could not be reached.
	ErrUnavailable = errors.New("record store unavailable")
)
