package repository

import "errors"

var (
	// ErrRecordNotFound indicates the record does not exist in the store
	ErrRecordNotFound = errors.New("record not found")

	// ErrStoreUnavailable indicates the durable store could not be reached
	ErrStoreUnavailable = errors.New("durable store unavailable")
)
