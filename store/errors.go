package store

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the store rejects the credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrIndexNotFound is returned when the configured index does not exist
	ErrIndexNotFound = errors.New("index not found")

	// ErrNamespaceNotFound is returned when trying to access a non-existent namespace
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrRecordExists is returned when adding a record whose id is already present
	ErrRecordExists = errors.New("record already exists")

	// ErrInvalidCursor is returned when a pagination cursor cannot be decoded
	ErrInvalidCursor = errors.New("invalid pagination cursor")

	// ErrMalformedResponse is returned when a response envelope matches none of the known shapes
	ErrMalformedResponse = errors.New("malformed response")
)

/*
APIError is a non-success HTTP response from the store.
*/
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("store returned status %d: %s", e.StatusCode, e.Message)
}
