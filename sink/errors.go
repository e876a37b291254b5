package sink

import "errors"

var (
	// ErrNoCache is returned when the cached file does not exist
	ErrNoCache = errors.New("no cached table")

	// ErrBadHeader is returned when a delimited file does not start with id and the coordinate columns
	ErrBadHeader = errors.New("invalid header")

	// ErrEmptyTable is returned when writing a table without rows
	ErrEmptyTable = errors.New("table has no rows")
)
