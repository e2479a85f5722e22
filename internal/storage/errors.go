package storage

import "errors"

// ErrInvalidInput is returned when input validation fails.
// Duplicate bars are not errors: inserts report them as inserted=false.
var ErrInvalidInput = errors.New("invalid input")
