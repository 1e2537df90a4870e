package repository

import "errors"

// Sentinel kinds for artifact store errors.
var (
	ErrNotFound      = errors.New("artifact not found")
	ErrAlreadyExists = errors.New("artifact already exists")
	ErrInvalidLimit  = errors.New("invalid list limit")
)
