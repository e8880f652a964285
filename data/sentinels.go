package data

import "errors"

// Standard gateway errors. Driver implementations should return these
// where they apply so callers can match with errors.Is.
var (
	// Mount resolution errors
	ErrNotMounted     = errors.New("vgate: path not mounted")
	ErrAlreadyMounted = errors.New("vgate: prefix already mounted")

	// Object errors
	ErrNotExist     = errors.New("vgate: object does not exist")
	ErrExist        = errors.New("vgate: object already exists")
	ErrIsDirectory  = errors.New("vgate: is a directory")
	ErrNotDirectory = errors.New("vgate: not a directory")

	// Upload session errors
	ErrSessionNotFound = errors.New("vgate: upload session not found")

	ErrInvalid = errors.New("vgate: invalid argument")
)
