package storage

import "errors"

var (
	ErrNotFound     = errors.New("artifact not found")
	ErrKindMismatch = errors.New("artifact kind mismatch")
	ErrNewerVersion = errors.New("artifact written by a newer version")
)
