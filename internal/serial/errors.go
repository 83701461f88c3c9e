package serial

import "errors"

var (
	ErrDuplicateID         = errors.New("duplicate entity id")
	ErrEmptyID             = errors.New("entity id must be set")
	ErrUnresolvedReference = errors.New("unresolved reference")
	ErrRequiredField       = errors.New("required field missing")
)
