package persist

import "errors"

var (
	ErrNoWorld          = errors.New("no world loaded")
	ErrInconsistent     = errors.New("world state inconsistent, reload the world")
	ErrAlreadyConverted = errors.New("world already has colonies")
	ErrColonyNotFound   = errors.New("colony not found")
	ErrColonyActive     = errors.New("colony is active")
)
