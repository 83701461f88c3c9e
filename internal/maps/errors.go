package maps

import "errors"

var (
	ErrTileOwned    = errors.New("tile owned by another colony")
	ErrTileMismatch = errors.New("map artifact tile mismatch")
)
