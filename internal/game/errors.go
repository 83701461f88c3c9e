package game

import "errors"

var (
	ErrMapLoaded         = errors.New("map already loaded")
	ErrMapNotLoaded      = errors.New("map not loaded")
	ErrNoPlayerFaction   = errors.New("world has no player faction")
	ErrFactionNotFound   = errors.New("faction not found")
	ErrInvalidTransition = errors.New("invalid colony status transition")
)
