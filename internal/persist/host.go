package persist

import (
	"github.com/pixil98/go-persistent-worlds/internal/game"
	"github.com/pixil98/go-persistent-worlds/internal/maps"
	"github.com/pixil98/go-persistent-worlds/internal/storage"
)

// Host is the simulation engine the orchestrator drives. It owns rendering,
// ticking and any per map state of its own.
type Host interface {
	maps.Hooks

	// SetCurrentMap switches the engine to m; nil means no map is shown.
	SetCurrentMap(m *game.Map)
	View() game.ViewState
	SetView(v game.ViewState)
	// ReturnToColonySelection is called when a colony failed to load.
	ReturnToColonySelection(err error)
}

// ExtensionHost is a Host that keeps per colony state of its own. The values
// are stored in the colony game state, one entry per key.
type ExtensionHost interface {
	Host

	// ColonyExtensions returns the values to store with the active colony.
	// A nil value removes the key.
	ColonyExtensions() map[string]any
	// RestoreColonyExtensions hands the stored values back once the colony
	// is active again.
	RestoreColonyExtensions(ext storage.ExtensionState) error
}

// NopHost ignores every call.
type NopHost struct{}

func (NopHost) FinalizeMap(*game.Map) error   { return nil }
func (NopHost) ReleaseMap(*game.Map)          {}
func (NopHost) SetCurrentMap(*game.Map)       {}
func (NopHost) View() game.ViewState          { return game.ViewState{} }
func (NopHost) SetView(game.ViewState)        {}
func (NopHost) ReturnToColonySelection(error) {}
