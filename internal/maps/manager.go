// Package maps loads and unloads the world maps tied to a colony.
package maps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/pixil98/go-persistent-worlds/internal/game"
	"github.com/pixil98/go-persistent-worlds/internal/serial"
	"github.com/pixil98/go-persistent-worlds/internal/storage"
)

// Hooks lets the host engine finish or release its own per map state.
type Hooks interface {
	FinalizeMap(m *game.Map) error
	ReleaseMap(m *game.Map)
}

// Source reads map artifacts.
type Source interface {
	Read(kind storage.Kind, id string) (*storage.Artifact, error)
}

type Manager struct {
	src   Source
	hooks Hooks
}

func NewManager(src Source, hooks Hooks) *Manager {
	return &Manager{src: src, hooks: hooks}
}

// ArtifactID names the map artifact of tile.
func ArtifactID(tile int) string {
	return strconv.Itoa(tile)
}

// LoadTiles decodes the maps of tiles for a colony and attaches them to the
// world. Every map is decoded before any is attached; on error nothing
// stays attached.
func (m *Manager) LoadTiles(ctx context.Context, w *game.World, colonyID int, tiles []int) ([]*game.Map, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, tile := range tiles {
		if live := w.FindMap(tile); live != nil {
			if live.ColonyID != colonyID {
				return nil, fmt.Errorf("%w: tile %d belongs to colony %d", ErrTileOwned, tile, live.ColonyID)
			}
			return nil, fmt.Errorf("%w: tile %d", game.ErrMapLoaded, tile)
		}
	}

	decoded := make([]*game.Map, 0, len(tiles))
	for _, tile := range tiles {
		gm, err := m.decode(w, colonyID, tile)
		if err != nil {
			return nil, err
		}
		decoded = append(decoded, gm)
	}

	if err := m.Attach(ctx, w, decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func (m *Manager) decode(w *game.World, colonyID, tile int) (*game.Map, error) {
	a, err := m.src.Read(storage.KindMap, ArtifactID(tile))
	if errors.Is(err, storage.ErrNotFound) {
		slog.Warn("map artifact missing, starting a fresh map", "tile", tile, "colony", colonyID)
		return game.NewMap(tile, colonyID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading map %d: %w", tile, err)
	}

	gm := &game.Map{}
	if err := serial.Load("map/"+ArtifactID(tile), a.Body, gm, serial.WithKnown(w.Factions...)); err != nil {
		return nil, fmt.Errorf("loading map %d: %w", tile, err)
	}
	if gm.Tile != tile {
		return nil, fmt.Errorf("%w: artifact %d holds tile %d", ErrTileMismatch, tile, gm.Tile)
	}
	gm.ColonyID = colonyID
	return gm, nil
}

// Attach makes decoded maps live: pooled agents are reclaimed, reservation
// bookkeeping is completed for every faction, caches are rebuilt and the
// host finalizes each map. A failure rolls back every map attached so far.
func (m *Manager) Attach(ctx context.Context, w *game.World, maps []*game.Map) error {
	var attached []attachment
	for _, gm := range maps {
		at, err := m.attach(w, gm)
		if err != nil {
			for i := len(attached) - 1; i >= 0; i-- {
				m.rollback(w, attached[i], true)
			}
			return err
		}
		attached = append(attached, at)
	}

	slog.DebugContext(ctx, "maps attached", "count", len(attached))
	return nil
}

type attachment struct {
	gm        *game.Map
	reclaimed []*game.Agent
}

func (m *Manager) attach(w *game.World, gm *game.Map) (attachment, error) {
	at := attachment{gm: gm}
	if err := w.AddMap(gm); err != nil {
		return at, err
	}

	at.reclaimed = w.ReclaimAgents(gm.Tile)
	for _, a := range at.reclaimed {
		if gm.Agent(a.ID) != nil {
			slog.Warn("agent stored on map and in world pool, keeping pooled copy", "agent", a.ID, "tile", gm.Tile)
		}
		gm.AddAgent(a)
	}

	if added := RegisterFactions(w, gm); added > 0 {
		slog.Debug("registered missing factions on map", "tile", gm.Tile, "count", added)
	}

	gm.RebuildCaches()

	if m.hooks != nil {
		if err := m.hooks.FinalizeMap(gm); err != nil {
			m.rollback(w, at, false)
			return at, fmt.Errorf("finalizing map %d: %w", gm.Tile, err)
		}
	}
	return at, nil
}

// rollback undoes attach: reclaimed agents go back to the pool and the map
// leaves the live set.
func (m *Manager) rollback(w *game.World, at attachment, finalized bool) {
	for _, a := range at.reclaimed {
		w.ParkAgent(a, at.gm.Tile)
	}
	if _, err := w.RemoveMap(at.gm.Tile); err != nil {
		slog.Warn("rolling back map that was not live", "tile", at.gm.Tile, "error", err)
	}
	if finalized && m.hooks != nil {
		m.hooks.ReleaseMap(at.gm)
	}
	at.gm.ReleaseCaches()
}

// RegisterFactions adds every world faction missing from the map's
// reservation bookkeeping. Calling it again adds nothing.
func RegisterFactions(w *game.World, gm *game.Map) int {
	added := 0
	for _, f := range w.Factions {
		if gm.AddReservation(f.ID) {
			added++
		}
	}
	return added
}

// UnloadColonyMaps detaches every live map of a colony. Agents move to the
// world pool, the maps leave the live set and their caches are released.
func (m *Manager) UnloadColonyMaps(ctx context.Context, w *game.World, colonyID int) []*game.Map {
	maps := w.MapsOf(colonyID)
	for _, gm := range maps {
		m.detach(w, gm)
	}

	slog.DebugContext(ctx, "colony maps unloaded", "colony", colonyID, "count", len(maps))
	return maps
}

func (m *Manager) detach(w *game.World, gm *game.Map) {
	for _, a := range gm.TakeAgents() {
		w.ParkAgent(a, gm.Tile)
	}
	if _, err := w.RemoveMap(gm.Tile); err != nil {
		slog.Warn("detaching map that was not live", "tile", gm.Tile, "error", err)
	}
	if m.hooks != nil {
		m.hooks.ReleaseMap(gm)
	}
	gm.ReleaseCaches()
}

// PickCurrentMap applies the recorded index to the maps of a colony. A
// negative or out of range index falls back to the first map; with no maps
// the current map is unset and -1 is returned.
func PickCurrentMap(maps []*game.Map, idx int) (int, *game.Map) {
	if len(maps) == 0 {
		if idx != -1 {
			slog.Warn("current map index set but colony has no maps", "index", idx)
		}
		return -1, nil
	}

	if idx < 0 {
		slog.Error("current map index is negative, using first map", "index", idx, "maps", len(maps))
		return 0, maps[0]
	}

	if idx >= len(maps) {
		slog.Warn("current map index out of range, using first map", "index", idx, "maps", len(maps))
		return 0, maps[0]
	}

	return idx, maps[idx]
}
