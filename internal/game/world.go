package game

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/pixil98/go-persistent-worlds/internal/serial"
)

type WorldInfo struct {
	PersistentID string `json:"persistentId"`
	Name         string `json:"name"`
	Seed         int64  `json:"seed"`
}

type Grid struct {
	Tiles  int      `json:"tiles"`
	Biomes []string `json:"biomes,omitempty"`
}

// Counters hands out ids that are never reused within a world.
type Counters struct {
	NextAgent   int   `json:"nextAgent"`
	NextFaction int   `json:"nextFaction"`
	NextObject  int   `json:"nextObject"`
	NextColony  int   `json:"nextColony"`
	Tick        int64 `json:"tick"`
}

// World is the shared simulated world every colony lives in.
type World struct {
	Info     WorldInfo
	Grid     Grid
	Counters Counters

	Factions []*Faction
	Pool     []*Agent
	Objects  []*WorldObject
	Parked   []*WorldObject

	Player      serial.Ref[*Faction]
	ColonyOrder []int

	maps []*Map
}

func NewWorld(name string, seed int64, tiles int) *World {
	return &World{
		Info: WorldInfo{
			PersistentID: uuid.NewString(),
			Name:         name,
			Seed:         seed,
		},
		Grid: Grid{Tiles: tiles},
	}
}

func (w *World) ExposeData(s *serial.Session) error {
	serial.Value(s, "info", &w.Info, serial.Required())
	serial.Value(s, "grid", &w.Grid)
	serial.Value(s, "counters", &w.Counters, serial.Required())
	serial.DeepList(s, "factions", &w.Factions, serial.Required())
	serial.DeepList(s, "pool", &w.Pool)
	serial.DeepList(s, "objects", &w.Objects)
	serial.DeepList(s, "parked", &w.Parked)

	for _, f := range w.Factions {
		s.Register(f)
	}
	for _, a := range w.Pool {
		s.Register(a)
	}
	for _, o := range w.Objects {
		s.Register(o)
	}
	for _, o := range w.Parked {
		s.Register(o)
	}

	serial.LookRef(s, "player", &w.Player, serial.Required())
	serial.Value(s, "colonyOrder", &w.ColonyOrder)
	return s.Err()
}

func (w *World) NewAgentID() string {
	w.Counters.NextAgent++
	return fmt.Sprintf("Agent_%d", w.Counters.NextAgent)
}

func (w *World) NewFactionID() string {
	w.Counters.NextFaction++
	return fmt.Sprintf("Faction_%d", w.Counters.NextFaction)
}

func (w *World) NewObjectID() string {
	w.Counters.NextObject++
	return fmt.Sprintf("WorldObject_%d", w.Counters.NextObject)
}

// NewColonyID allocates a colony id. Ids start at 1 and are never reused.
func (w *World) NewColonyID() int {
	w.Counters.NextColony++
	return w.Counters.NextColony
}

// AddFaction appends f to the faction arena.
func (w *World) AddFaction(f *Faction) {
	w.Factions = append(w.Factions, f)
}

func (w *World) Faction(id string) *Faction {
	for _, f := range w.Factions {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// PlayerFaction is the single faction slot the host engine drives.
func (w *World) PlayerFaction() *Faction {
	if !w.Player.IsResolved() {
		return nil
	}
	return w.Player.Get()
}

func (w *World) SetPlayerFaction(f *Faction) {
	f.IsPlayer = true
	w.Player.Set(f)
}

func (w *World) Maps() []*Map {
	return slices.Clone(w.maps)
}

func (w *World) FindMap(tile int) *Map {
	for _, m := range w.maps {
		if m.Tile == tile {
			return m
		}
	}
	return nil
}

// MapsOf returns the live maps of a colony in load order.
func (w *World) MapsOf(colonyID int) []*Map {
	var out []*Map
	for _, m := range w.maps {
		if m.ColonyID == colonyID {
			out = append(out, m)
		}
	}
	return out
}

func (w *World) AddMap(m *Map) error {
	if w.FindMap(m.Tile) != nil {
		return fmt.Errorf("%w: tile %d", ErrMapLoaded, m.Tile)
	}
	w.maps = append(w.maps, m)
	return nil
}

func (w *World) RemoveMap(tile int) (*Map, error) {
	i := slices.IndexFunc(w.maps, func(m *Map) bool { return m.Tile == tile })
	if i < 0 {
		return nil, fmt.Errorf("%w: tile %d", ErrMapNotLoaded, tile)
	}
	m := w.maps[i]
	w.maps = slices.Delete(w.maps, i, i+1)
	return m, nil
}

// FindAgent searches the live maps, then the world pool.
func (w *World) FindAgent(id string) *Agent {
	if id == "" {
		return nil
	}
	for _, m := range w.maps {
		if a := m.Agent(id); a != nil {
			return a
		}
	}
	for _, a := range w.Pool {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// ParkAgent moves a into the world pool, remembering the tile it came from.
func (w *World) ParkAgent(a *Agent, tile int) {
	a.HomeTile = tile
	if i := slices.IndexFunc(w.Pool, func(x *Agent) bool { return x.ID == a.ID }); i >= 0 {
		w.Pool[i] = a
		return
	}
	w.Pool = append(w.Pool, a)
}

// ReclaimAgents removes and returns the pooled agents that belong to tile.
func (w *World) ReclaimAgents(tile int) []*Agent {
	var out []*Agent
	w.Pool = slices.DeleteFunc(w.Pool, func(a *Agent) bool {
		if a.HomeTile == tile {
			out = append(out, a)
			return true
		}
		return false
	})
	return out
}

// DropPooledAgents discards the pooled agents of the given tiles.
func (w *World) DropPooledAgents(tiles []int) int {
	before := len(w.Pool)
	w.Pool = slices.DeleteFunc(w.Pool, func(a *Agent) bool {
		return a.HomeTile != NoTile && slices.Contains(tiles, a.HomeTile)
	})
	return before - len(w.Pool)
}
