package game

import (
	"slices"

	"github.com/pixil98/go-persistent-worlds/internal/serial"
	"github.com/pixil98/go-persistent-worlds/internal/storage"
)

// Map is a loaded section of the world bound to one tile.
type Map struct {
	Tile     int
	ColonyID int
	Agents   []*Agent

	// Reservations lists the factions the map's reservation bookkeeping
	// knows about.
	Reservations []string

	// Terrain is host owned state carried through untouched.
	Terrain storage.ExtensionState

	agentIdx map[string]*Agent
}

func NewMap(tile, colonyID int) *Map {
	return &Map{Tile: tile, ColonyID: colonyID}
}

func (m *Map) ExposeData(s *serial.Session) error {
	serial.Value(s, "tile", &m.Tile, serial.Required())
	serial.Value(s, "colony", &m.ColonyID)
	serial.DeepList(s, "agents", &m.Agents)
	for _, a := range m.Agents {
		s.Register(a)
	}
	serial.Value(s, "reservations", &m.Reservations)
	serial.Value(s, "terrain", &m.Terrain)
	return s.Err()
}

func (m *Map) HasReservation(factionID string) bool {
	return slices.Contains(m.Reservations, factionID)
}

// AddReservation registers factionID and reports whether it was missing.
func (m *Map) AddReservation(factionID string) bool {
	if m.HasReservation(factionID) {
		return false
	}
	m.Reservations = append(m.Reservations, factionID)
	return true
}

// RebuildCaches recomputes the derived lookups of the map.
func (m *Map) RebuildCaches() {
	m.agentIdx = make(map[string]*Agent, len(m.Agents))
	for _, a := range m.Agents {
		m.agentIdx[a.ID] = a
	}
}

func (m *Map) ReleaseCaches() {
	m.agentIdx = nil
}

func (m *Map) CachesBuilt() bool {
	return m.agentIdx != nil
}

func (m *Map) Agent(id string) *Agent {
	if m.agentIdx != nil {
		return m.agentIdx[id]
	}
	for _, a := range m.Agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// AddAgent places a on the map, replacing any agent with the same id.
func (m *Map) AddAgent(a *Agent) {
	a.HomeTile = NoTile
	if i := slices.IndexFunc(m.Agents, func(x *Agent) bool { return x.ID == a.ID }); i >= 0 {
		m.Agents[i] = a
	} else {
		m.Agents = append(m.Agents, a)
	}
	if m.agentIdx != nil {
		m.agentIdx[a.ID] = a
	}
}

// TakeAgents removes and returns every agent on the map.
func (m *Map) TakeAgents() []*Agent {
	agents := m.Agents
	m.Agents = nil
	if m.agentIdx != nil {
		m.agentIdx = map[string]*Agent{}
	}
	return agents
}
