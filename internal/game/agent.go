package game

import "github.com/pixil98/go-persistent-worlds/internal/serial"

// NoTile marks an agent that is not parked in the world pool.
const NoTile = -1

type Agent struct {
	ID       string
	Name     string
	Portrait string
	Faction  serial.Ref[*Faction]
	Colonist bool
	Dead     bool

	// HomeTile is the map an agent in the world pool belongs to.
	HomeTile int
}

func NewAgent(id, name string, f *Faction) *Agent {
	a := &Agent{ID: id, Name: name, HomeTile: NoTile}
	if f != nil {
		a.Faction = serial.NewRef(f)
	}
	return a
}

func (a *Agent) RefID() string {
	return a.ID
}

// Eligible reports whether the agent may lead a colony.
func (a *Agent) Eligible() bool {
	return a.Colonist && !a.Dead
}

func (a *Agent) ExposeData(s *serial.Session) error {
	if s.Mode() == serial.ModeLoadingValues {
		a.HomeTile = NoTile
	}
	serial.Value(s, "id", &a.ID, serial.Required())
	serial.Value(s, "name", &a.Name)
	serial.Value(s, "portrait", &a.Portrait)
	serial.LookRef(s, "faction", &a.Faction)
	serial.Value(s, "colonist", &a.Colonist)
	serial.Value(s, "dead", &a.Dead)
	serial.Value(s, "homeTile", &a.HomeTile)
	return s.Err()
}
