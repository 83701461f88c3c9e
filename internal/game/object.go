package game

import "github.com/pixil98/go-persistent-worlds/internal/serial"

type ObjectKind string

const (
	ObjectSettlement ObjectKind = "settlement"
	// ObjectColony stands in for the settlement of a colony that is not active.
	ObjectColony  ObjectKind = "colony"
	ObjectCaravan ObjectKind = "caravan"
	ObjectSite    ObjectKind = "site"
)

// WorldObject is anything placed on a world tile.
type WorldObject struct {
	ID       string
	Kind     ObjectKind
	Tile     int
	Name     string
	Faction  serial.Ref[*Faction]
	ColonyID int
}

func (o *WorldObject) RefID() string {
	return o.ID
}

func (o *WorldObject) ExposeData(s *serial.Session) error {
	kind := o.Kind
	if s.Saving() && kind == ObjectSettlement && o.ColonyID != 0 {
		kind = ObjectColony
	}

	serial.Value(s, "id", &o.ID, serial.Required())
	serial.Value(s, "kind", &kind, serial.Required())
	serial.Value(s, "tile", &o.Tile)
	serial.Value(s, "name", &o.Name)
	serial.LookRef(s, "faction", &o.Faction)
	serial.Value(s, "colony", &o.ColonyID)

	if s.Mode() == serial.ModeLoadingValues {
		o.Kind = kind
	}
	return s.Err()
}
