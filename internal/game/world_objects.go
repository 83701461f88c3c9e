package game

import "slices"

func (w *World) AddObject(o *WorldObject) {
	w.Objects = append(w.Objects, o)
}

func (w *World) Object(id string) *WorldObject {
	for _, o := range w.Objects {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// ConvertToPlaceholders swaps the settlements of a colony for colony
// placeholders. The object id is kept.
func (w *World) ConvertToPlaceholders(colonyID int) int {
	return w.swapKind(colonyID, ObjectSettlement, ObjectColony)
}

// ConvertToSettlements is the reverse of ConvertToPlaceholders.
func (w *World) ConvertToSettlements(colonyID int) int {
	return w.swapKind(colonyID, ObjectColony, ObjectSettlement)
}

func (w *World) swapKind(colonyID int, from, to ObjectKind) int {
	n := 0
	for _, o := range w.Objects {
		if o.ColonyID == colonyID && o.Kind == from {
			o.Kind = to
			n++
		}
	}
	return n
}

// ParkCaravans takes every caravan of a colony off the world map.
func (w *World) ParkCaravans(colonyID int) int {
	n := 0
	w.Objects = slices.DeleteFunc(w.Objects, func(o *WorldObject) bool {
		if o.Kind == ObjectCaravan && o.ColonyID == colonyID {
			w.Parked = append(w.Parked, o)
			n++
			return true
		}
		return false
	})
	return n
}

// RestoreCaravans puts the parked caravans of a colony back on the world map.
func (w *World) RestoreCaravans(colonyID int) int {
	n := 0
	w.Parked = slices.DeleteFunc(w.Parked, func(o *WorldObject) bool {
		if o.ColonyID == colonyID {
			w.Objects = append(w.Objects, o)
			n++
			return true
		}
		return false
	})
	return n
}

// RemoveColonyObjects drops every object tagged with colonyID, parked or not.
func (w *World) RemoveColonyObjects(colonyID int) int {
	match := func(o *WorldObject) bool { return o.ColonyID == colonyID }
	before := len(w.Objects) + len(w.Parked)
	w.Objects = slices.DeleteFunc(w.Objects, match)
	w.Parked = slices.DeleteFunc(w.Parked, match)
	return before - len(w.Objects) - len(w.Parked)
}

// SettlementTiles returns the tiles of settlements held by faction id.
func (w *World) SettlementTiles(factionID string) []int {
	var tiles []int
	for _, o := range w.Objects {
		if o.Kind == ObjectSettlement && o.Faction.ID() == factionID {
			tiles = append(tiles, o.Tile)
		}
	}
	return tiles
}
