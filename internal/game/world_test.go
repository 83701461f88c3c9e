package game

import (
	"errors"
	"testing"

	"github.com/pixil98/go-testutil"

	"github.com/pixil98/go-persistent-worlds/internal/serial"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()

	w := NewWorld("Rimworld", 1234, 5000)

	player := &Faction{ID: w.NewFactionID(), Def: "PlayerColony", Name: "New Arrivals"}
	pirates := &Faction{ID: w.NewFactionID(), Def: "Pirate", Name: "Red Hand", PermanentEnemy: true}
	traders := &Faction{ID: w.NewFactionID(), Def: "Outlander", Name: "Free Union"}
	w.AddFaction(player)
	w.AddFaction(pirates)
	w.AddFaction(traders)
	w.SetPlayerFaction(player)

	player.SetRelation(pirates, -100, RelationHostile)
	pirates.SetRelation(player, -100, RelationHostile)
	player.SetRelation(traders, 20, RelationNeutral)
	traders.SetRelation(player, 20, RelationNeutral)

	w.AddObject(&WorldObject{ID: w.NewObjectID(), Kind: ObjectSettlement, Tile: 10, Name: "Base", Faction: serial.NewRef(player), ColonyID: 1})
	w.AddObject(&WorldObject{ID: w.NewObjectID(), Kind: ObjectSettlement, Tile: 90, Name: "Outpost", Faction: serial.NewRef(traders)})
	w.AddObject(&WorldObject{ID: w.NewObjectID(), Kind: ObjectCaravan, Tile: 11, Name: "Traders", Faction: serial.NewRef(player), ColonyID: 1})

	trader := NewAgent(w.NewAgentID(), "Tynan", traders)
	w.ParkAgent(trader, 90)

	return w
}

func TestWorld_RoundTrip(t *testing.T) {
	w := newTestWorld(t)

	data, err := serial.Save("world", w)
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	got := &World{}
	if err := serial.Load("world", data, got); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	testutil.AssertEqual(t, "persistent id", got.Info.PersistentID, w.Info.PersistentID)
	testutil.AssertEqual(t, "seed", got.Info.Seed, int64(1234))
	testutil.AssertEqual(t, "faction count", len(got.Factions), 3)
	testutil.AssertEqual(t, "next faction", got.Counters.NextFaction, 3)
	testutil.AssertEqual(t, "player slot", got.PlayerFaction() == got.Factions[0], true)
	testutil.AssertEqual(t, "player flag", got.PlayerFaction().IsPlayer, true)

	rel := got.Factions[0].RelationWith(got.Factions[1].ID)
	if rel == nil {
		t.Fatal("expected relation with pirates")
	}
	testutil.AssertEqual(t, "relation target", rel.Other.Get() == got.Factions[1], true)
	testutil.AssertEqual(t, "relation goodwill", rel.Goodwill, -100)

	testutil.AssertEqual(t, "pool size", len(got.Pool), 1)
	testutil.AssertEqual(t, "pool home tile", got.Pool[0].HomeTile, 90)
	testutil.AssertEqual(t, "pool faction", got.Pool[0].Faction.Get() == got.Factions[2], true)
}

func TestWorld_ColonySettlementWrittenAsPlaceholder(t *testing.T) {
	w := newTestWorld(t)

	data, err := serial.Save("world", w)
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	testutil.AssertEqual(t, "live kind unchanged", w.Objects[0].Kind, ObjectSettlement)

	got := &World{}
	if err := serial.Load("world", data, got); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	testutil.AssertEqual(t, "colony settlement", got.Objects[0].Kind, ObjectColony)
	testutil.AssertEqual(t, "same id", got.Objects[0].ID, w.Objects[0].ID)
	testutil.AssertEqual(t, "foreign settlement", got.Objects[1].Kind, ObjectSettlement)
}

func TestWorld_UnresolvedPlayerFaction(t *testing.T) {
	w := newTestWorld(t)
	w.Player = serial.RefTo[*Faction]("Faction_77")

	data, err := serial.Save("world", w)
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	err = serial.Load("world", data, &World{})
	if !errors.Is(err, serial.ErrUnresolvedReference) {
		t.Fatalf("expected ErrUnresolvedReference, got %v", err)
	}
}

func TestWorld_Placeholders(t *testing.T) {
	w := newTestWorld(t)

	testutil.AssertEqual(t, "to placeholders", w.ConvertToPlaceholders(1), 1)
	testutil.AssertEqual(t, "placeholder kind", w.Objects[0].Kind, ObjectColony)
	testutil.AssertEqual(t, "other colony untouched", w.ConvertToPlaceholders(2), 0)

	testutil.AssertEqual(t, "to settlements", w.ConvertToSettlements(1), 1)
	testutil.AssertEqual(t, "settlement kind", w.Objects[0].Kind, ObjectSettlement)
}

func TestWorld_ParkAndRestoreCaravans(t *testing.T) {
	w := newTestWorld(t)
	caravanID := w.Objects[2].ID

	testutil.AssertEqual(t, "parked", w.ParkCaravans(1), 1)
	testutil.AssertEqual(t, "objects after park", len(w.Objects), 2)
	testutil.AssertEqual(t, "parked list", len(w.Parked), 1)

	testutil.AssertEqual(t, "restored", w.RestoreCaravans(1), 1)
	testutil.AssertEqual(t, "parked after restore", len(w.Parked), 0)
	testutil.AssertEqual(t, "caravan back", w.Object(caravanID) != nil, true)
}

func TestWorld_RemoveColonyObjects(t *testing.T) {
	w := newTestWorld(t)
	w.ParkCaravans(1)

	testutil.AssertEqual(t, "removed", w.RemoveColonyObjects(1), 2)
	testutil.AssertEqual(t, "objects left", len(w.Objects), 1)
	testutil.AssertEqual(t, "parked left", len(w.Parked), 0)
}

func TestWorld_Maps(t *testing.T) {
	w := newTestWorld(t)
	m := NewMap(10, 1)

	if err := w.AddMap(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.AddMap(NewMap(10, 2)); !errors.Is(err, ErrMapLoaded) {
		t.Errorf("expected ErrMapLoaded, got %v", err)
	}
	testutil.AssertEqual(t, "colony maps", len(w.MapsOf(1)), 1)
	testutil.AssertEqual(t, "other colony maps", len(w.MapsOf(2)), 0)

	if _, err := w.RemoveMap(10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := w.RemoveMap(10); !errors.Is(err, ErrMapNotLoaded) {
		t.Errorf("expected ErrMapNotLoaded, got %v", err)
	}
}

func TestWorld_FindAgentAndPool(t *testing.T) {
	w := newTestWorld(t)
	m := NewMap(10, 1)
	colonist := NewAgent(w.NewAgentID(), "Engie", w.PlayerFaction())
	m.AddAgent(colonist)
	m.RebuildCaches()
	if err := w.AddMap(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "on map", w.FindAgent(colonist.ID) == colonist, true)
	testutil.AssertEqual(t, "in pool", w.FindAgent(w.Pool[0].ID) == w.Pool[0], true)
	testutil.AssertEqual(t, "missing", w.FindAgent("Agent_404") == nil, true)

	for _, a := range m.TakeAgents() {
		w.ParkAgent(a, m.Tile)
	}
	testutil.AssertEqual(t, "pool size", len(w.Pool), 2)
	testutil.AssertEqual(t, "home tile", colonist.HomeTile, 10)

	back := w.ReclaimAgents(10)
	testutil.AssertEqual(t, "reclaimed", len(back), 1)
	testutil.AssertEqual(t, "pool after reclaim", len(w.Pool), 1)

	testutil.AssertEqual(t, "dropped", w.DropPooledAgents([]int{90}), 1)
}

func TestWorld_NewColonyID(t *testing.T) {
	w := NewWorld("Rimworld", 1, 10)

	testutil.AssertEqual(t, "first", w.NewColonyID(), 1)
	testutil.AssertEqual(t, "second", w.NewColonyID(), 2)
}

func TestMap_TerrainRoundTrip(t *testing.T) {
	gm := NewMap(42, 3)
	gm.AddReservation("Faction_1")
	if err := gm.Terrain.Set("fertility", map[string]float64{"soil": 1.4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body, err := serial.Save("map/42", gm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := &Map{}
	if err := serial.Load("map/42", body, got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var fertility map[string]float64
	found, err := got.Terrain.Get("fertility", &fertility)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "found", found, true)
	testutil.AssertEqual(t, "soil", fertility["soil"], 1.4)
	testutil.AssertEqual(t, "tile", got.Tile, 42)
	testutil.AssertEqual(t, "reserved", got.HasReservation("Faction_1"), true)
}
