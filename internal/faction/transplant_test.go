package faction

import (
	"errors"
	"testing"

	"github.com/pixil98/go-testutil"

	"github.com/pixil98/go-persistent-worlds/internal/game"
	"github.com/pixil98/go-persistent-worlds/internal/serial"
)

type fixture struct {
	world    *game.World
	slot     *game.Faction
	pirates  *game.Faction
	traders  *game.Faction
	tribe    *game.Faction
	colonyFa *game.Faction
}

func newFixture() fixture {
	w := game.NewWorld("Rimworld", 7, 100)
	slot := &game.Faction{ID: w.NewFactionID(), Def: "PlayerColony", Name: "First Colony"}
	pirates := &game.Faction{ID: w.NewFactionID(), Name: "Red Hand", PermanentEnemy: true}
	traders := &game.Faction{ID: w.NewFactionID(), Name: "Free Union"}
	tribe := &game.Faction{ID: w.NewFactionID(), Name: "Sky Tribe"}
	for _, f := range []*game.Faction{slot, pirates, traders, tribe} {
		w.AddFaction(f)
	}
	w.SetPlayerFaction(slot)

	slot.SetRelation(pirates, -100, game.RelationHostile)
	pirates.SetRelation(slot, -100, game.RelationHostile)
	slot.SetRelation(traders, -20, game.RelationNeutral)
	traders.SetRelation(slot, -20, game.RelationNeutral)

	leader := game.NewAgent("Agent_9", "Kira", slot)
	colonyFa := &game.Faction{
		ID:                         slot.ID,
		Def:                        "PlayerTribe",
		Name:                       "Second Colony",
		Leader:                     serial.NewRef(leader),
		RandomKey:                  991,
		ColorFromSpectrum:          0.25,
		CentralMelanin:             0.6,
		Kidnapped:                  []serial.Ref[*game.Agent]{serial.RefTo[*game.Agent]("Agent_4")},
		PredatorThreats:            []game.PredatorThreat{{AgentID: "Agent_33", LastAttackTick: 5000}},
		Defeated:                   false,
		LastTraderRequestTick:      1200,
		LastMilitaryAidRequestTick: 3400,
		NaturalGoodwillTimer:       60000,
	}
	colonyFa.SetRelation(traders, 55, game.RelationAlly)

	return fixture{world: w, slot: slot, pirates: pirates, traders: traders, tribe: tribe, colonyFa: colonyFa}
}

func TestTransplant_Identity(t *testing.T) {
	f := newFixture()

	Transplant(f.world, f.slot, f.colonyFa)

	testutil.AssertEqual(t, "name", f.slot.Name, "Second Colony")
	testutil.AssertEqual(t, "def", f.slot.Def, "PlayerTribe")
	testutil.AssertEqual(t, "leader", f.slot.Leader.ID(), "Agent_9")
	testutil.AssertEqual(t, "random key", f.slot.RandomKey, 991)
	testutil.AssertEqual(t, "color", f.slot.ColorFromSpectrum, 0.25)
	testutil.AssertEqual(t, "melanin", f.slot.CentralMelanin, 0.6)
	testutil.AssertEqual(t, "slot stays in arena", f.world.PlayerFaction() == f.slot, true)
	testutil.AssertEqual(t, "slot id unchanged", f.slot.ID, "Faction_1")
}

func TestTransplant_Relations(t *testing.T) {
	tests := map[string]struct {
		other       func(f fixture) *game.Faction
		expGoodwill int
		expKind     game.RelationKind
	}{
		"relation moved from colony": {
			other:       func(f fixture) *game.Faction { return f.traders },
			expGoodwill: 55,
			expKind:     game.RelationAlly,
		},
		"existing slot relation kept": {
			other:       func(f fixture) *game.Faction { return f.pirates },
			expGoodwill: -100,
			expKind:     game.RelationHostile,
		},
		"missing relation defaulted": {
			other:       func(f fixture) *game.Faction { return f.tribe },
			expGoodwill: 0,
			expKind:     game.RelationNeutral,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			Transplant(f.world, f.slot, f.colonyFa)
			other := tt.other(f)

			rel := f.slot.RelationWith(other.ID)
			if rel == nil {
				t.Fatalf("slot has no relation with %s", other.ID)
			}
			testutil.AssertEqual(t, "goodwill", rel.Goodwill, tt.expGoodwill)
			testutil.AssertEqual(t, "kind", rel.Kind, tt.expKind)
			testutil.AssertEqual(t, "target", rel.Other.Get() == other, true)

			back := other.RelationWith(f.slot.ID)
			if back == nil {
				t.Fatalf("%s has no relation with the slot", other.ID)
			}
			testutil.AssertEqual(t, "reciprocal goodwill", back.Goodwill, tt.expGoodwill)
			testutil.AssertEqual(t, "reciprocal target", back.Other.Get() == f.slot, true)
			testutil.AssertEqual(t, "source record removed", f.colonyFa.RelationWith(other.ID) == nil, true)
		})
	}
}

func TestTransplant_SourceRelationsMoved(t *testing.T) {
	f := newFixture()
	f.colonyFa.SetRelation(f.tribe, 10, game.RelationNeutral)

	Transplant(f.world, f.slot, f.colonyFa)

	testutil.AssertEqual(t, "source relations", len(f.colonyFa.Relations), 0)
	testutil.AssertEqual(t, "traders moved", f.slot.RelationWith(f.traders.ID).Goodwill, 55)
	testutil.AssertEqual(t, "tribe moved", f.slot.RelationWith(f.tribe.ID).Goodwill, 10)
}

func TestTransplant_NoDuplicateRelations(t *testing.T) {
	f := newFixture()

	Transplant(f.world, f.slot, f.colonyFa)
	Transplant(f.world, f.slot, f.colonyFa)

	testutil.AssertEqual(t, "slot relations", len(f.slot.Relations), 3)
	testutil.AssertEqual(t, "trader relations", len(f.traders.Relations), 1)
}

func TestTransplant_MovesState(t *testing.T) {
	f := newFixture()
	f.slot.Defeated = true
	f.slot.Kidnapped = []serial.Ref[*game.Agent]{serial.RefTo[*game.Agent]("Agent_1"), serial.RefTo[*game.Agent]("Agent_2")}

	Transplant(f.world, f.slot, f.colonyFa)

	testutil.AssertEqual(t, "kidnapped", len(f.slot.Kidnapped), 1)
	testutil.AssertEqual(t, "kidnapped id", f.slot.Kidnapped[0].ID(), "Agent_4")
	testutil.AssertEqual(t, "predator threats", len(f.slot.PredatorThreats), 1)
	testutil.AssertEqual(t, "defeated", f.slot.Defeated, false)
	testutil.AssertEqual(t, "trader tick", f.slot.LastTraderRequestTick, int64(1200))
	testutil.AssertEqual(t, "military tick", f.slot.LastMilitaryAidRequestTick, int64(3400))
	testutil.AssertEqual(t, "goodwill timer", f.slot.NaturalGoodwillTimer, int64(60000))

	f.slot.Kidnapped[0] = serial.RefTo[*game.Agent]("Agent_5")
	testutil.AssertEqual(t, "source not aliased", f.colonyFa.Kidnapped[0].ID(), "Agent_4")
}

func TestSnapshot_RoundTrip(t *testing.T) {
	f := newFixture()
	Transplant(f.world, f.slot, f.colonyFa)

	snap := Snapshot(f.world)
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	testutil.AssertEqual(t, "copy", snap == f.slot, false)
	testutil.AssertEqual(t, "name", snap.Name, f.colonyFa.Name)

	rel := snap.RelationWith(f.traders.ID)
	if rel == nil {
		t.Fatal("expected trader relation in snapshot")
	}
	testutil.AssertEqual(t, "goodwill", rel.Goodwill, 55)

	f.slot.SetRelation(f.traders, -5, game.RelationNeutral)
	testutil.AssertEqual(t, "snapshot detached", snap.RelationWith(f.traders.ID).Goodwill, 55)
}

func TestReset(t *testing.T) {
	f := newFixture()

	err := Reset(f.world, &game.Faction{Def: "PlayerColony", Name: "Fresh Start"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "name", f.slot.Name, "Fresh Start")
	testutil.AssertEqual(t, "pirates", f.slot.RelationWith(f.pirates.ID).Goodwill, -100)
	testutil.AssertEqual(t, "traders", f.slot.RelationWith(f.traders.ID).Goodwill, 0)
	testutil.AssertEqual(t, "trader reciprocal", len(f.traders.Relations), 1)
	testutil.AssertEqual(t, "trader reciprocal goodwill", f.traders.Relations[0].Goodwill, 0)
}

func TestReset_NoSlot(t *testing.T) {
	w := game.NewWorld("Empty", 1, 1)

	if err := Reset(w, &game.Faction{}); !errors.Is(err, game.ErrNoPlayerFaction) {
		t.Errorf("expected ErrNoPlayerFaction, got %v", err)
	}
}
