// Package faction moves a colony's faction identity on and off the single
// player faction slot of a world.
package faction

import (
	"log/slog"
	"slices"

	"github.com/pixil98/go-persistent-worlds/internal/game"
)

const (
	defaultGoodwill        = 0
	permanentEnemyGoodwill = -100
)

// DefaultRelation is the standing a faction starts with towards a player
// faction it has never met.
func DefaultRelation(other *game.Faction) (int, game.RelationKind) {
	if other.PermanentEnemy {
		return permanentEnemyGoodwill, game.RelationHostile
	}
	return defaultGoodwill, game.RelationNeutral
}

// Transplant copies the identity of source onto target, the world's player
// slot, and rewires every other faction's relation with the slot. Relation
// records are moved: source no longer holds the ones target took over.
func Transplant(w *game.World, target, source *game.Faction) {
	target.Name = source.Name
	target.Def = source.Def
	target.Leader = source.Leader
	target.RandomKey = source.RandomKey
	target.ColorFromSpectrum = source.ColorFromSpectrum
	target.CentralMelanin = source.CentralMelanin

	moved, defaulted := 0, 0
	for _, other := range w.Factions {
		if other == target || other.IsPlayer || other.ID == target.ID {
			continue
		}

		if rel := source.RelationWith(other.ID); rel != nil {
			target.SetRelation(other, rel.Goodwill, rel.Kind)
			other.SetRelation(target, rel.Goodwill, rel.Kind)
			source.RemoveRelationWith(other.ID)
			moved++
			continue
		}

		if target.RelationWith(other.ID) == nil {
			goodwill, kind := DefaultRelation(other)
			target.SetRelation(other, goodwill, kind)
			other.SetRelation(target, goodwill, kind)
			defaulted++
		}
	}

	target.Kidnapped = slices.Clone(source.Kidnapped)
	target.PredatorThreats = slices.Clone(source.PredatorThreats)
	target.Defeated = source.Defeated
	target.LastTraderRequestTick = source.LastTraderRequestTick
	target.LastMilitaryAidRequestTick = source.LastMilitaryAidRequestTick
	target.NaturalGoodwillTimer = source.NaturalGoodwillTimer

	slog.Debug("faction transplanted",
		"slot", target.ID, "name", target.Name, "relations", moved, "defaulted", defaulted)
}

// Snapshot copies the player slot so it can be stored on a colony.
func Snapshot(w *game.World) *game.Faction {
	slot := w.PlayerFaction()
	if slot == nil {
		return nil
	}
	return slot.Clone()
}

// Reset replaces the slot identity with fresh and drops every relation the
// slot had, so all factions fall back to their default standing.
func Reset(w *game.World, fresh *game.Faction) error {
	slot := w.PlayerFaction()
	if slot == nil {
		return game.ErrNoPlayerFaction
	}

	for _, other := range w.Factions {
		if other != slot {
			other.RemoveRelationWith(slot.ID)
		}
	}
	slot.Relations = nil

	Transplant(w, slot, fresh)
	return nil
}
