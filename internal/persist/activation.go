package persist

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pixil98/go-persistent-worlds/internal/catalog"
	"github.com/pixil98/go-persistent-worlds/internal/faction"
	"github.com/pixil98/go-persistent-worlds/internal/game"
	"github.com/pixil98/go-persistent-worlds/internal/maps"
	"github.com/pixil98/go-persistent-worlds/internal/serial"
	"github.com/pixil98/go-persistent-worlds/internal/storage"
)

// activate makes a persisted colony the live one. Everything is decoded
// before anything is attached, so on error the world is unchanged.
func (o *Orchestrator) activate(ctx context.Context, c *game.Colony) error {
	w := o.world
	id := c.ID()

	if c.Status() != game.StatusPersisted {
		return fmt.Errorf("%w: colony %d is %s", game.ErrInvalidTransition, id, c.Status())
	}
	slot := w.PlayerFaction()
	if slot == nil {
		return game.ErrNoPlayerFaction
	}

	a, err := o.store.Read(storage.KindColony, strconv.Itoa(id))
	if err != nil {
		return fmt.Errorf("reading colony %d: %w", id, err)
	}
	// Agents on the colony's maps are not known yet; the leader is looked up
	// again once the maps are live.
	loaded := &game.Colony{}
	err = serial.Load(colonyArtifact(id), a.Body, loaded,
		serial.WithKnown(w.Factions...), serial.WithKnown(w.Pool...),
		serial.WeakMissLevel(slog.LevelDebug))
	if err != nil {
		return fmt.Errorf("loading colony %d: %w", id, err)
	}
	if loaded.ID() != id {
		return fmt.Errorf("colony artifact %d holds colony %d", id, loaded.ID())
	}
	if loaded.State == nil {
		slog.WarnContext(ctx, "colony has no game state, starting fresh", "colony", id)
		loaded.State = game.NewGameState()
	}

	gms, err := o.maps.LoadTiles(ctx, w, id, loaded.Data.ActiveTiles)
	if err != nil {
		return fmt.Errorf("loading maps of colony %d: %w", id, err)
	}

	settlements := w.ConvertToSettlements(id)
	caravans := w.RestoreCaravans(id)

	if loaded.Data.Faction != nil {
		faction.Transplant(w, slot, loaded.Data.Faction)
	} else {
		slog.WarnContext(ctx, "colony has no stored faction, keeping player slot as is", "colony", id)
	}

	c.Data, c.State = loaded.Data, loaded.State
	if err := c.Transition(game.StatusActive); err != nil {
		return err
	}
	o.active = c

	idx, cur := maps.PickCurrentMap(gms, c.State.CurrentMapIndex)
	c.State.CurrentMapIndex = idx
	o.host.SetCurrentMap(cur)
	o.host.SetView(c.State.View)
	o.restoreExtensions(ctx, c)
	o.resolveLeader(c)

	o.metrics.SetLoadedMaps(len(w.Maps()))
	slog.InfoContext(ctx, "colony activated",
		"colony", id, "maps", len(gms), "settlements", settlements, "caravans", caravans)
	return nil
}

// deactivate stores the active colony and takes it out of the live world.
// If anything cannot be written the colony stays active. The world artifact,
// whose pool now holds the colony's agents, is committed before any map
// artifact is rewritten without them, so a failure never leaves a save in
// which those agents exist nowhere.
func (o *Orchestrator) deactivate(ctx context.Context, c *game.Colony) error {
	w := o.world
	id := c.ID()

	o.captureActive(ctx, c)
	unloaded := o.maps.UnloadColonyMaps(ctx, w, id)
	w.ParkCaravans(id)
	w.ConvertToPlaceholders(id)

	undo := func(cause error) error {
		w.RestoreCaravans(id)
		w.ConvertToSettlements(id)
		if err := o.maps.Attach(ctx, w, unloaded); err != nil {
			o.broken = fmt.Errorf("%w: reattaching maps of colony %d: %w", ErrInconsistent, id, err)
			slog.ErrorContext(ctx, "could not reattach maps after failed deactivation", "colony", id, "error", err)
			return o.broken
		}
		_, cur := maps.PickCurrentMap(w.MapsOf(id), c.State.CurrentMapIndex)
		o.host.SetCurrentMap(cur)
		return cause
	}

	if err := o.writeColony(c); err != nil {
		return undo(err)
	}
	w.ColonyOrder = o.colonyIDs()
	if err := o.writeWorld(); err != nil {
		return undo(err)
	}
	for _, gm := range unloaded {
		if err := o.writeMap(gm); err != nil {
			return undo(err)
		}
	}

	if err := c.Transition(game.StatusPersisted); err != nil {
		return err
	}
	c.State = nil
	o.active = nil
	o.host.SetCurrentMap(nil)
	o.index(ctx, c)

	o.metrics.SetLoadedMaps(len(w.Maps()))
	slog.InfoContext(ctx, "colony deactivated", "colony", id, "maps", len(unloaded))
	return nil
}

// captureActive copies live state owned by the world and the host back onto
// the active colony.
func (o *Orchestrator) captureActive(ctx context.Context, c *game.Colony) {
	if snap := faction.Snapshot(o.world); snap != nil {
		c.Data.Faction = snap
	}
	c.State.View = o.host.View()
	if eh, ok := o.host.(ExtensionHost); ok {
		for key, v := range eh.ColonyExtensions() {
			if v == nil {
				c.State.Blobs.Delete(key)
				continue
			}
			if err := c.State.Blobs.Set(key, v); err != nil {
				slog.WarnContext(ctx, "keeping previous host extension", "colony", c.ID(), "key", key, "error", err)
			}
		}
	}
	if l := c.Data.Leader; l != nil {
		if a := l.Agent(); a != nil {
			l.Set(a)
		}
	}
}

func (o *Orchestrator) restoreExtensions(ctx context.Context, c *game.Colony) {
	eh, ok := o.host.(ExtensionHost)
	if !ok || len(c.State.Blobs) == 0 {
		return
	}
	if err := eh.RestoreColonyExtensions(c.State.Blobs); err != nil {
		slog.WarnContext(ctx, "host could not restore colony extensions",
			"colony", c.ID(), "keys", c.State.Blobs.Keys(), "error", err)
		return
	}
	slog.DebugContext(ctx, "host extensions restored", "colony", c.ID(), "keys", c.State.Blobs.Keys())
}

// resolveLeader finds the stored leader by id, falling back to the first
// eligible agent on the current map. With neither the leader stays unset
// and Tick tries again.
func (o *Orchestrator) resolveLeader(c *game.Colony) {
	if c.Data.Leader == nil {
		c.Data.Leader = &game.LeaderRef{}
	}
	l := c.Data.Leader

	if l.IsSet() {
		if l.Resolve(o.world) {
			return
		}
		slog.Warn("colony leader not found", "colony", c.ID(), "leader", l.ID(), "name", l.Name)
	}

	if cur := o.currentMap(c); cur != nil {
		for _, a := range cur.Agents {
			if a.Eligible() {
				l.Set(a)
				slog.Info("colony leader chosen from current map", "colony", c.ID(), "leader", a.ID)
				return
			}
		}
	}

	slog.Debug("colony has no leader yet", "colony", c.ID())
}

func (o *Orchestrator) currentMap(c *game.Colony) *game.Map {
	if c.State == nil {
		return nil
	}
	gms := o.world.MapsOf(c.ID())
	idx := c.State.CurrentMapIndex
	if idx < 0 || idx >= len(gms) {
		return nil
	}
	return gms[idx]
}

func (o *Orchestrator) writeWorld() error {
	body, err := serial.Save("world", o.world)
	if err != nil {
		return fmt.Errorf("encoding world: %w", err)
	}
	if err := o.store.Write(storage.KindWorld, worldArtifactID, body); err != nil {
		return fmt.Errorf("writing world: %w", err)
	}
	o.metrics.ArtifactWritten(string(storage.KindWorld))
	return nil
}

func (o *Orchestrator) writeColony(c *game.Colony) error {
	body, err := serial.Save(colonyArtifact(c.ID()), c)
	if err != nil {
		return fmt.Errorf("encoding colony %d: %w", c.ID(), err)
	}
	if err := o.store.Write(storage.KindColony, strconv.Itoa(c.ID()), body); err != nil {
		return fmt.Errorf("writing colony %d: %w", c.ID(), err)
	}
	c.LastWrite = time.Now().UTC()
	o.metrics.ArtifactWritten(string(storage.KindColony))
	return nil
}

func (o *Orchestrator) writeMap(gm *game.Map) error {
	id := maps.ArtifactID(gm.Tile)
	body, err := serial.Save("map/"+id, gm)
	if err != nil {
		return fmt.Errorf("encoding map %d: %w", gm.Tile, err)
	}
	if err := o.store.Write(storage.KindMap, id, body); err != nil {
		return fmt.Errorf("writing map %d: %w", gm.Tile, err)
	}
	o.metrics.ArtifactWritten(string(storage.KindMap))
	return nil
}

// index mirrors a colony into the catalog. Catalog failures are logged only.
func (o *Orchestrator) index(ctx context.Context, c *game.Colony) {
	if o.catalog == nil {
		return
	}

	r := catalog.Record{
		WorldID:   o.world.Info.PersistentID,
		ColonyID:  c.ID(),
		Name:      c.Data.DisplayName(o.cfg.DefaultColonyName),
		Tiles:     len(c.Data.ActiveTiles),
		Status:    c.Status().String(),
		LastWrite: c.LastWrite,
	}
	if c.Data.Leader != nil {
		r.Leader = c.Data.Leader.Name
	}

	if err := o.catalog.Upsert(ctx, r); err != nil {
		slog.WarnContext(ctx, "updating colony catalog", "colony", c.ID(), "error", err)
	}
}
