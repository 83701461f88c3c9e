// Package persist saves, loads and swaps the colonies of a shared world.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pixil98/go-persistent-worlds/internal/catalog"
	"github.com/pixil98/go-persistent-worlds/internal/faction"
	"github.com/pixil98/go-persistent-worlds/internal/game"
	"github.com/pixil98/go-persistent-worlds/internal/maps"
	"github.com/pixil98/go-persistent-worlds/internal/messaging"
	"github.com/pixil98/go-persistent-worlds/internal/metrics"
	"github.com/pixil98/go-persistent-worlds/internal/serial"
	"github.com/pixil98/go-persistent-worlds/internal/storage"
)

const worldArtifactID = "world"

// Store holds the artifacts of one world.
type Store interface {
	maps.Source
	Write(kind storage.Kind, id string, body []byte) error
	Delete(kind storage.Kind, id string) error
	List(kind storage.Kind) ([]storage.Entry, error)
}

// Catalog indexes colonies for selection screens. It is never authoritative.
type Catalog interface {
	Upsert(ctx context.Context, r catalog.Record) error
	Delete(ctx context.Context, worldID string, colonyID int) error
}

type OrchestratorOpt func(*Orchestrator)

// WithRegisterer exports metrics on reg under the configured namespace.
func WithRegisterer(reg prometheus.Registerer) OrchestratorOpt {
	return func(o *Orchestrator) {
		o.registerer = reg
	}
}

// WithCatalog uses c instead of opening the configured catalog.
func WithCatalog(c Catalog) OrchestratorOpt {
	return func(o *Orchestrator) {
		o.catalog = c
	}
}

func WithEvents(p *messaging.EventPublisher) OrchestratorOpt {
	return func(o *Orchestrator) {
		o.events = p
	}
}

// Orchestrator owns the live world and its colonies. Every method holds one
// lock for its whole duration, so callers never observe a half swapped world.
type Orchestrator struct {
	mu sync.Mutex

	cfg  Config
	host Host

	registerer prometheus.Registerer
	metrics    *metrics.Metrics
	catalog    Catalog
	ownCatalog *catalog.SQLiteCatalog
	events     *messaging.EventPublisher
	openStore  func(dir string) (Store, error)

	store    Store
	maps     *maps.Manager
	world    *game.World
	colonies []*game.Colony
	active   *game.Colony
	broken   error
}

func New(cfg Config, host Host, opts ...OrchestratorOpt) (*Orchestrator, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if host == nil {
		host = NopHost{}
	}

	o := &Orchestrator{cfg: cfg, host: host}
	for _, opt := range opts {
		opt(o)
	}

	o.openStore = func(dir string) (Store, error) {
		return storage.NewWorldStore(dir,
			storage.WithCompression(cfg.Compress),
			storage.WithVersion(cfg.ArtifactVersion))
	}

	if o.registerer != nil {
		m, err := metrics.New(cfg.MetricsNamespace, o.registerer)
		if err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
		o.metrics = m
	}

	if o.catalog == nil && cfg.CatalogPath != "" {
		c, err := catalog.OpenSQLite(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("opening catalog: %w", err)
		}
		o.ownCatalog = c
		o.catalog = c
	}

	return o, nil
}

func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ownCatalog != nil {
		err := o.ownCatalog.Close()
		o.ownCatalog, o.catalog = nil, nil
		return err
	}
	return nil
}

// World returns the live world or nil.
func (o *Orchestrator) World() *game.World {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.world
}

func (o *Orchestrator) ActiveColony() *game.Colony {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

func (o *Orchestrator) Colony(id int) (*game.Colony, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c := o.colony(id)
	return c, c != nil
}

// Colonies lists the colonies in their persisted order.
func (o *Orchestrator) Colonies() []*game.Colony {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.colonies)
}

// ColoniesByLastWrite lists the colonies most recently written first.
func (o *Orchestrator) ColoniesByLastWrite() []*game.Colony {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := slices.Clone(o.colonies)
	slices.SortStableFunc(out, func(a, b *game.Colony) int {
		return b.LastWrite.Compare(a.LastWrite)
	})
	return out
}

// WorldExists reports whether a world directory called name is in the save
// directory.
func (o *Orchestrator) WorldExists(name string) (bool, error) {
	names, err := storage.ListWorlds(o.cfg.SaveDir)
	if err != nil {
		return false, err
	}
	return slices.Contains(names, name), nil
}

// WorldDir is the directory a world is saved to.
func (o *Orchestrator) WorldDir(w *game.World) string {
	return filepath.Join(o.cfg.SaveDir, worldDirName(w))
}

var unsafeDirChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func worldDirName(w *game.World) string {
	if name := unsafeDirChars.ReplaceAllString(w.Info.Name, "_"); name != "" && name != "_" {
		return name
	}
	return w.Info.PersistentID
}

// ConvertLiveSessionToColony adopts a world that was played without
// colonies. The player's settlements and the maps on them become the first
// colony, which is active and uncommitted until the next save.
func (o *Orchestrator) ConvertLiveSessionToColony(ctx context.Context, w *game.World, state *game.GameState) (c *game.Colony, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.observe("convert", time.Now(), &err)

	if err := o.ready(ctx, false); err != nil {
		return nil, err
	}
	if len(o.colonies) > 0 || len(w.ColonyOrder) > 0 {
		return nil, ErrAlreadyConverted
	}
	slot := w.PlayerFaction()
	if slot == nil {
		return nil, game.ErrNoPlayerFaction
	}

	store, err := o.openStore(o.WorldDir(w))
	if err != nil {
		return nil, fmt.Errorf("opening world store: %w", err)
	}

	id := w.NewColonyID()
	for _, obj := range w.Objects {
		if obj.Faction.ID() != slot.ID {
			continue
		}
		switch obj.Kind {
		case game.ObjectSettlement:
			obj.ColonyID = id
			if gm := w.FindMap(obj.Tile); gm != nil {
				gm.ColonyID = id
			}
		case game.ObjectCaravan:
			obj.ColonyID = id
		}
	}
	var tiles []int
	for _, gm := range w.MapsOf(id) {
		tiles = append(tiles, gm.Tile)
	}

	if state == nil {
		state = game.NewGameState()
	}
	if state.CurrentMapIndex < 0 && len(tiles) > 0 {
		state.CurrentMapIndex = 0
	}
	state.View = o.host.View()

	data := &game.ColonyData{
		UniqueID:    id,
		Name:        slot.Name,
		Faction:     faction.Snapshot(w),
		Leader:      &game.LeaderRef{},
		ActiveTiles: tiles,
	}
	if data.Name == "" {
		data.Name = o.cfg.DefaultColonyName
	}
	if leader := slot.Leader; leader.IsResolved() {
		data.Leader.Set(leader.Get())
	}

	c = game.NewColony(data, state)
	w.ColonyOrder = []int{id}

	o.setWorld(w, store)
	o.colonies = []*game.Colony{c}
	o.active = c

	idx, cur := maps.PickCurrentMap(w.MapsOf(id), state.CurrentMapIndex)
	state.CurrentMapIndex = idx
	o.host.SetCurrentMap(cur)
	o.resolveLeader(c)

	o.metrics.SetColonies(len(o.colonies))
	o.metrics.SetLoadedMaps(len(w.Maps()))
	o.events.Emit(messaging.EventColonyConverted, w.Info.PersistentID, id, "")
	slog.InfoContext(ctx, "converted live session to colony", "colony", id, "tiles", len(tiles))
	return c, nil
}

// SaveWorld writes the world artifact, then every loaded colony with the
// maps of the active colony.
func (o *Orchestrator) SaveWorld(ctx context.Context) (err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.observe("save_world", time.Now(), &err)

	if err := o.ready(ctx, true); err != nil {
		return err
	}

	w := o.world
	if o.active != nil {
		o.captureActive(ctx, o.active)
	}
	w.ColonyOrder = o.colonyIDs()

	if err := o.writeWorld(); err != nil {
		return err
	}

	for _, c := range o.colonies {
		if !c.Loaded() {
			continue
		}
		if c == o.active {
			for _, gm := range o.world.MapsOf(c.ID()) {
				if err := o.writeMap(gm); err != nil {
					return err
				}
			}
		}
		if err := o.writeColony(c); err != nil {
			return err
		}
		if c.Status() == game.StatusUncommitted {
			if err := c.Transition(game.StatusPersisted); err != nil {
				return err
			}
			if c == o.active {
				if err := c.Transition(game.StatusActive); err != nil {
					return err
				}
			}
		}
		o.index(ctx, c)
	}

	o.events.Emit(messaging.EventWorldSaved, w.Info.PersistentID, o.active.ID(), "")
	slog.InfoContext(ctx, "world saved", "world", w.Info.Name, "colonies", len(o.colonies))
	return nil
}

// LoadWorld replaces the live world with the one saved in dir. Colony
// headers are read; no colony is activated. On failure no world is loaded.
func (o *Orchestrator) LoadWorld(ctx context.Context, dir string) (err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.observe("load_world", time.Now(), &err)
	defer func() {
		if err != nil {
			o.host.ReturnToColonySelection(err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	o.discardWorld(ctx)

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: world directory %s", storage.ErrNotFound, dir)
	}
	store, err := o.openStore(dir)
	if err != nil {
		return fmt.Errorf("opening world store: %w", err)
	}

	a, err := store.Read(storage.KindWorld, worldArtifactID)
	if err != nil {
		return fmt.Errorf("reading world: %w", err)
	}
	w := &game.World{}
	if err := serial.Load("world", a.Body, w); err != nil {
		return fmt.Errorf("loading world: %w", err)
	}

	colonies, err := loadColonyHeaders(store, w)
	if err != nil {
		return err
	}

	for _, c := range colonies {
		if n := w.ParkCaravans(c.ID()); n > 0 {
			slog.Debug("parked caravans of inactive colony", "colony", c.ID(), "count", n)
		}
	}

	o.setWorld(w, store)
	o.colonies = colonies
	o.broken = nil
	w.ColonyOrder = o.colonyIDs()
	for _, c := range colonies {
		o.index(ctx, c)
	}

	o.metrics.SetColonies(len(colonies))
	o.metrics.SetLoadedMaps(0)
	o.events.Emit(messaging.EventWorldLoaded, w.Info.PersistentID, 0, "")
	slog.InfoContext(ctx, "world loaded", "world", w.Info.Name, "colonies", len(colonies))
	return nil
}

func loadColonyHeaders(store Store, w *game.World) ([]*game.Colony, error) {
	entries, err := store.List(storage.KindColony)
	if err != nil {
		return nil, fmt.Errorf("listing colonies: %w", err)
	}

	byID := make(map[int]*game.Colony, len(entries))
	for _, e := range entries {
		id, err := strconv.Atoi(e.ID)
		if err != nil {
			slog.Warn("ignoring colony artifact with non numeric id", "path", e.Path)
			continue
		}

		a, err := store.Read(storage.KindColony, e.ID)
		if err != nil {
			return nil, fmt.Errorf("reading colony %d: %w", id, err)
		}
		c := &game.Colony{}
		err = serial.Load(colonyArtifact(id), a.Body, c.Header(),
			serial.WithKnown(w.Factions...), serial.WithKnown(w.Pool...))
		if err != nil {
			return nil, fmt.Errorf("loading colony %d: %w", id, err)
		}
		if c.ID() != id {
			return nil, fmt.Errorf("colony artifact %d holds colony %d", id, c.ID())
		}
		c.MarkPersisted()
		c.LastWrite = a.WrittenAt
		byID[id] = c
	}

	var out []*game.Colony
	for _, id := range w.ColonyOrder {
		c, ok := byID[id]
		if !ok {
			slog.Warn("colony in world order has no artifact, dropping", "colony", id)
			continue
		}
		out = append(out, c)
		delete(byID, id)
	}

	rest := make([]int, 0, len(byID))
	for id := range byID {
		rest = append(rest, id)
	}
	slices.Sort(rest)
	for _, id := range rest {
		slog.Warn("colony artifact missing from world order, appending", "colony", id)
		out = append(out, byID[id])
	}
	return out, nil
}

// LoadColony activates a colony while no other colony is active.
func (o *Orchestrator) LoadColony(ctx context.Context, id int) (err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.observe("load_colony", time.Now(), &err)

	if err := o.ready(ctx, true); err != nil {
		return err
	}

	c := o.colony(id)
	if c == nil {
		return fmt.Errorf("%w: %d", ErrColonyNotFound, id)
	}
	if o.active != nil {
		if o.active == c {
			return nil
		}
		return fmt.Errorf("%w: colony %d must be switched out first", ErrColonyActive, o.active.ID())
	}

	if err := o.activate(ctx, c); err != nil {
		o.host.ReturnToColonySelection(err)
		return err
	}

	o.events.Emit(messaging.EventColonyLoaded, o.world.Info.PersistentID, id, "")
	return nil
}

// SwitchActiveColony saves and unloads the active colony, then activates
// colony id. If id cannot be activated the previous colony is brought back.
func (o *Orchestrator) SwitchActiveColony(ctx context.Context, id int) (err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.observe("switch_colony", time.Now(), &err)

	if err := o.ready(ctx, true); err != nil {
		return err
	}

	target := o.colony(id)
	if target == nil {
		return fmt.Errorf("%w: %d", ErrColonyNotFound, id)
	}
	prev := o.active
	if prev == target {
		return nil
	}

	if prev != nil {
		if err := o.deactivate(ctx, prev); err != nil {
			return fmt.Errorf("deactivating colony %d: %w", prev.ID(), err)
		}
	}

	if err := o.activate(ctx, target); err != nil {
		return o.restore(ctx, prev, fmt.Errorf("activating colony %d: %w", id, err))
	}

	detail := ""
	if prev != nil {
		detail = "from " + strconv.Itoa(prev.ID())
	}
	o.events.Emit(messaging.EventColonySwitched, o.world.Info.PersistentID, id, detail)
	return nil
}

// StartColony founds a new colony on tile with a fresh player faction of
// def. The active colony, if any, is saved and unloaded first. The new
// colony starts with an empty map and is uncommitted until the next save.
func (o *Orchestrator) StartColony(ctx context.Context, name, def string, tile int) (c *game.Colony, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.observe("start_colony", time.Now(), &err)

	if err := o.ready(ctx, true); err != nil {
		return nil, err
	}

	w := o.world
	if tile < 0 || (w.Grid.Tiles > 0 && tile >= w.Grid.Tiles) {
		return nil, fmt.Errorf("tile %d outside world of %d tiles", tile, w.Grid.Tiles)
	}
	if gm := w.FindMap(tile); gm != nil {
		return nil, fmt.Errorf("%w: tile %d belongs to colony %d", maps.ErrTileOwned, tile, gm.ColonyID)
	}
	for _, other := range o.colonies {
		if other.Data.OwnsTile(tile) {
			return nil, fmt.Errorf("%w: tile %d belongs to colony %d", maps.ErrTileOwned, tile, other.ID())
		}
	}
	if w.PlayerFaction() == nil {
		return nil, game.ErrNoPlayerFaction
	}

	prev := o.active
	if prev != nil {
		if err := o.deactivate(ctx, prev); err != nil {
			return nil, fmt.Errorf("deactivating colony %d: %w", prev.ID(), err)
		}
	}

	slot, err := o.resetSlot(name, def)
	if err != nil {
		return nil, o.restore(ctx, prev, err)
	}

	id := w.NewColonyID()
	gm := game.NewMap(tile, id)
	if err := o.maps.Attach(ctx, w, []*game.Map{gm}); err != nil {
		return nil, o.restore(ctx, prev, fmt.Errorf("attaching map of new colony: %w", err))
	}

	w.AddObject(&game.WorldObject{
		ID:       w.NewObjectID(),
		Kind:     game.ObjectSettlement,
		Tile:     tile,
		Name:     name,
		Faction:  serial.NewRef(slot),
		ColonyID: id,
	})

	state := game.NewGameState()
	state.CurrentMapIndex = 0
	c = game.NewColony(&game.ColonyData{
		UniqueID:    id,
		Name:        name,
		Faction:     faction.Snapshot(w),
		Leader:      &game.LeaderRef{},
		ActiveTiles: []int{tile},
	}, state)

	o.colonies = append(o.colonies, c)
	o.active = c
	w.ColonyOrder = o.colonyIDs()

	o.host.SetCurrentMap(gm)
	o.host.SetView(state.View)
	o.resolveLeader(c)

	o.metrics.SetColonies(len(o.colonies))
	o.metrics.SetLoadedMaps(len(w.Maps()))
	o.events.Emit(messaging.EventColonyStarted, w.Info.PersistentID, id, def)
	slog.InfoContext(ctx, "colony started", "colony", id, "tile", tile, "def", def)
	return c, nil
}

// restore brings prev back after the colony replacing it failed to come up.
// If that fails too the orchestrator refuses further work until a world is
// loaded again.
func (o *Orchestrator) restore(ctx context.Context, prev *game.Colony, cause error) error {
	err := cause
	if prev != nil {
		if rerr := o.activate(ctx, prev); rerr != nil {
			o.broken = fmt.Errorf("%w: reactivating colony %d: %w", ErrInconsistent, prev.ID(), rerr)
			slog.ErrorContext(ctx, "could not restore previous colony", "colony", prev.ID(), "error", rerr)
			err = errors.Join(cause, o.broken)
		} else {
			slog.WarnContext(ctx, "previous colony restored", "colony", prev.ID(), "error", cause)
		}
	}
	o.host.ReturnToColonySelection(err)
	return err
}

// DeleteColony removes an inactive colony, its maps and its world objects.
func (o *Orchestrator) DeleteColony(ctx context.Context, id int) (err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.observe("delete_colony", time.Now(), &err)

	if err := o.ready(ctx, true); err != nil {
		return err
	}

	c := o.colony(id)
	if c == nil {
		return fmt.Errorf("%w: %d", ErrColonyNotFound, id)
	}
	if c == o.active {
		return fmt.Errorf("%w: %d", ErrColonyActive, id)
	}
	if c.Status() != game.StatusPersisted {
		return fmt.Errorf("%w: colony %d is %s", game.ErrInvalidTransition, id, c.Status())
	}

	for _, tile := range c.Data.ActiveTiles {
		if err := o.store.Delete(storage.KindMap, maps.ArtifactID(tile)); err != nil {
			return fmt.Errorf("deleting map %d: %w", tile, err)
		}
	}
	if err := o.store.Delete(storage.KindColony, strconv.Itoa(id)); err != nil {
		return fmt.Errorf("deleting colony %d: %w", id, err)
	}
	if err := c.Transition(game.StatusDeleted); err != nil {
		return err
	}

	w := o.world
	objects := w.RemoveColonyObjects(id)
	agents := w.DropPooledAgents(c.Data.ActiveTiles)
	o.colonies = slices.DeleteFunc(o.colonies, func(x *game.Colony) bool { return x == c })
	w.ColonyOrder = o.colonyIDs()

	if err := o.writeWorld(); err != nil {
		return err
	}

	if o.catalog != nil {
		if err := o.catalog.Delete(ctx, w.Info.PersistentID, id); err != nil {
			slog.WarnContext(ctx, "removing colony from catalog", "colony", id, "error", err)
		}
	}

	o.metrics.SetColonies(len(o.colonies))
	o.events.Emit(messaging.EventColonyDeleted, w.Info.PersistentID, id, "")
	slog.InfoContext(ctx, "colony deleted", "colony", id, "objects", objects, "agents", agents)
	return nil
}

// Tick retries leader resolution for the active colony.
func (o *Orchestrator) Tick(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.broken != nil || o.active == nil || ctx.Err() != nil {
		return
	}
	if l := o.active.Data.Leader; l != nil && l.Agent() != nil {
		return
	}
	o.resolveLeader(o.active)
}

// ResetPlayerFaction gives the player slot a fresh identity of def with no
// history, as for a new colony started in an existing world.
func (o *Orchestrator) ResetPlayerFaction(ctx context.Context, def string) (err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.observe("reset_faction", time.Now(), &err)

	if err := o.ready(ctx, true); err != nil {
		return err
	}

	if _, err := o.resetSlot(o.cfg.DefaultColonyName, def); err != nil {
		return err
	}
	if o.active != nil {
		o.active.Data.Faction = faction.Snapshot(o.world)
	}

	o.events.Emit(messaging.EventFactionReset, o.world.Info.PersistentID, o.active.ID(), def)
	return nil
}

func (o *Orchestrator) resetSlot(name, def string) (*game.Faction, error) {
	w := o.world
	slot := w.PlayerFaction()
	if slot == nil {
		return nil, game.ErrNoPlayerFaction
	}

	fresh := &game.Faction{
		ID:        slot.ID,
		Def:       def,
		Name:      name,
		RandomKey: int(w.Info.Seed) ^ (w.Counters.NextColony + 1),
	}
	if err := faction.Reset(w, fresh); err != nil {
		return nil, err
	}
	return slot, nil
}

// ready checks the preconditions shared by every operation.
func (o *Orchestrator) ready(ctx context.Context, needWorld bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.broken != nil {
		return o.broken
	}
	if needWorld && o.world == nil {
		return ErrNoWorld
	}
	return nil
}

func (o *Orchestrator) observe(op string, start time.Time, err *error) {
	o.metrics.Observe(op, start, *err)
}

func (o *Orchestrator) colony(id int) *game.Colony {
	for _, c := range o.colonies {
		if c.ID() == id {
			return c
		}
	}
	return nil
}

func (o *Orchestrator) colonyIDs() []int {
	ids := make([]int, 0, len(o.colonies))
	for _, c := range o.colonies {
		ids = append(ids, c.ID())
	}
	return ids
}

func (o *Orchestrator) setWorld(w *game.World, store Store) {
	o.world = w
	o.store = store
	o.maps = maps.NewManager(store, o.host)
	o.active = nil
}

// discardWorld releases every live map and forgets the world.
func (o *Orchestrator) discardWorld(ctx context.Context) {
	if o.world != nil {
		for _, c := range o.colonies {
			o.maps.UnloadColonyMaps(ctx, o.world, c.ID())
		}
		if o.active != nil {
			o.host.SetCurrentMap(nil)
		}
	}
	o.world, o.store, o.maps = nil, nil, nil
	o.colonies, o.active = nil, nil
}

func colonyArtifact(id int) string {
	return "colony/" + strconv.Itoa(id)
}
