package game

import (
	"fmt"
	"time"

	"github.com/pixil98/go-persistent-worlds/internal/serial"
	"github.com/pixil98/go-persistent-worlds/internal/storage"
)

type Status int

const (
	StatusUncommitted Status = iota
	StatusPersisted
	StatusActive
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusUncommitted:
		return "uncommitted"
	case StatusPersisted:
		return "persisted"
	case StatusActive:
		return "active"
	case StatusDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

var transitions = map[Status][]Status{
	StatusUncommitted: {StatusPersisted},
	StatusPersisted:   {StatusActive, StatusDeleted},
	StatusActive:      {StatusPersisted},
}

// Colony is one independent game state living in the shared world.
// Colonies compare by id only.
type Colony struct {
	Data      *ColonyData
	State     *GameState
	LastWrite time.Time

	status Status
}

func NewColony(data *ColonyData, state *GameState) *Colony {
	return &Colony{Data: data, State: state}
}

func (c *Colony) ID() int {
	if c == nil || c.Data == nil {
		return 0
	}
	return c.Data.UniqueID
}

func (c *Colony) Equal(o *Colony) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.ID() == o.ID()
}

func (c *Colony) Status() Status {
	return c.status
}

// Loaded reports whether the colony's game state is in memory.
func (c *Colony) Loaded() bool {
	return c.State != nil
}

// Transition moves the colony to status to, refusing moves the lifecycle
// does not allow.
func (c *Colony) Transition(to Status) error {
	for _, allowed := range transitions[c.status] {
		if allowed == to {
			c.status = to
			return nil
		}
	}
	return fmt.Errorf("%w: colony %d %s -> %s", ErrInvalidTransition, c.ID(), c.status, to)
}

// MarkPersisted sets the status of a colony read back from disk.
func (c *Colony) MarkPersisted() {
	c.status = StatusPersisted
}

func (c *Colony) ExposeData(s *serial.Session) error {
	serial.Deep(s, "data", &c.Data, serial.Required())
	serial.Deep(s, "state", &c.State)
	return s.Err()
}

// Header exposes only the colony data, leaving the game state untouched.
func (c *Colony) Header() serial.Exposable {
	return colonyHeader{c}
}

type colonyHeader struct {
	c *Colony
}

func (h colonyHeader) ExposeData(s *serial.Session) error {
	serial.Deep(s, "data", &h.c.Data, serial.Required())
	return s.Err()
}

// ColonyData is the part of a colony that is always in memory.
type ColonyData struct {
	UniqueID    int
	Name        string
	Faction     *Faction
	Leader      *LeaderRef
	Color       string
	ActiveTiles []int
}

func (d *ColonyData) ExposeData(s *serial.Session) error {
	serial.Value(s, "id", &d.UniqueID, serial.Required())
	serial.Value(s, "name", &d.Name)
	serial.Deep(s, "faction", &d.Faction)
	serial.Deep(s, "leader", &d.Leader)
	serial.Value(s, "color", &d.Color)
	serial.Value(s, "tiles", &d.ActiveTiles)
	if d.UniqueID <= 0 {
		s.Fail(fmt.Errorf("colony id %d must be positive", d.UniqueID))
	}
	return s.Err()
}

// DisplayName falls back to fallback, then to the colony id.
func (d *ColonyData) DisplayName(fallback string) string {
	switch {
	case d.Name != "":
		return d.Name
	case fallback != "":
		return fallback
	default:
		return fmt.Sprintf("Colony %d", d.UniqueID)
	}
}

func (d *ColonyData) OwnsTile(tile int) bool {
	for _, t := range d.ActiveTiles {
		if t == tile {
			return true
		}
	}
	return false
}

type ViewState struct {
	X    int     `json:"x"`
	Z    int     `json:"z"`
	Zoom float64 `json:"zoom"`
}

// GameState is the part of a colony that is only in memory while loaded.
type GameState struct {
	CurrentMapIndex int
	View            ViewState
	Blobs           storage.ExtensionState
}

func NewGameState() *GameState {
	return &GameState{CurrentMapIndex: -1}
}

func (g *GameState) ExposeData(s *serial.Session) error {
	serial.Value(s, "currentMap", &g.CurrentMapIndex)
	serial.Value(s, "view", &g.View)
	serial.Value(s, "blobs", &g.Blobs)
	return s.Err()
}

// LeaderRef is a non owning link to a colony's leader with a cached name
// and portrait for display while the leader is not loaded.
type LeaderRef struct {
	agent    serial.Ref[*Agent]
	Name     string
	Portrait string
}

func NewLeaderRef(a *Agent) *LeaderRef {
	l := &LeaderRef{}
	l.Set(a)
	return l
}

func (l *LeaderRef) ExposeData(s *serial.Session) error {
	serial.LookRef(s, "agent", &l.agent, serial.Weak())
	serial.Value(s, "name", &l.Name)
	serial.Value(s, "portrait", &l.Portrait)
	return s.Err()
}

func (l *LeaderRef) ID() string {
	return l.agent.ID()
}

func (l *LeaderRef) IsSet() bool {
	return l.agent.IsSet()
}

// Agent returns the resolved leader or nil.
func (l *LeaderRef) Agent() *Agent {
	if !l.agent.IsResolved() {
		return nil
	}
	return l.agent.Get()
}

func (l *LeaderRef) Set(a *Agent) {
	if a == nil {
		l.agent.Clear()
		return
	}
	l.agent.Set(a)
	l.Name = a.Name
	l.Portrait = a.Portrait
}

// Resolve looks the leader up by id. A miss keeps the id and cached display
// data so a later attempt can succeed.
func (l *LeaderRef) Resolve(f AgentFinder) bool {
	if !l.agent.IsSet() {
		return false
	}
	a := f.FindAgent(l.agent.ID())
	if a == nil {
		l.agent.Unresolve()
		return false
	}
	l.Set(a)
	return true
}

type AgentFinder interface {
	FindAgent(id string) *Agent
}
