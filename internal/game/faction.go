package game

import (
	"slices"

	"github.com/pixil98/go-persistent-worlds/internal/serial"
)

type RelationKind string

const (
	RelationHostile RelationKind = "hostile"
	RelationNeutral RelationKind = "neutral"
	RelationAlly    RelationKind = "ally"
)

// FactionRelation is one faction's standing towards another.
type FactionRelation struct {
	Other    serial.Ref[*Faction]
	Goodwill int
	Kind     RelationKind
}

func (r *FactionRelation) ExposeData(s *serial.Session) error {
	serial.LookRef(s, "other", &r.Other, serial.Required())
	serial.Value(s, "goodwill", &r.Goodwill)
	serial.Value(s, "kind", &r.Kind)
	return s.Err()
}

type PredatorThreat struct {
	AgentID        string `json:"agent"`
	LastAttackTick int64  `json:"lastAttackTick"`
}

// Faction is a world faction. Exactly one faction in a world is the player
// slot the host engine drives; colonies keep their own copy of it.
type Faction struct {
	ID   string
	Def  string
	Name string

	Leader            serial.Ref[*Agent]
	RandomKey         int
	ColorFromSpectrum float64
	CentralMelanin    float64

	Relations []*FactionRelation

	Kidnapped                  []serial.Ref[*Agent]
	PredatorThreats            []PredatorThreat
	Defeated                   bool
	LastTraderRequestTick      int64
	LastMilitaryAidRequestTick int64
	NaturalGoodwillTimer       int64

	IsPlayer       bool
	PermanentEnemy bool
}

func (f *Faction) RefID() string {
	return f.ID
}

func (f *Faction) ExposeData(s *serial.Session) error {
	serial.Value(s, "id", &f.ID, serial.Required())
	serial.Value(s, "def", &f.Def)
	serial.Value(s, "name", &f.Name)
	serial.LookRef(s, "leader", &f.Leader, serial.Weak())
	serial.Value(s, "randomKey", &f.RandomKey)
	serial.Value(s, "colorFromSpectrum", &f.ColorFromSpectrum)
	serial.Value(s, "centralMelanin", &f.CentralMelanin)
	serial.DeepList(s, "relations", &f.Relations)
	serial.LookRefList(s, "kidnapped", &f.Kidnapped, serial.Weak())
	serial.Value(s, "predatorThreats", &f.PredatorThreats)
	serial.Value(s, "defeated", &f.Defeated)
	serial.Value(s, "lastTraderRequestTick", &f.LastTraderRequestTick)
	serial.Value(s, "lastMilitaryAidRequestTick", &f.LastMilitaryAidRequestTick)
	serial.Value(s, "naturalGoodwillTimer", &f.NaturalGoodwillTimer)
	serial.Value(s, "isPlayer", &f.IsPlayer)
	serial.Value(s, "permanentEnemy", &f.PermanentEnemy)
	return s.Err()
}

// RelationWith returns the relation towards the faction with id, or nil.
func (f *Faction) RelationWith(id string) *FactionRelation {
	for _, r := range f.Relations {
		if r.Other.ID() == id {
			return r
		}
	}
	return nil
}

// SetRelation creates or replaces the relation towards other.
func (f *Faction) SetRelation(other *Faction, goodwill int, kind RelationKind) {
	if r := f.RelationWith(other.ID); r != nil {
		r.Other = serial.NewRef(other)
		r.Goodwill = goodwill
		r.Kind = kind
		return
	}
	f.Relations = append(f.Relations, &FactionRelation{
		Other:    serial.NewRef(other),
		Goodwill: goodwill,
		Kind:     kind,
	})
}

func (f *Faction) RemoveRelationWith(id string) {
	f.Relations = slices.DeleteFunc(f.Relations, func(r *FactionRelation) bool {
		return r.Other.ID() == id
	})
}

// Clone returns a deep copy. Relation targets and the leader are shared
// references, not copied entities.
func (f *Faction) Clone() *Faction {
	c := *f
	c.Relations = make([]*FactionRelation, 0, len(f.Relations))
	for _, r := range f.Relations {
		rc := *r
		c.Relations = append(c.Relations, &rc)
	}
	c.Kidnapped = slices.Clone(f.Kidnapped)
	c.PredatorThreats = slices.Clone(f.PredatorThreats)
	return &c
}
