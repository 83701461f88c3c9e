package serial

import "fmt"

// Referenceable is implemented by entities that other entities point at by id.
type Referenceable interface {
	RefID() string
}

// RefTable maps entity ids to the entities registered during a session.
type RefTable struct {
	entries map[string]Referenceable
}

func NewRefTable() *RefTable {
	return &RefTable{entries: map[string]Referenceable{}}
}

// Register adds e under its id. Registering an id twice is an error.
func (t *RefTable) Register(e Referenceable) error {
	id := e.RefID()
	if id == "" {
		return ErrEmptyID
	}
	if _, ok := t.entries[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	t.entries[id] = e
	return nil
}

func (t *RefTable) Lookup(id string) (Referenceable, bool) {
	e, ok := t.entries[id]
	return e, ok
}

func (t *RefTable) Len() int {
	return len(t.entries)
}

// Clear drops every registration. Tables do not outlive their session.
func (t *RefTable) Clear() {
	t.entries = map[string]Referenceable{}
}
