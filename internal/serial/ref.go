package serial

import (
	"encoding/json"
	"reflect"
)

// Ref is an id based link to an entity that may not be loaded yet.
// The id survives a failed resolution; only the pointer is cleared.
type Ref[T Referenceable] struct {
	id  string
	val T
}

// RefTo builds an unresolved reference to id.
func RefTo[T Referenceable](id string) Ref[T] {
	return Ref[T]{id: id}
}

// NewRef builds a resolved reference to v.
func NewRef[T Referenceable](v T) Ref[T] {
	return Ref[T]{id: v.RefID(), val: v}
}

func (r Ref[T]) ID() string {
	return r.id
}

// Get returns the resolved entity or the zero value.
func (r Ref[T]) Get() T {
	return r.val
}

func (r Ref[T]) IsSet() bool {
	return r.id != ""
}

func (r Ref[T]) IsResolved() bool {
	return r.id != "" && any(r.val) != nil && !isNilPointer(r.val)
}

func (r *Ref[T]) Set(v T) {
	r.id = v.RefID()
	r.val = v
}

// Unresolve keeps the id but drops the pointer.
func (r *Ref[T]) Unresolve() {
	var zero T
	r.val = zero
}

func (r *Ref[T]) Clear() {
	var zero T
	r.id = ""
	r.val = zero
}

// Resolve looks the id up in t.
func (r *Ref[T]) Resolve(t *RefTable) bool {
	if r.id == "" {
		return false
	}
	e, ok := t.Lookup(r.id)
	if !ok {
		r.Unresolve()
		return false
	}
	v, ok := e.(T)
	if !ok {
		r.Unresolve()
		return false
	}
	r.val = v
	return true
}

func (r Ref[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.id)
}

func (r *Ref[T]) UnmarshalJSON(b []byte) error {
	r.Unresolve()
	return json.Unmarshal(b, &r.id)
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
