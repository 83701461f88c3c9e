package serial

import (
	"encoding/json"
	"fmt"
)

type FieldOpt func(*fieldOpts)

type fieldOpts struct {
	required bool
	weak     bool
}

// Required makes a missing or undecodable field fatal for the session.
func Required() FieldOpt {
	return func(o *fieldOpts) {
		o.required = true
	}
}

// Weak lets a reference stay unresolved; it keeps its id and resolves to unset.
func Weak() FieldOpt {
	return func(o *fieldOpts) {
		o.weak = true
	}
}

func options(opts []FieldOpt) fieldOpts {
	var o fieldOpts
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Value exposes a plain value. On load a missing or undecodable field keeps
// whatever v already holds.
func Value[T any](s *Session, name string, v *T, opts ...FieldOpt) {
	if s.err != nil {
		return
	}
	o := options(opts)

	switch s.mode {
	case ModeSaving:
		b, err := json.Marshal(*v)
		if err != nil {
			s.Fail(fmt.Errorf("encoding %s: %w", name, err))
			return
		}
		s.cur.fields[name] = b
	case ModeLoadingValues:
		raw, ok := s.cur.fields[name]
		if !ok {
			s.missing(name, o)
			return
		}
		var tmp T
		if err := json.Unmarshal(raw, &tmp); err != nil {
			s.undecodable(name, o, err)
			return
		}
		*v = tmp
	}
}

// Deep exposes an owned child entity. On load a nil *v is allocated; a
// non-nil *v is filled in place so constructors can provide defaults.
func Deep[T any, PT interface {
	*T
	Exposable
}](s *Session, name string, v *PT, opts ...FieldOpt) {
	if s.err != nil {
		return
	}
	o := options(opts)

	switch s.mode {
	case ModeSaving:
		if *v == nil {
			s.cur.children[name] = nil
			return
		}
		child := newNode()
		s.cur.children[name] = child
		s.expose(name, child, *v)
	case ModeLoadingValues:
		raw, ok := s.cur.fields[name]
		if !ok {
			s.missing(name, o)
			return
		}
		if isNull(raw) {
			if o.required {
				s.Fail(fmt.Errorf("%w: %s", ErrRequiredField, name))
			}
			return
		}
		child, err := decodeNode(raw)
		if err != nil {
			s.undecodable(name, o, err)
			return
		}
		s.cur.children[name] = child
		if *v == nil {
			*v = PT(new(T))
		}
		s.expose(name, child, *v)
	case ModeLoadingReferences:
		child := s.cur.children[name]
		if child == nil || *v == nil {
			return
		}
		s.expose(name, child, *v)
	}
}

// DeepList exposes an ordered list of owned child entities. Undecodable
// elements are dropped with a warning unless the list is required.
func DeepList[T any, PT interface {
	*T
	Exposable
}](s *Session, name string, list *[]PT, opts ...FieldOpt) {
	if s.err != nil {
		return
	}
	o := options(opts)

	switch s.mode {
	case ModeSaving:
		nodes := make([]*node, 0, len(*list))
		for i, item := range *list {
			n := newNode()
			nodes = append(nodes, n)
			s.expose(fmt.Sprintf("%s[%d]", name, i), n, item)
			if s.err != nil {
				return
			}
		}
		s.cur.lists[name] = nodes
	case ModeLoadingValues:
		raw, ok := s.cur.fields[name]
		if !ok {
			s.missing(name, o)
			return
		}
		var raws []json.RawMessage
		if err := json.Unmarshal(raw, &raws); err != nil {
			s.undecodable(name, o, err)
			return
		}
		items := make([]PT, 0, len(raws))
		nodes := make([]*node, 0, len(raws))
		for i, r := range raws {
			elem := fmt.Sprintf("%s[%d]", name, i)
			n, err := decodeNode(r)
			if err != nil {
				s.undecodable(elem, o, err)
				if s.err != nil {
					return
				}
				continue
			}
			item := PT(new(T))
			s.expose(elem, n, item)
			if s.err != nil {
				return
			}
			items = append(items, item)
			nodes = append(nodes, n)
		}
		*list = items
		s.cur.lists[name] = nodes
	case ModeLoadingReferences:
		nodes := s.cur.lists[name]
		for i := 0; i < len(nodes) && i < len(*list); i++ {
			s.expose(fmt.Sprintf("%s[%d]", name, i), nodes[i], (*list)[i])
			if s.err != nil {
				return
			}
		}
	}
}

// LookRef exposes a reference by id. The id is read with the values; the
// link is recorded during the reference pass and bound during resolution.
func LookRef[T Referenceable](s *Session, name string, ref *Ref[T], opts ...FieldOpt) {
	if s.err != nil {
		return
	}
	o := options(opts)

	switch s.mode {
	case ModeSaving:
		b, err := json.Marshal(ref.id)
		if err != nil {
			s.Fail(fmt.Errorf("encoding %s: %w", name, err))
			return
		}
		s.cur.fields[name] = b
	case ModeLoadingValues:
		ref.Unresolve()
		raw, ok := s.cur.fields[name]
		if !ok {
			s.missing(name, o)
			return
		}
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			s.undecodable(name, o, err)
			return
		}
		ref.id = id
	case ModeLoadingReferences:
		if ref.id == "" {
			if o.required {
				s.Fail(fmt.Errorf("%w: %s", ErrRequiredField, name))
			}
			return
		}
		s.pending = append(s.pending, &CrossRef{
			Path:       s.at(name),
			TargetID:   ref.id,
			TargetType: typeName[T](),
			Weak:       o.weak,
			assign: func(e Referenceable) bool {
				v, ok := e.(T)
				if !ok {
					return false
				}
				ref.val = v
				return true
			},
			unset: ref.Unresolve,
		})
	}
}

// LookRefList exposes an ordered list of references by id. With Weak, a
// reference left unresolved stays in the list with its id kept.
func LookRefList[T Referenceable](s *Session, name string, refs *[]Ref[T], opts ...FieldOpt) {
	if s.err != nil {
		return
	}
	o := options(opts)

	switch s.mode {
	case ModeSaving:
		ids := make([]string, 0, len(*refs))
		for _, r := range *refs {
			ids = append(ids, r.id)
		}
		b, err := json.Marshal(ids)
		if err != nil {
			s.Fail(fmt.Errorf("encoding %s: %w", name, err))
			return
		}
		s.cur.fields[name] = b
	case ModeLoadingValues:
		raw, ok := s.cur.fields[name]
		if !ok {
			s.missing(name, o)
			return
		}
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			s.undecodable(name, o, err)
			return
		}
		list := make([]Ref[T], 0, len(ids))
		for _, id := range ids {
			list = append(list, RefTo[T](id))
		}
		*refs = list
	case ModeLoadingReferences:
		for i := range *refs {
			elem := fmt.Sprintf("%s[%d]", name, i)
			LookRef(s, elem, &(*refs)[i], opts...)
			if s.err != nil {
				return
			}
		}
	}
}
