package serial

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/google/uuid"
)

type Mode int

const (
	ModeSaving Mode = iota
	ModeLoadingValues
	ModeLoadingReferences
	ModeResolvingReferences
)

func (m Mode) String() string {
	switch m {
	case ModeSaving:
		return "saving"
	case ModeLoadingValues:
		return "loading-values"
	case ModeLoadingReferences:
		return "loading-references"
	case ModeResolvingReferences:
		return "resolving-references"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Exposable entities describe their fields once; the session reads or writes
// them depending on its mode.
type Exposable interface {
	ExposeData(s *Session) error
}

// CrossRef is a reference recorded during the reference pass and consumed
// during resolution.
type CrossRef struct {
	Path       string
	TargetID   string
	TargetType string
	Weak       bool

	assign func(Referenceable) bool
	unset  func()
}

// Session is a single save or load of one artifact.
type Session struct {
	id       uuid.UUID
	artifact string
	mode     Mode
	table    *RefTable

	root *node
	cur  *node
	path []string

	known     []Referenceable
	pending   []*CrossRef
	weakLevel slog.Level
	err       error
}

func newSession(artifact string, mode Mode) *Session {
	return &Session{
		id:        uuid.New(),
		artifact:  artifact,
		mode:      mode,
		table:     NewRefTable(),
		weakLevel: slog.LevelWarn,
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) Artifact() string {
	return s.artifact
}

func (s *Session) Mode() Mode {
	return s.mode
}

func (s *Session) Saving() bool {
	return s.mode == ModeSaving
}

func (s *Session) Table() *RefTable {
	return s.table
}

// PendingRefs is the number of recorded cross references not yet resolved.
func (s *Session) PendingRefs() int {
	return len(s.pending)
}

// Err returns the first fatal error of the session.
func (s *Session) Err() error {
	return s.err
}

// Fail records a fatal error. Only the first one is kept and every later
// field operation becomes a no-op.
func (s *Session) Fail(err error) {
	if err == nil || s.err != nil {
		return
	}
	s.err = fmt.Errorf("%s: %w", s.Path(), err)
}

// Path is the location of the entity currently being exposed.
func (s *Session) Path() string {
	if len(s.path) == 0 {
		return s.artifact
	}
	return s.artifact + "/" + strings.Join(s.path, "/")
}

// Register adds e to the session's reference table. It only has an effect
// while values are being written or read.
func (s *Session) Register(e Referenceable) {
	if s.err != nil || e == nil || isNilPointer(e) {
		return
	}
	if s.mode != ModeSaving && s.mode != ModeLoadingValues {
		return
	}
	if err := s.table.Register(e); err != nil {
		s.Fail(err)
	}
}

// Close releases the reference table and the decoded tree.
func (s *Session) Close() {
	s.table.Clear()
	s.pending = nil
	s.known = nil
	s.root = nil
	s.cur = nil
}

func (s *Session) at(name string) string {
	return s.Path() + "/" + name
}

func (s *Session) logAttrs(name string, extra ...any) []any {
	attrs := []any{"session", s.id.String(), "artifact", s.artifact, "path", s.at(name)}
	return append(attrs, extra...)
}

func (s *Session) expose(name string, n *node, e Exposable) {
	prevNode := s.cur
	s.cur = n
	s.path = append(s.path, name)
	defer func() {
		s.cur = prevNode
		s.path = s.path[:len(s.path)-1]
	}()

	if err := e.ExposeData(s); err != nil {
		s.Fail(err)
	}
}

func (s *Session) missing(name string, o fieldOpts) {
	if o.required {
		s.Fail(fmt.Errorf("%w: %s", ErrRequiredField, name))
		return
	}
	slog.Warn("field missing, keeping default", s.logAttrs(name)...)
}

func (s *Session) undecodable(name string, o fieldOpts, err error) {
	if o.required {
		s.Fail(fmt.Errorf("decoding %s: %w", name, err))
		return
	}
	slog.Warn("field undecodable, keeping default", s.logAttrs(name, "error", err)...)
}

func (s *Session) run(root Exposable) {
	s.cur = s.root
	s.path = s.path[:0]
	if err := root.ExposeData(s); err != nil {
		s.Fail(err)
	}
}

func (s *Session) resolve() {
	s.mode = ModeResolvingReferences

	var unresolved []string
	resolved := 0
	for _, cr := range s.pending {
		if e, ok := s.table.Lookup(cr.TargetID); ok && cr.assign(e) {
			resolved++
			continue
		}
		if cr.Weak {
			cr.unset()
			slog.Log(context.Background(), s.weakLevel, "weak reference unresolved, leaving unset",
				"session", s.id.String(), "artifact", s.artifact, "path", cr.Path, "target", cr.TargetID)
			continue
		}
		unresolved = append(unresolved, fmt.Sprintf("%s (%s at %s)", cr.TargetID, cr.TargetType, cr.Path))
	}
	s.pending = nil

	if len(unresolved) > 0 {
		s.err = fmt.Errorf("%w: %s", ErrUnresolvedReference, strings.Join(unresolved, ", "))
		return
	}

	slog.Debug("references resolved",
		"session", s.id.String(), "artifact", s.artifact, "resolved", resolved, "entities", s.table.Len())
}

// LoadOpt configures a load session.
type LoadOpt func(*Session)

// WithKnown seeds the reference table with entities owned by other artifacts
// after values are read and before references are recorded.
func WithKnown[T Referenceable](items ...T) LoadOpt {
	return func(s *Session) {
		for _, it := range items {
			s.known = append(s.known, it)
		}
	}
}

// WeakMissLevel sets the level unresolved weak references are logged at.
// Callers that resolve them again afterwards use a lower level.
func WeakMissLevel(level slog.Level) LoadOpt {
	return func(s *Session) {
		s.weakLevel = level
	}
}

// Save writes root into a self describing tree.
func Save(artifact string, root Exposable) (json.RawMessage, error) {
	s := newSession(artifact, ModeSaving)
	defer s.Close()

	s.root = newNode()
	s.run(root)
	if s.err != nil {
		return nil, s.err
	}

	b, err := json.Marshal(s.root)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", artifact, err)
	}
	return b, nil
}

// Load reads data into root in three passes: values, references, resolution.
// On error root may be partially populated and must be discarded.
func Load(artifact string, data []byte, root Exposable, opts ...LoadOpt) error {
	s := newSession(artifact, ModeLoadingValues)
	for _, opt := range opts {
		opt(s)
	}
	defer s.Close()

	n, err := decodeNode(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", artifact, err)
	}
	s.root = n

	s.run(root)
	if s.err != nil {
		return s.err
	}

	for _, k := range s.known {
		if err := s.table.Register(k); err != nil {
			return fmt.Errorf("seeding %s: %w", artifact, err)
		}
	}

	s.mode = ModeLoadingReferences
	s.run(root)
	if s.err != nil {
		return s.err
	}

	s.resolve()
	return s.err
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

type node struct {
	fields   map[string]json.RawMessage
	children map[string]*node
	lists    map[string][]*node
}

func newNode() *node {
	return &node{
		fields:   map[string]json.RawMessage{},
		children: map[string]*node{},
		lists:    map[string][]*node{},
	}
}

func decodeNode(raw []byte) (*node, error) {
	n := newNode()
	if err := json.Unmarshal(raw, &n.fields); err != nil {
		return nil, err
	}
	if n.fields == nil {
		n.fields = map[string]json.RawMessage{}
	}
	return n, nil
}

func (n *node) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(n.fields)+len(n.children)+len(n.lists))
	for k, v := range n.fields {
		out[k] = v
	}
	for k, c := range n.children {
		if c == nil {
			out[k] = json.RawMessage("null")
			continue
		}
		b, err := c.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = b
	}
	for k, l := range n.lists {
		items := make([]json.RawMessage, 0, len(l))
		for i, c := range l {
			b, err := c.MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", k, i, err)
			}
			items = append(items, b)
		}
		b, err := json.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = b
	}
	return json.Marshal(out)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
