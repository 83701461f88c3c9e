package storage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/pixil98/go-errors"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9-]*$`)

// Kind names the three artifact families of a persisted world.
type Kind string

const (
	KindWorld  Kind = "world"
	KindColony Kind = "colony"
	KindMap    Kind = "map"
)

func (k Kind) Valid() bool {
	switch k {
	case KindWorld, KindColony, KindMap:
		return true
	}
	return false
}

// Artifact is the envelope every persisted file carries around its body.
type Artifact struct {
	Version   uint            `json:"version"`
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	WrittenAt time.Time       `json:"written_at"`
	Body      json.RawMessage `json:"body"`
}

func (a *Artifact) Validate() error {
	el := errors.NewErrorList()

	if a.Version == 0 {
		el.Add(fmt.Errorf("version must be set"))
	}

	if a.ID == "" {
		el.Add(fmt.Errorf("id must be set"))
	}

	if !identifierPattern.MatchString(a.ID) {
		el.Add(fmt.Errorf("id must be alphanumeric"))
	}

	if !a.Kind.Valid() {
		el.Add(fmt.Errorf("kind %q is not known", a.Kind))
	}

	if len(a.Body) == 0 || string(a.Body) == "null" {
		el.Add(fmt.Errorf("body must be set"))
	}

	return el.Err()
}
