package persist

import (
	"context"
	"testing"

	"github.com/pixil98/go-persistent-worlds/internal/game"
	"github.com/pixil98/go-persistent-worlds/internal/storage"
	"github.com/pixil98/go-testutil"
)

func TestAutosaver_Tick(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t, testConfig(t), &testHost{})
	w := newLiveWorld(t)
	c, err := o.ConvertLiveSessionToColony(ctx, w, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store, err := storage.NewWorldStore(o.WorldDir(w))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := NewAutosaver(o, 3)
	for i := 0; i < 2; i++ {
		if err := a.Tick(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	testutil.AssertEqual(t, "not saved yet", store.Exists(storage.KindWorld, worldArtifactID), false)
	testutil.AssertEqual(t, "still uncommitted", c.Status(), game.StatusUncommitted)

	if err := a.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "saved", store.Exists(storage.KindWorld, worldArtifactID), true)
	testutil.AssertEqual(t, "committed", c.Status(), game.StatusActive)
}

func TestAutosaver_NoWorld(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(t), nil)
	a := NewAutosaver(o, 1)
	if err := a.Tick(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
