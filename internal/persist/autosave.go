package persist

import (
	"context"
	"errors"
	"log/slog"
)

// Autosaver is a driver manager: it ticks the orchestrator and saves the
// world every few ticks. Save failures are logged and never stop the driver.
type Autosaver struct {
	o     *Orchestrator
	every int
	ticks int
}

// NewAutosaver saves every `every` ticks; zero or less only ticks.
func NewAutosaver(o *Orchestrator, every int) *Autosaver {
	return &Autosaver{o: o, every: every}
}

func (a *Autosaver) Tick(ctx context.Context) error {
	a.o.Tick(ctx)

	if a.every <= 0 {
		return nil
	}
	a.ticks++
	if a.ticks < a.every {
		return nil
	}
	a.ticks = 0

	err := a.o.SaveWorld(ctx)
	switch {
	case err == nil:
		slog.DebugContext(ctx, "autosaved world")
	case errors.Is(err, ErrNoWorld):
	default:
		slog.ErrorContext(ctx, "autosave failed", "error", err)
	}
	return nil
}
