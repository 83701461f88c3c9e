package command

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

const controlPrefix = "persist.control."

type subscriber interface {
	Subscribe(subject string, handler func(subject string, data []byte)) (func(), error)
}

// controller is the part of the orchestrator reachable over NATS.
type controller interface {
	SaveWorld(ctx context.Context) error
	SwitchActiveColony(ctx context.Context, id int) error
	DeleteColony(ctx context.Context, id int) error
}

type controlRequest struct {
	ColonyID int `json:"colony_id"`
}

// subscribeControl serves persist.control.{save,switch,delete}. Requests
// are fire and forget; outcomes are logged and published as events by the
// orchestrator.
func subscribeControl(ctx context.Context, sub subscriber, c controller) (func(), error) {
	return sub.Subscribe(controlPrefix+"*", func(subject string, data []byte) {
		op := strings.TrimPrefix(subject, controlPrefix)
		if err := handleControl(ctx, c, op, data); err != nil {
			slog.ErrorContext(ctx, "control request failed", "op", op, "error", err)
			return
		}
		slog.InfoContext(ctx, "control request done", "op", op)
	})
}

func handleControl(ctx context.Context, c controller, op string, data []byte) error {
	switch op {
	case "save":
		return c.SaveWorld(ctx)
	case "switch", "delete":
		var req controlRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("decoding request: %w", err)
		}
		if req.ColonyID <= 0 {
			return fmt.Errorf("colony_id is required")
		}
		if op == "switch" {
			return c.SwitchActiveColony(ctx, req.ColonyID)
		}
		return c.DeleteColony(ctx, req.ColonyID)
	default:
		return fmt.Errorf("unknown control op %q", op)
	}
}
