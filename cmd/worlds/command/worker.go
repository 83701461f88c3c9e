package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pixil98/go-persistent-worlds/internal/driver"
	"github.com/pixil98/go-persistent-worlds/internal/messaging"
	"github.com/pixil98/go-persistent-worlds/internal/persist"
	"github.com/pixil98/go-service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const finalSaveTimeout = 30 * time.Second

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	persistCfg, err := cfg.loadPersistConfig()
	if err != nil {
		return nil, err
	}

	bus, err := cfg.Nats.buildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	orch, err := persist.New(persistCfg, nil,
		persist.WithRegisterer(reg),
		persist.WithEvents(messaging.NewEventPublisher(bus)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	// Setup the persistence driver
	d := driver.NewDriver([]driver.Manager{
		persist.NewAutosaver(orch, cfg.AutosaveEvery),
	}, driver.WithTickLength(cfg.tickLength()), driver.WithTickTimeout(cfg.tickTimeout()))

	workers := service.WorkerList{
		"nats": bus,
		"session": &sessionWorker{
			orch:     orch,
			bus:      bus,
			driver:   d,
			worldDir: cfg.WorldDir,
			colony:   cfg.Colony,
		},
	}
	if srv := cfg.Metrics.buildServer(reg); srv != nil {
		workers["metrics"] = srv
	}
	return workers, nil
}

// sessionWorker loads the configured world once the bus is up, then drives
// it until shutdown and saves it one last time.
type sessionWorker struct {
	orch     *persist.Orchestrator
	bus      *messaging.NatsServer
	driver   *driver.Driver
	worldDir string
	colony   int
}

func (s *sessionWorker) Start(ctx context.Context) error {
	defer func() { _ = s.orch.Close() }()

	select {
	case <-s.bus.Ready():
	case <-ctx.Done():
		return nil
	}

	if err := s.orch.LoadWorld(ctx, s.worldDir); err != nil {
		return fmt.Errorf("loading world: %w", err)
	}
	if err := s.loadColony(ctx); err != nil {
		return err
	}

	unsubscribe, err := subscribeControl(ctx, s.bus, s.orch)
	if err != nil {
		return fmt.Errorf("subscribing to control requests: %w", err)
	}
	defer unsubscribe()

	runErr := s.driver.Start(ctx)

	saveCtx, cancel := context.WithTimeout(context.Background(), finalSaveTimeout)
	defer cancel()
	if err := s.orch.SaveWorld(saveCtx); err != nil {
		slog.Error("final save failed", "error", err)
	}
	return runErr
}

func (s *sessionWorker) loadColony(ctx context.Context) error {
	id := s.colony
	if id == 0 {
		recent := s.orch.ColoniesByLastWrite()
		if len(recent) == 0 {
			slog.WarnContext(ctx, "world has no colonies, nothing to activate", "dir", s.worldDir)
			return nil
		}
		id = recent[0].ID()
	}

	if err := s.orch.LoadColony(ctx, id); err != nil {
		return fmt.Errorf("loading colony %d: %w", id, err)
	}
	return nil
}
