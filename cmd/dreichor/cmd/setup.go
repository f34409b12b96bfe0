package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ceerkle/dreichor-trading/broker"
	"github.com/ceerkle/dreichor-trading/config"
	"github.com/ceerkle/dreichor-trading/engine"
	"github.com/ceerkle/dreichor-trading/journal"
	"github.com/ceerkle/dreichor-trading/scenario"
)

var log = logrus.WithField("component", "cli")

// stores is an opened pair of event and snapshot logs.
type stores struct {
	events journal.EventStore
	snaps  journal.SnapshotStore
	close  func() error
}

func (s *stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// loadConfig reads the --config file and applies its log level unless
// --log-level was given.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel == "" {
		logrus.SetLevel(cfg.LogLevel())
	}
	return cfg, nil
}

func openStores(cfg *config.Config) (*stores, error) {
	p := cfg.Persistence
	switch p.Type {
	case "memory":
		log.Warn("memory persistence: nothing survives this process")
		return &stores{events: journal.NewMemoryEvents(), snaps: journal.NewMemorySnapshots()}, nil
	case "ndjson":
		events, snaps, err := journal.NewFileStores(p.RootDir)
		if err != nil {
			return nil, fmt.Errorf("open ndjson stores: %w", err)
		}
		return &stores{events: events, snaps: snaps}, nil
	case "sqlite":
		j, err := journal.NewSQLite(p.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &stores{events: j, snaps: j, close: j.Close}, nil
	}
	return nil, fmt.Errorf("unknown persistence type %q", p.Type)
}

// newRunner wires the engine for cfg onto st. obs may be nil.
func newRunner(cfg *config.Config, st *stores, obs engine.Observer) (*scenario.Runner, error) {
	sel, err := cfg.SelectPool()
	if err != nil {
		return nil, fmt.Errorf("select parameter pool: %w", err)
	}
	if sel.RejectionReason != "" {
		log.WithFields(logrus.Fields{
			"requested": sel.RejectedPoolID,
			"reason":    sel.RejectionReason,
			"using":     sel.Pool.ID,
		}).Warn("parameter pool rejected, using default")
	}

	eng := engine.New(engine.Deps{
		Executors:           broker.DefaultExecutors(),
		Events:              st.events,
		Snapshots:           st.snaps,
		SnapshotOnExecution: cfg.Persistence.SnapshotOnExecution,
		Observer:            obs,
	})
	return scenario.NewRunner(scenario.Config{
		InstanceID:    cfg.InstanceID(),
		DecisionClass: cfg.DecisionClass(),
		Plane:         cfg.Plane(),
		Lifecycle:     cfg.Lifecycle(),
		Pool:          sel.Pool,
	}, eng), nil
}
