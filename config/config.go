package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ceerkle/dreichor-trading/broker"
	"github.com/ceerkle/dreichor-trading/market"
	"github.com/ceerkle/dreichor-trading/strategy"
)

// Config represents the complete runner configuration
type Config struct {
	Strategy    StrategyConfig    `json:"strategy" yaml:"strategy"`
	Execution   ExecutionConfig   `json:"execution" yaml:"execution"`
	Persistence PersistenceConfig `json:"persistence" yaml:"persistence"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
	Metrics     MetricsConfig     `json:"metrics" yaml:"metrics"`
}

// StrategyConfig identifies the strategy instance and its timing rules.
// Times are in logical steps.
type StrategyConfig struct {
	InstanceID       string `json:"instance_id" yaml:"instance_id"`
	StrategyID       string `json:"strategy_id" yaml:"strategy_id"`
	DecisionClass    string `json:"decision_class" yaml:"decision_class"`
	MinimumHoldTime  uint64 `json:"minimum_hold_time" yaml:"minimum_hold_time"`
	CooldownDuration uint64 `json:"cooldown_duration" yaml:"cooldown_duration"`
	ParameterPool    string `json:"parameter_pool,omitempty" yaml:"parameter_pool,omitempty"`
	PoolsFile        string `json:"pools_file,omitempty" yaml:"pools_file,omitempty"`
}

type ExecutionConfig struct {
	Plane string `json:"plane" yaml:"plane"` // "PAPER" or "LIVE"
}

// PersistenceConfig selects where audit events and snapshots are kept
type PersistenceConfig struct {
	Type                string `json:"type" yaml:"type"` // "memory", "ndjson" or "sqlite"
	RootDir             string `json:"root_dir,omitempty" yaml:"root_dir,omitempty"`
	DBPath              string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	SnapshotOnExecution bool   `json:"snapshot_on_execution" yaml:"snapshot_on_execution"`
}

type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

type MetricsConfig struct {
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty"`
}

// LoadFromFile loads configuration from a file (JSON or YAML based on extension)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Strategy.InstanceID == "" {
		return fmt.Errorf("strategy.instance_id is required")
	}
	if _, err := market.ParseUUID(c.Strategy.InstanceID); err != nil {
		return fmt.Errorf("strategy.instance_id: %w", err)
	}
	if _, err := market.NewStrategyID(c.Strategy.StrategyID); err != nil {
		return fmt.Errorf("strategy.strategy_id: %w", err)
	}
	if _, err := market.NewDecisionClass(c.Strategy.DecisionClass); err != nil {
		return fmt.Errorf("strategy.decision_class: %w", err)
	}
	if _, err := broker.ParsePlane(c.Execution.Plane); err != nil {
		return fmt.Errorf("execution.plane must be 'PAPER' or 'LIVE'")
	}
	switch c.Persistence.Type {
	case "memory":
	case "ndjson":
		if c.Persistence.RootDir == "" {
			return fmt.Errorf("persistence root_dir required for ndjson type")
		}
	case "sqlite":
		if c.Persistence.DBPath == "" {
			return fmt.Errorf("persistence db_path required for sqlite type")
		}
	default:
		return fmt.Errorf("persistence.type must be 'memory', 'ndjson' or 'sqlite'")
	}
	if c.Logging.Level != "" {
		if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Strategy: StrategyConfig{
			InstanceID:       "3f2504e0-4f89-11d3-9a0c-0305e82c3301",
			StrategyID:       "rotation@v1",
			DecisionClass:    "market.rotate.default@v1",
			MinimumHoldTime:  3,
			CooldownDuration: 2,
		},
		Execution: ExecutionConfig{
			Plane: string(broker.Paper),
		},
		Persistence: PersistenceConfig{
			Type:                "ndjson",
			RootDir:             "./dreichor",
			SnapshotOnExecution: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func (c *Config) Plane() broker.Plane { return broker.Plane(c.Execution.Plane) }

// InstanceID returns strategy.instance_id in lower case.
func (c *Config) InstanceID() market.UUID {
	if u, err := market.ParseUUID(c.Strategy.InstanceID); err == nil {
		return u
	}
	return market.UUID(c.Strategy.InstanceID)
}

func (c *Config) DecisionClass() market.DecisionClass {
	return market.DecisionClass(c.Strategy.DecisionClass)
}

func (c *Config) Lifecycle() strategy.LifecycleConfig {
	return strategy.LifecycleConfig{
		MinimumHoldTime:  c.Strategy.MinimumHoldTime,
		CooldownDuration: c.Strategy.CooldownDuration,
	}
}

// LogLevel returns the configured level, info when unset.
func (c *Config) LogLevel() logrus.Level {
	lvl, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Catalog returns the built-in pools, extended or overridden by pools_file.
func (c *Config) Catalog() (strategy.Catalog, error) {
	cat := strategy.DefaultCatalog()
	if c.Strategy.PoolsFile == "" {
		return cat, nil
	}
	extra, err := strategy.LoadCatalog(c.Strategy.PoolsFile)
	if err != nil {
		return nil, err
	}
	for id, raw := range extra {
		cat[id] = raw
	}
	return cat, nil
}

// SelectPool resolves strategy.parameter_pool against Catalog.
func (c *Config) SelectPool() (strategy.PoolSelection, error) {
	cat, err := c.Catalog()
	if err != nil {
		return strategy.PoolSelection{}, err
	}
	return strategy.SelectPool(cat, strategy.DefaultPoolID, c.Strategy.ParameterPool)
}
