package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceerkle/dreichor-trading/broker"
	"github.com/ceerkle/dreichor-trading/market"
	"github.com/ceerkle/dreichor-trading/strategy"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, broker.Paper, cfg.Plane())
	assert.Equal(t, "ndjson", cfg.Persistence.Type)
	assert.Equal(t, strategy.LifecycleConfig{MinimumHoldTime: 3, CooldownDuration: 2}, cfg.Lifecycle())
	assert.NoError(t, cfg.Validate())
}

func TestInstanceIDLowerCase(t *testing.T) {
	cfg := Default()
	cfg.Strategy.InstanceID = "3F2504E0-4F89-11D3-9A0C-0305E82C3301"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, market.UUID("3f2504e0-4f89-11d3-9a0c-0305e82c3301"), cfg.InstanceID())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Strategy.InstanceID = "" },
			wantErr: true,
			errMsg:  "strategy.instance_id is required",
		},
		{
			name:    "malformed instance id",
			mutate:  func(c *Config) { c.Strategy.InstanceID = "instance-1" },
			wantErr: true,
			errMsg:  "strategy.instance_id",
		},
		{
			name:    "bad strategy id",
			mutate:  func(c *Config) { c.Strategy.StrategyID = "rotation" },
			wantErr: true,
			errMsg:  "strategy.strategy_id",
		},
		{
			name:    "bad decision class",
			mutate:  func(c *Config) { c.Strategy.DecisionClass = "rotate@v1" },
			wantErr: true,
			errMsg:  "strategy.decision_class",
		},
		{
			name:    "unknown plane",
			mutate:  func(c *Config) { c.Execution.Plane = "SANDBOX" },
			wantErr: true,
			errMsg:  "execution.plane must be 'PAPER' or 'LIVE'",
		},
		{
			name:    "unknown persistence",
			mutate:  func(c *Config) { c.Persistence.Type = "postgres" },
			wantErr: true,
			errMsg:  "persistence.type must be 'memory', 'ndjson' or 'sqlite'",
		},
		{
			name:    "ndjson without root",
			mutate:  func(c *Config) { c.Persistence.RootDir = "" },
			wantErr: true,
			errMsg:  "persistence root_dir required for ndjson type",
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.Persistence.Type = "sqlite" },
			wantErr: true,
			errMsg:  "persistence db_path required for sqlite type",
		},
		{
			name:    "memory",
			mutate:  func(c *Config) { c.Persistence = PersistenceConfig{Type: "memory"} },
			wantErr: false,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: true,
			errMsg:  "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateWrapsValueErrors(t *testing.T) {
	cfg := Default()
	cfg.Strategy.InstanceID = "nope"
	assert.ErrorIs(t, cfg.Validate(), market.ErrInvalidValue)
}

func TestSaveAndLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	original := Default()
	original.Strategy.ParameterPool = "balanced@v1"
	require.NoError(t, original.SaveToFile(configPath))

	loaded, err := LoadFromFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestSaveAndLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	original := Default()
	original.Persistence = PersistenceConfig{Type: "sqlite", DBPath: "./dreichor.db"}
	require.NoError(t, original.SaveToFile(configPath))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"instance_id"`)

	loaded, err := LoadFromFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestLoadFromFileErrors(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := LoadFromFile(filepath.Join(tmpDir, "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	bad := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("strategy: [unclosed"), 0644))
	_, err = LoadFromFile(bad)
	assert.ErrorContains(t, err, "parse config")

	invalid := filepath.Join(tmpDir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("execution:\n  plane: PAPER\n"), 0644))
	_, err = LoadFromFile(invalid)
	assert.ErrorContains(t, err, "invalid config")
}

func TestLogLevel(t *testing.T) {
	cfg := Default()
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel())
	cfg.Logging.Level = "debug"
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel())
	cfg.Logging.Level = ""
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel())
}

func TestSelectPool(t *testing.T) {
	cfg := Default()

	sel, err := cfg.SelectPool()
	require.NoError(t, err)
	assert.Equal(t, strategy.DefaultPoolID, sel.Pool.ID)

	pools := filepath.Join(t.TempDir(), "pools.yaml")
	require.NoError(t, os.WriteFile(pools, []byte(`pools:
  tight@v1:
    holdTime: "1"
    cooldownTime: "1"
    switchingSensitivity: "0.9"
    stabilityRequirement: "0.5"
    allocation: "0.1"
`), 0644))
	cfg.Strategy.PoolsFile = pools
	cfg.Strategy.ParameterPool = "tight@v1"

	sel, err = cfg.SelectPool()
	require.NoError(t, err)
	assert.Equal(t, "tight@v1", sel.Pool.ID)
	assert.Equal(t, market.Decimal("0.1"), sel.Pool.Allocation())

	cat, err := cfg.Catalog()
	require.NoError(t, err)
	assert.Len(t, cat, 4)

	cfg.Strategy.ParameterPool = "missing@v1"
	sel, err = cfg.SelectPool()
	require.NoError(t, err)
	assert.Equal(t, strategy.UnknownPool, sel.RejectionReason)
}
